package models

import "time"

// StockEntry: Birim + sözleşme kalemi + havuz üçlüsü için güncel stok kaydı.
// İlk girişte otomatik oluşturulur, hiçbir zaman silinmez.
type StockEntry struct {
	ID              uint `gorm:"primaryKey"`
	UnitID          uint `gorm:"index:idx_stock_unit_item_pool,unique;not null"`
	Unit            Unit
	ContractItemID  uint `gorm:"index:idx_stock_unit_item_pool,unique;not null"`
	ContractItem    ContractItem
	Pool            Pool    `gorm:"size:10;index:idx_stock_unit_item_pool,unique;not null"`
	CurrentQuantity float64 `gorm:"not null;default:0"`
	MinimumQuantity float64 `gorm:"not null;default:0"` // kritik stok eşiği
	CreatedAt       time.Time
	UpdatedAt       time.Time // son hareket zamanı
}

type MovementKind string

const (
	MovementIn       MovementKind = "in"       // giriş (teslimat veya manuel)
	MovementOut      MovementKind = "out"      // çıkış (tüketim)
	MovementAdjust   MovementKind = "adjust"   // sayım düzeltmesi (mutlak değer atar)
	MovementTransfer MovementKind = "transfer" // birimler arası aktarım
	MovementDispose  MovementKind = "dispose"  // imha
)

// StockMovement: Stok kaydındaki her değişimin denetim izi (append-only).
// adjust dışındaki türlerde QuantityAfter == QuantityBefore ± Quantity;
// adjust mutlak değer atar.
type StockMovement struct {
	ID           uint `gorm:"primaryKey"`
	StockEntryID uint `gorm:"index;not null"`
	StockEntry   StockEntry

	Kind           MovementKind `gorm:"size:10;not null;index"`
	Quantity       float64      `gorm:"not null"`
	QuantityBefore float64      `gorm:"not null"`
	QuantityAfter  float64      `gorm:"not null"`

	Reason      string `gorm:"size:255;not null"`
	PerformedBy string `gorm:"size:100;not null"`

	// Otomatik girişlerde kaynak irsaliye
	ReceiptID *uint `gorm:"index"`
	// Aktarımlarda karşı birim
	TransferUnitID *uint
	// İmha hareketlerinde zorunlu fotoğraf referansı
	DisposalPhoto string `gorm:"size:255"`

	CreatedAt time.Time // hareket zamanı
}
