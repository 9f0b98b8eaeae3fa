package models

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"   // oluşturuldu, tedarikçi onayı bekliyor
	OrderStatusConfirmed OrderStatus = "confirmed" // tedarikçi onayladı, irsaliye bekliyor
	OrderStatusDelivered OrderStatus = "delivered" // irsaliyeler oluşturuldu
	OrderStatusCancelled OrderStatus = "cancelled" // iptal edildi, bakiyeler iade edildi
)

// Order: Sözleşme bakiyesinden düşülerek verilen sipariş
type Order struct {
	ID         uint   `gorm:"primaryKey"`
	Number     string `gorm:"size:30;not null;uniqueIndex"` // örn: SIP-2026-000042
	ContractID uint   `gorm:"index;not null"`
	Contract   Contract
	Status     OrderStatus `gorm:"size:20;not null;default:pending"`
	OrderedAt  time.Time   `gorm:"not null"`
	// Beklenen teslim tarihi
	ExpectedDeliveryAt time.Time `gorm:"not null"`
	TotalValue         float64   `gorm:"not null"` // Σ miktar × birim fiyat
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Lines []OrderLine `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// OrderLine: Siparişin birim bazındaki kalemi. Oluşturulduktan sonra değişmez.
type OrderLine struct {
	ID             uint `gorm:"primaryKey"`
	OrderID        uint `gorm:"index;not null"`
	ContractItemID uint `gorm:"index;not null"`
	ContractItem   ContractItem
	UnitID         uint `gorm:"index;not null"` // teslimat yapılacak birim
	Unit           Unit
	QuantityOrdered float64 `gorm:"not null"`
	CreatedAt       time.Time
}
