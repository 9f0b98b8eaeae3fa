package models

import "time"

// Contract: Tedarikçi ile yapılan yıllık alım sözleşmesi
type Contract struct {
	ID         uint   `gorm:"primaryKey"`
	Number     string `gorm:"size:50;not null;unique"` // sözleşme numarası
	SupplierID uint   `gorm:"index;not null"`
	Supplier   Supplier
	StartDate  time.Time `gorm:"not null"`
	EndDate    time.Time `gorm:"not null"`
	Note       string    `gorm:"size:255"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Items []ContractItem `gorm:"foreignKey:ContractID;constraint:OnDelete:CASCADE"`
}

// ContractItem: Sözleşmedeki her kalem ve havuz bakiyeleri.
// CurrentBalance her an DaycareBalance + SchoolBalance'a eşit olmalıdır;
// bakiyeler yalnızca sipariş (düşüm), mutabakat ve manuel hareketler
// (iade/düşüm) üzerinden değişir.
type ContractItem struct {
	ID         uint `gorm:"primaryKey"`
	ContractID uint `gorm:"index;not null"`
	Contract   Contract
	Name       string  `gorm:"size:150;not null"`
	Unit       string  `gorm:"size:20;not null"` // kg, adet, koli vs.
	UnitPrice  float64 `gorm:"not null"`

	OriginalQuantity float64 `gorm:"not null"` // sözleşmedeki toplam miktar
	CurrentBalance   float64 `gorm:"not null"` // kalan toplam bakiye
	DaycareBalance   float64 `gorm:"not null"` // kreş havuzu bakiyesi
	SchoolBalance    float64 `gorm:"not null"` // okul havuzu bakiyesi

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PoolBalance: İstenen havuzun bakiyesini döner
func (ci *ContractItem) PoolBalance(pool Pool) float64 {
	if pool == PoolDaycare {
		return ci.DaycareBalance
	}
	return ci.SchoolBalance
}
