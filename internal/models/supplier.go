package models

import "time"

// Supplier: Sözleşmeli tedarikçi firma
type Supplier struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:150;not null;unique"`
	TaxNumber string `gorm:"size:20"`  // vergi numarası
	Phone     string `gorm:"size:50"`
	Email     string `gorm:"size:100"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
