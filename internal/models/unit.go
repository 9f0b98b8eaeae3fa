package models

import "time"

// Unit: Teslimat yapılan birim (okul veya kreş)
type Unit struct {
	ID      uint   `gorm:"primaryKey"`
	Name    string `gorm:"size:150;not null;unique"`
	Address string `gorm:"size:255"`
	Phone   string `gorm:"size:50"` // Opsiyonel telefon

	// Beyan edilen öğrenci mevcutları (havuz sınıflandırması bunlara bakar)
	NurseryCount      uint `gorm:"not null;default:0"` // kreş mevcudu
	PreschoolCount    uint `gorm:"not null;default:0"` // anaokulu mevcudu
	KindergartenCount uint `gorm:"not null;default:0"` // ana sınıfı mevcudu

	CreatedAt time.Time
	UpdatedAt time.Time

	Users []User
}

// Pool: Sözleşme kaleminin iki ayrı tahsis havuzundan biri
type Pool string

const (
	PoolDaycare Pool = "daycare" // kreş havuzu
	PoolSchool  Pool = "school"  // okul havuzu
)

// Label: Kullanıcıya gösterilen Türkçe havuz adı
func (p Pool) Label() string {
	if p == PoolDaycare {
		return "kreş"
	}
	return "okul"
}

// PoolForUnit: Birimin hangi havuza ait olduğunu belirler.
// Kreş, anaokulu veya ana sınıfı mevcutlarından herhangi biri sıfırdan
// büyükse birim kreş havuzuna, aksi halde okul havuzuna aittir.
// Sipariş, teslimat onayı ve manuel stok hareketleri bu kuralı ortak kullanır.
func PoolForUnit(u *Unit) Pool {
	if u.NurseryCount > 0 || u.PreschoolCount > 0 || u.KindergartenCount > 0 {
		return PoolDaycare
	}
	return PoolSchool
}
