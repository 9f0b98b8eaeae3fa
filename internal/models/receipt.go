package models

import (
	"encoding/json"
	"time"
)

type ReceiptStatus string

const (
	ReceiptStatusPending       ReceiptStatus = "pending"       // onay bekliyor
	ReceiptStatusConfirmed     ReceiptStatus = "confirmed"     // tüm kalemler uygun teslim alındı
	ReceiptStatusPartial       ReceiptStatus = "partial"       // kısmen teslim alındı
	ReceiptStatusRejected      ReceiptStatus = "rejected"      // hiçbir kalem teslim alınmadı
	ReceiptStatusAdjusted      ReceiptStatus = "adjusted"      // düzeltme yapıldı, tamamlayıcı irsaliye oluşturuldu
	ReceiptStatusComplementary ReceiptStatus = "complementary" // tamamlayıcı irsaliye tam teslimle kapandı
)

// Receipt: Birim bazında teslimat irsaliyesi. Bir sipariş, birim başına bir
// irsaliyeye bölünür; düzeltme akışı OriginalReceiptID üzerinden zincir kurar
// (orijinal → tamamlayıcı₁ → tamamlayıcı₂ ...). Kayıtlar hiçbir zaman silinmez.
type Receipt struct {
	ID      uint   `gorm:"primaryKey"`
	Number  string `gorm:"size:30;not null;uniqueIndex"` // örn: IRS-2026-000107
	OrderID uint   `gorm:"index;not null"`
	Order   Order
	UnitID  uint `gorm:"index;not null"`
	Unit    Unit

	DeliveryDate time.Time     `gorm:"not null"`
	Status       ReceiptStatus `gorm:"size:20;not null;default:pending"`

	// Onay linki: token QR koduna gömülür, birim sorumlusu taratıp onaylar
	ConfirmationToken string `gorm:"size:64;not null;uniqueIndex"`
	ConfirmationURL   string `gorm:"size:255;not null"`

	ReceivedBy          string `gorm:"size:100"`          // teslim alanın adı
	ReceivedBySignature string `gorm:"size:255"`          // imza görseli referansı
	ProofPhoto          string `gorm:"size:255"`          // imzalı kağıt irsaliye fotoğrafı
	Notes               string `gorm:"size:500"`

	// Düzeltme zinciri: tamamlayıcı irsaliye, düzeltilen orijinali gösterir
	OriginalReceiptID *uint    `gorm:"index"`
	OriginalReceipt   *Receipt `gorm:"foreignKey:OriginalReceiptID"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Lines []ReceiptLine `gorm:"foreignKey:ReceiptID;constraint:OnDelete:CASCADE"`
}

// ReceiptLine: İrsaliyedeki her kalem için istenen/teslim alınan miktar
type ReceiptLine struct {
	ID          uint `gorm:"primaryKey"`
	ReceiptID   uint `gorm:"index;not null"`
	OrderLineID uint `gorm:"index;not null"`
	OrderLine   OrderLine

	QuantityRequested float64 `gorm:"not null"`
	QuantityReceived  float64 `gorm:"not null;default:0"`
	Conforming        bool    `gorm:"not null;default:false"`
	Notes             string  `gorm:"size:500"`

	// Uygunsuz teslimat fotoğrafları (JSON dizi); kalem sonradan uygun
	// işaretlenirse temizlenir
	NonConformingPhotos string `gorm:"type:jsonb"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SetNonConformingPhotos: Fotoğraf referanslarını JSON olarak saklar
func (rl *ReceiptLine) SetNonConformingPhotos(photos []string) {
	if len(photos) == 0 {
		rl.NonConformingPhotos = "null"
		return
	}
	if b, err := json.Marshal(photos); err == nil {
		rl.NonConformingPhotos = string(b)
	}
}

// NonConformingPhotoList: Saklanan JSON diziyi çözer
func (rl *ReceiptLine) NonConformingPhotoList() []string {
	var photos []string
	if rl.NonConformingPhotos == "" || rl.NonConformingPhotos == "null" {
		return photos
	}
	_ = json.Unmarshal([]byte(rl.NonConformingPhotos), &photos)
	return photos
}
