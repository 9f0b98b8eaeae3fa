package receipt

import (
	"errors"
	"fmt"

	"tedarik-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AdjustLineInput struct {
	ReceiptLineID    uint
	QuantityReceived float64 // düzeltilmiş teslim miktarı
}

type AdjustInput struct {
	ReceiptID   uint
	PerformedBy string
	Lines       []AdjustLineInput
}

// Adjust: İlk onay turundan sonra bildirilen düzeltmeyi işler. Hedef
// irsaliyenin satırları düzeltilmiş miktarlarla güncellenir ve uygunluk
// yeniden türetilir; açık kalan miktarlar yeni bir tamamlayıcı irsaliyeye
// taşınır. Tamamlayıcı irsaliye pending açılır ve sonradan normal mutabakat
// akışına (Confirm) girer; zincir orijinal irsaliyeye parent-id ile bağlanır.
func Adjust(tx *gorm.DB, baseURL string, in AdjustInput) (*models.Receipt, error) {
	var r models.Receipt
	err := tx.Preload("Lines").First(&r, "id = ?", in.ReceiptID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{ReceiptID: in.ReceiptID}
	}
	if err != nil {
		return nil, err
	}
	if r.Status == models.ReceiptStatusAdjusted {
		return nil, &AlreadyAdjustedError{ReceiptID: r.ID}
	}

	correctedByLine := make(map[uint]float64, len(in.Lines))
	for _, li := range in.Lines {
		correctedByLine[li.ReceiptLineID] = li.QuantityReceived
	}

	// Açık miktarlar yeni irsaliyenin satırları olur
	staged := make([]models.ReceiptLine, 0)

	for i := range r.Lines {
		line := &r.Lines[i]
		corrected, ok := correctedByLine[line.ID]
		if !ok {
			continue // düzeltilmeyen satır olduğu gibi kalır
		}
		if corrected < 0 {
			return nil, fmt.Errorf("satır #%d için düzeltilmiş miktar negatif olamaz", line.ID)
		}

		line.QuantityReceived = corrected
		line.Conforming = line.QuantityRequested-corrected <= 0
		if err := tx.Save(line).Error; err != nil {
			return nil, err
		}

		diff := line.QuantityRequested - corrected
		if diff > 0 {
			rl := models.ReceiptLine{
				OrderLineID:       line.OrderLineID,
				QuantityRequested: diff,
				QuantityReceived:  0,
				Conforming:        false,
			}
			rl.SetNonConformingPhotos(nil)
			staged = append(staged, rl)
		}
	}

	// Düzeltme en az bir açık miktar üretmeli; üretmiyorsa tamamlayıcı
	// irsaliyeye gerek yok demektir
	if len(staged) == 0 {
		return nil, &NoDiscrepancyError{ReceiptID: r.ID}
	}

	r.Status = models.ReceiptStatusAdjusted
	if err := tx.Save(&r).Error; err != nil {
		return nil, err
	}

	number, err := nextReceiptNumber(tx, r.DeliveryDate)
	if err != nil {
		return nil, err
	}

	originalID := r.ID
	comp := models.Receipt{
		Number:            number,
		OrderID:           r.OrderID,
		UnitID:            r.UnitID,
		DeliveryDate:      r.DeliveryDate,
		Status:            models.ReceiptStatusPending,
		ConfirmationToken: uuid.NewString(),
		OriginalReceiptID: &originalID,
		Lines:             staged,
	}
	if err := tx.Create(&comp).Error; err != nil {
		return nil, err
	}

	comp.ConfirmationURL = fmt.Sprintf("%s/teslimat/%d?token=%s", baseURL, comp.ID, comp.ConfirmationToken)
	if err := tx.Model(&comp).Update("confirmation_url", comp.ConfirmationURL).Error; err != nil {
		return nil, err
	}

	return &comp, nil
}

// Chain: Bir irsaliyeden türeyen tamamlayıcı irsaliyeleri (doğrudan
// çocukları) döner. Zincir parent-id ile kurulduğundan yapısal olarak
// döngüsüzdür; yeni irsaliye her zaman var olan bir kayda işaret eder.
func Chain(db *gorm.DB, receiptID uint) ([]models.Receipt, error) {
	var children []models.Receipt
	if err := db.Where("original_receipt_id = ?", receiptID).Order("id").Find(&children).Error; err != nil {
		return nil, err
	}
	return children, nil
}
