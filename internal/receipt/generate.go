package receipt

import (
	"errors"
	"fmt"
	"time"

	"tedarik-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Generate: Onaylı siparişi birim başına bir irsaliyeye böler. Her irsaliye
// pending durumda açılır; satırları sipariş satırlarını aynen taşır
// (istenen = sipariş miktarı, teslim alınan = 0). Her irsaliyeye tekil onay
// token'ı ve QR'a gömülecek onay linki atanır. Tamamlandığında sipariş
// 'delivered' durumuna geçer.
func Generate(tx *gorm.DB, baseURL string, orderID uint, deliveryDate time.Time) ([]models.Receipt, error) {
	var o models.Order
	if err := tx.Preload("Lines").First(&o, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	if o.Status != models.OrderStatusConfirmed {
		return nil, &OrderStateError{OrderID: o.ID, Status: o.Status}
	}

	// Satırları birim bazında grupla; sipariş sırasını koru
	unitOrder := make([]uint, 0)
	linesByUnit := make(map[uint][]models.OrderLine)
	for _, l := range o.Lines {
		if _, seen := linesByUnit[l.UnitID]; !seen {
			unitOrder = append(unitOrder, l.UnitID)
		}
		linesByUnit[l.UnitID] = append(linesByUnit[l.UnitID], l)
	}

	receipts := make([]models.Receipt, 0, len(unitOrder))
	for _, unitID := range unitOrder {
		number, err := nextReceiptNumber(tx, deliveryDate)
		if err != nil {
			return nil, err
		}

		lines := make([]models.ReceiptLine, 0, len(linesByUnit[unitID]))
		for _, ol := range linesByUnit[unitID] {
			rl := models.ReceiptLine{
				OrderLineID:       ol.ID,
				QuantityRequested: ol.QuantityOrdered,
				QuantityReceived:  0,
				Conforming:        false,
			}
			rl.SetNonConformingPhotos(nil)
			lines = append(lines, rl)
		}

		r := models.Receipt{
			Number:            number,
			OrderID:           o.ID,
			UnitID:            unitID,
			DeliveryDate:      deliveryDate,
			Status:            models.ReceiptStatusPending,
			ConfirmationToken: uuid.NewString(),
			Lines:             lines,
		}
		if err := tx.Create(&r).Error; err != nil {
			return nil, err
		}

		// Onay linki irsaliye ID'sini taşır, ID create sonrası belli olur
		r.ConfirmationURL = fmt.Sprintf("%s/teslimat/%d?token=%s", baseURL, r.ID, r.ConfirmationToken)
		if err := tx.Model(&r).Update("confirmation_url", r.ConfirmationURL).Error; err != nil {
			return nil, err
		}

		receipts = append(receipts, r)
	}

	if err := tx.Model(&o).Update("status", models.OrderStatusDelivered).Error; err != nil {
		return nil, err
	}

	return receipts, nil
}

// nextReceiptNumber: Yıl bazlı irsaliye numarası (örn: IRS-2026-000107)
func nextReceiptNumber(tx *gorm.DB, date time.Time) (string, error) {
	year := date.Year()
	var count int64
	if err := tx.Model(&models.Receipt{}).
		Where("number LIKE ?", fmt.Sprintf("IRS-%d-%%", year)).
		Count(&count).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("IRS-%d-%06d", year, count+1), nil
}
