package order

import (
	"errors"
	"fmt"
	"time"

	"tedarik-backend/internal/contract"
	"tedarik-backend/internal/models"

	"gorm.io/gorm"
)

// StatusError: Sipariş, istenen geçiş için uygun durumda değil
type StatusError struct {
	OrderID uint
	Status  models.OrderStatus
	Wanted  models.OrderStatus
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Sipariş #%d '%s' durumunda, '%s' geçişi yapılamaz", e.OrderID, e.Status, e.Wanted)
}

type PlaceLineInput struct {
	UnitID         uint
	ContractItemID uint
	Quantity       float64
}

type PlaceInput struct {
	ContractID         uint
	ExpectedDeliveryAt time.Time
	Lines              []PlaceLineInput
}

// Place: Siparişi oluşturur ve her satırın miktarını, hedef birimin
// havuzundan düşer. Tek transaction içinde çalışır; herhangi bir satırın
// düşümü başarısız olursa çağıran transaction'ı geri alır ve hata ilgili
// kalemi isimlendirir.
func Place(tx *gorm.DB, in PlaceInput) (*models.Order, error) {
	var ct models.Contract
	if err := tx.First(&ct, "id = ?", in.ContractID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &contract.DataIntegrityError{Entity: "contract", ID: in.ContractID}
		}
		return nil, err
	}

	now := time.Now()
	var totalValue float64
	lines := make([]models.OrderLine, 0, len(in.Lines))

	// Aynı birim birden çok satırda geçebilir, sınıflandırmayı önbellekle
	poolByUnit := make(map[uint]models.Pool)

	for _, l := range in.Lines {
		pool, ok := poolByUnit[l.UnitID]
		if !ok {
			var unit models.Unit
			if err := tx.First(&unit, "id = ?", l.UnitID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, &contract.DataIntegrityError{Entity: "unit", ID: l.UnitID}
				}
				return nil, err
			}
			pool = models.PoolForUnit(&unit)
			poolByUnit[l.UnitID] = pool
		}

		item, err := contract.DecrementPool(tx, l.ContractItemID, pool, l.Quantity)
		if err != nil {
			return nil, err
		}
		if item.ContractID != ct.ID {
			return nil, &contract.DataIntegrityError{Entity: "contract_item", ID: l.ContractItemID}
		}

		totalValue += l.Quantity * item.UnitPrice
		lines = append(lines, models.OrderLine{
			ContractItemID:  l.ContractItemID,
			UnitID:          l.UnitID,
			QuantityOrdered: l.Quantity,
		})
	}

	number, err := nextOrderNumber(tx, now)
	if err != nil {
		return nil, err
	}

	o := models.Order{
		Number:             number,
		ContractID:         ct.ID,
		Status:             models.OrderStatusPending,
		OrderedAt:          now,
		ExpectedDeliveryAt: in.ExpectedDeliveryAt,
		TotalValue:         totalValue,
		Lines:              lines,
	}
	if err := tx.Create(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// Confirm: pending → confirmed. İrsaliye üretimi onaylı sipariş ister.
func Confirm(tx *gorm.DB, orderID uint) (*models.Order, error) {
	var o models.Order
	if err := tx.First(&o, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	if o.Status != models.OrderStatusPending {
		return nil, &StatusError{OrderID: o.ID, Status: o.Status, Wanted: models.OrderStatusConfirmed}
	}

	o.Status = models.OrderStatusConfirmed
	if err := tx.Save(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// Cancel: Henüz teslimata dönüşmemiş siparişi iptal eder ve her satırın
// miktarını ilgili havuza iade eder.
func Cancel(tx *gorm.DB, orderID uint) (*models.Order, error) {
	var o models.Order
	if err := tx.Preload("Lines").First(&o, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	if o.Status != models.OrderStatusPending && o.Status != models.OrderStatusConfirmed {
		return nil, &StatusError{OrderID: o.ID, Status: o.Status, Wanted: models.OrderStatusCancelled}
	}

	for _, l := range o.Lines {
		var unit models.Unit
		if err := tx.First(&unit, "id = ?", l.UnitID).Error; err != nil {
			return nil, &contract.DataIntegrityError{Entity: "unit", ID: l.UnitID}
		}
		pool := models.PoolForUnit(&unit)
		if _, err := contract.IncrementPool(tx, l.ContractItemID, pool, l.QuantityOrdered); err != nil {
			return nil, err
		}
	}

	o.Status = models.OrderStatusCancelled
	if err := tx.Save(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// nextOrderNumber: Yıl bazlı okunabilir sipariş numarası (örn: SIP-2026-000042)
func nextOrderNumber(tx *gorm.DB, now time.Time) (string, error) {
	year := now.Year()
	var count int64
	if err := tx.Model(&models.Order{}).
		Where("number LIKE ?", fmt.Sprintf("SIP-%d-%%", year)).
		Count(&count).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("SIP-%d-%06d", year, count+1), nil
}
