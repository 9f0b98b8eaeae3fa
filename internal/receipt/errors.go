package receipt

import (
	"fmt"

	"tedarik-backend/internal/models"
)

// NotFoundError: İrsaliye bulunamadı
type NotFoundError struct{ ReceiptID uint }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("İrsaliye bulunamadı (ID: %d)", e.ReceiptID)
}

// AlreadyProcessedError: İrsaliye pending değil, tekrar onaylanamaz.
// İşlenmiş bir onayın değiştirilmesi yalnızca düzeltme akışıyla mümkündür.
type AlreadyProcessedError struct {
	ReceiptID uint
	Status    models.ReceiptStatus
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("İrsaliye #%d zaten işlenmiş (durum: %s)", e.ReceiptID, e.Status)
}

// AlreadyAdjustedError: İrsaliye zaten düzeltilmiş, ikinci düzeltme yapılamaz
type AlreadyAdjustedError struct{ ReceiptID uint }

func (e *AlreadyAdjustedError) Error() string {
	return fmt.Sprintf("İrsaliye #%d için zaten düzeltme yapılmış", e.ReceiptID)
}

// NoDiscrepancyError: Düzeltme hiçbir satırda açık miktar üretmedi
type NoDiscrepancyError struct{ ReceiptID uint }

func (e *NoDiscrepancyError) Error() string {
	return fmt.Sprintf("İrsaliye #%d için düzeltme fark üretmedi; tamamlayıcı irsaliye gerekmiyor", e.ReceiptID)
}

// OrderStateError: Sipariş, irsaliye üretimi için uygun durumda değil
type OrderStateError struct {
	OrderID uint
	Status  models.OrderStatus
}

func (e *OrderStateError) Error() string {
	return fmt.Sprintf("Sipariş #%d '%s' durumunda; irsaliye üretimi için 'confirmed' olmalı", e.OrderID, e.Status)
}
