package receipt

import (
	"errors"
	"fmt"
	"time"

	"tedarik-backend/internal/audit"
	"tedarik-backend/internal/auth"
	"tedarik-backend/internal/contract"
	"tedarik-backend/internal/database"
	"tedarik-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/skip2/go-qrcode"
	"gorm.io/gorm"
)

type GenerateReceiptsRequest struct {
	DeliveryDate string `json:"delivery_date"` // "2026-03-15"
}

type ConfirmReceiptRequest struct {
	Token      string                      `json:"token"` // QR linkindeki onay token'ı
	ReceivedBy string                      `json:"received_by"`
	Notes      string                      `json:"notes"`
	Signature  string                      `json:"signature"`
	ProofPhoto string                      `json:"proof_photo"`
	Lines      []ConfirmReceiptLineRequest `json:"lines"`
}

type ConfirmReceiptLineRequest struct {
	ReceiptLineID       uint     `json:"receipt_line_id"`
	Conforming          bool     `json:"conforming"`
	QuantityReceived    float64  `json:"quantity_received"`
	Notes               string   `json:"notes"`
	NonConformingPhotos []string `json:"non_conforming_photos"`
}

type AdjustReceiptRequest struct {
	Lines []AdjustReceiptLineRequest `json:"lines"`
}

type AdjustReceiptLineRequest struct {
	ReceiptLineID    uint    `json:"receipt_line_id"`
	QuantityReceived float64 `json:"quantity_received"`
}

type ReceiptResponse struct {
	ID                uint                  `json:"id"`
	Number            string                `json:"number"`
	OrderID           uint                  `json:"order_id"`
	OrderNumber       string                `json:"order_number,omitempty"`
	UnitID            uint                  `json:"unit_id"`
	UnitName          string                `json:"unit_name,omitempty"`
	DeliveryDate      string                `json:"delivery_date"`
	Status            models.ReceiptStatus  `json:"status"`
	ConfirmationURL   string                `json:"confirmation_url"`
	ReceivedBy        string                `json:"received_by,omitempty"`
	Notes             string                `json:"notes,omitempty"`
	OriginalReceiptID *uint                 `json:"original_receipt_id,omitempty"`
	Lines             []ReceiptLineResponse `json:"lines"`
	CreatedAt         string                `json:"created_at"`
}

type ReceiptLineResponse struct {
	ID                  uint     `json:"id"`
	OrderLineID         uint     `json:"order_line_id"`
	ItemName            string   `json:"item_name,omitempty"`
	QuantityRequested   float64  `json:"quantity_requested"`
	QuantityReceived    float64  `json:"quantity_received"`
	Conforming          bool     `json:"conforming"`
	Notes               string   `json:"notes,omitempty"`
	NonConformingPhotos []string `json:"non_conforming_photos,omitempty"`
}

func receiptToResponse(r *models.Receipt) ReceiptResponse {
	lines := make([]ReceiptLineResponse, 0, len(r.Lines))
	for i := range r.Lines {
		l := &r.Lines[i]
		lines = append(lines, ReceiptLineResponse{
			ID:                  l.ID,
			OrderLineID:         l.OrderLineID,
			ItemName:            l.OrderLine.ContractItem.Name,
			QuantityRequested:   l.QuantityRequested,
			QuantityReceived:    l.QuantityReceived,
			Conforming:          l.Conforming,
			Notes:               l.Notes,
			NonConformingPhotos: l.NonConformingPhotoList(),
		})
	}
	return ReceiptResponse{
		ID:                r.ID,
		Number:            r.Number,
		OrderID:           r.OrderID,
		OrderNumber:       r.Order.Number,
		UnitID:            r.UnitID,
		UnitName:          r.Unit.Name,
		DeliveryDate:      r.DeliveryDate.Format("2006-01-02"),
		Status:            r.Status,
		ConfirmationURL:   r.ConfirmationURL,
		ReceivedBy:        r.ReceivedBy,
		Notes:             r.Notes,
		OriginalReceiptID: r.OriginalReceiptID,
		Lines:             lines,
		CreatedAt:         r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// POST /api/orders/:id/receipts
func GenerateReceiptsHandler(baseURL string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		orderID, err := c.ParamsInt("id")
		if err != nil || orderID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz sipariş ID")
		}

		var body GenerateReceiptsRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		deliveryDate, err := time.Parse("2006-01-02", body.DeliveryDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "delivery_date formatı 'YYYY-MM-DD' olmalı")
		}

		tx := database.DB.Begin()
		if tx.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İşlem başlatılamadı")
		}

		receipts, err := Generate(tx, baseURL, uint(orderID), deliveryDate)
		if err != nil {
			tx.Rollback()
			return mapReceiptError(err)
		}
		if err := tx.Commit().Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İşlem tamamlanamadı")
		}

		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "receipt",
				EntityID:    uint(orderID),
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Sipariş #%d için %d irsaliye oluşturuldu", orderID, len(receipts)),
				After:       receipts,
			})
		}

		resp := make([]ReceiptResponse, 0, len(receipts))
		for i := range receipts {
			resp = append(resp, receiptToResponse(&receipts[i]))
		}
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

// GET /api/receipts?order_id=&unit_id=&status=
func ListReceiptsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.
			Preload("Unit").
			Preload("Order").
			Preload("Lines.OrderLine.ContractItem")

		if oid := c.QueryInt("order_id"); oid > 0 {
			dbq = dbq.Where("order_id = ?", oid)
		}
		if uid := c.QueryInt("unit_id"); uid > 0 {
			dbq = dbq.Where("unit_id = ?", uid)
		}
		if status := c.Query("status"); status != "" {
			dbq = dbq.Where("status = ?", status)
		}

		// Birim sorumlusu yalnızca kendi biriminin irsaliyelerini görür
		if role, ok := c.Locals(auth.CtxUserRoleKey).(models.UserRole); ok && role == models.RoleUnitManager {
			if unitID, ok := c.Locals(auth.CtxUnitIDKey).(*uint); ok && unitID != nil {
				dbq = dbq.Where("unit_id = ?", *unitID)
			}
		}

		var receipts []models.Receipt
		if err := dbq.Order("delivery_date DESC, id DESC").Find(&receipts).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İrsaliyeler listelenemedi")
		}

		resp := make([]ReceiptResponse, 0, len(receipts))
		for i := range receipts {
			resp = append(resp, receiptToResponse(&receipts[i]))
		}
		return c.JSON(resp)
	}
}

// GET /api/receipts/:id — düzeltme zinciriyle birlikte döner
func GetReceiptHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz irsaliye ID")
		}

		var r models.Receipt
		if err := database.DB.
			Preload("Unit").
			Preload("Order").
			Preload("Lines.OrderLine.ContractItem").
			First(&r, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "İrsaliye bulunamadı")
		}

		children, err := Chain(database.DB, r.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Düzeltme zinciri yüklenemedi")
		}
		chain := make([]fiber.Map, 0, len(children))
		for _, ch := range children {
			chain = append(chain, fiber.Map{"id": ch.ID, "number": ch.Number, "status": ch.Status})
		}

		return c.JSON(fiber.Map{
			"receipt":       receiptToResponse(&r),
			"complementary": chain,
		})
	}
}

// POST /api/receipts/:id/confirm
//
// İki yoldan erişilir: JWT'li kullanıcı, ya da QR linkindeki onay token'ı.
// Token verilmişse irsaliyenin kendi token'ıyla eşleşmek zorundadır; token
// yoksa istek JWT middleware'inden geçmiş olmalıdır.
func ConfirmReceiptHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz irsaliye ID")
		}

		var body ConfirmReceiptRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if body.Token == "" {
			body.Token = c.Query("token")
		}

		var r models.Receipt
		if err := database.DB.First(&r, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "İrsaliye bulunamadı")
		}

		if body.Token != "" {
			if body.Token != r.ConfirmationToken {
				return fiber.NewError(fiber.StatusForbidden, "Onay token'ı geçersiz")
			}
		} else if _, ok := c.Locals(auth.CtxUserIDKey).(uint); !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Onay için token ya da oturum gerekli")
		}

		if body.ReceivedBy == "" {
			return fiber.NewError(fiber.StatusBadRequest, "received_by zorunlu")
		}
		if len(body.Lines) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Her satır için teslim kaydı zorunlu")
		}

		in := ConfirmInput{
			ReceiptID:  uint(id),
			ReceivedBy: body.ReceivedBy,
			Notes:      body.Notes,
			Signature:  body.Signature,
			ProofPhoto: body.ProofPhoto,
		}
		for _, l := range body.Lines {
			in.Lines = append(in.Lines, ConfirmLineInput{
				ReceiptLineID:       l.ReceiptLineID,
				Conforming:          l.Conforming,
				QuantityReceived:    l.QuantityReceived,
				Notes:               l.Notes,
				NonConformingPhotos: l.NonConformingPhotos,
			})
		}

		tx := database.DB.Begin()
		if tx.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İşlem başlatılamadı")
		}

		confirmed, err := Confirm(tx, in)
		if err != nil {
			tx.Rollback()
			return mapReceiptError(err)
		}
		if err := tx.Commit().Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İşlem tamamlanamadı")
		}

		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				UnitID:      &confirmed.UnitID,
				UserID:      userID,
				UserName:    userName,
				EntityType:  "receipt",
				EntityID:    confirmed.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("İrsaliye onaylandı: %s (sonuç: %s)", confirmed.Number, confirmed.Status),
				After:       confirmed,
			})
		}

		if err := database.DB.
			Preload("Unit").
			Preload("Order").
			Preload("Lines.OrderLine.ContractItem").
			First(confirmed, confirmed.ID).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İrsaliye yüklenemedi")
		}
		return c.JSON(receiptToResponse(confirmed))
	}
}

// POST /api/receipts/:id/adjust
func AdjustReceiptHandler(baseURL string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz irsaliye ID")
		}

		var body AdjustReceiptRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if len(body.Lines) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "En az bir düzeltme satırı zorunlu")
		}

		userID, userName, uerr := getUserInfo(c)
		if uerr != nil {
			return uerr
		}

		in := AdjustInput{ReceiptID: uint(id), PerformedBy: userName}
		for _, l := range body.Lines {
			in.Lines = append(in.Lines, AdjustLineInput{
				ReceiptLineID:    l.ReceiptLineID,
				QuantityReceived: l.QuantityReceived,
			})
		}

		tx := database.DB.Begin()
		if tx.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İşlem başlatılamadı")
		}

		comp, err := Adjust(tx, baseURL, in)
		if err != nil {
			tx.Rollback()
			return mapReceiptError(err)
		}
		if err := tx.Commit().Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İşlem tamamlanamadı")
		}

		_ = audit.WriteLog(audit.LogOptions{
			UnitID:      &comp.UnitID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  "receipt",
			EntityID:    uint(id),
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("İrsaliye #%d düzeltildi, tamamlayıcı irsaliye oluşturuldu: %s", id, comp.Number),
			After:       comp,
		})

		if err := database.DB.
			Preload("Unit").
			Preload("Order").
			Preload("Lines.OrderLine.ContractItem").
			First(comp, comp.ID).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İrsaliye yüklenemedi")
		}
		return c.Status(fiber.StatusCreated).JSON(receiptToResponse(comp))
	}
}

// GET /api/receipts/:id/qr — onay linkinin QR kodunu PNG olarak döner
func ReceiptQRHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz irsaliye ID")
		}

		var r models.Receipt
		if err := database.DB.First(&r, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "İrsaliye bulunamadı")
		}

		png, err := qrcode.Encode(r.ConfirmationURL, qrcode.Medium, 256)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "QR kodu oluşturulamadı")
		}

		c.Set(fiber.HeaderContentType, "image/png")
		return c.Send(png)
	}
}

// Servis hatalarını HTTP yanıtlarına çevir
func mapReceiptError(err error) error {
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return fiber.NewError(fiber.StatusNotFound, notFound.Error())
	}
	var processed *AlreadyProcessedError
	if errors.As(err, &processed) {
		return fiber.NewError(fiber.StatusConflict, processed.Error())
	}
	var adjusted *AlreadyAdjustedError
	if errors.As(err, &adjusted) {
		return fiber.NewError(fiber.StatusConflict, adjusted.Error())
	}
	var noDiscrepancy *NoDiscrepancyError
	if errors.As(err, &noDiscrepancy) {
		return fiber.NewError(fiber.StatusUnprocessableEntity, noDiscrepancy.Error())
	}
	var orderState *OrderStateError
	if errors.As(err, &orderState) {
		return fiber.NewError(fiber.StatusConflict, orderState.Error())
	}
	var insufficient *contract.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		return fiber.NewError(fiber.StatusUnprocessableEntity, insufficient.Error())
	}
	var integrity *contract.DataIntegrityError
	if errors.As(err, &integrity) {
		return fiber.NewError(fiber.StatusBadRequest, integrity.Error())
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Kayıt bulunamadı")
	}
	return fiber.NewError(fiber.StatusInternalServerError, "İşlem başarısız: "+err.Error())
}

// Yardımcı: Kullanıcı bilgilerini al
func getUserInfo(c *fiber.Ctx) (uint, string, error) {
	userIDVal := c.Locals(auth.CtxUserIDKey)
	userID, ok := userIDVal.(uint)
	if !ok {
		return 0, "", fiber.NewError(fiber.StatusForbidden, "Kullanıcı bilgisi alınamadı")
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return 0, "", fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı bulunamadı")
	}
	return userID, user.Name, nil
}
