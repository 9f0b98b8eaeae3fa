package order

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
	"gorm.io/gorm"
)

type CreateOrderRequest struct {
	ContractID         uint                     `json:"contract_id"`
	ExpectedDeliveryAt string                   `json:"expected_delivery_at"` // "2026-03-15"
	Lines              []CreateOrderLineRequest `json:"lines"`
}

type CreateOrderLineRequest struct {
	UnitID         uint    `json:"unit_id"`
	ContractItemID uint    `json:"contract_item_id"`
	Quantity       float64 `json:"quantity"`
}

type OrderResponse struct {
	ID                 uint                `json:"id"`
	Number             string              `json:"number"`
	ContractID         uint                `json:"contract_id"`
	Status             models.OrderStatus  `json:"status"`
	OrderedAt          string              `json:"ordered_at"`
	ExpectedDeliveryAt string              `json:"expected_delivery_at"`
	TotalValue         float64             `json:"total_value"`
	Lines              []OrderLineResponse `json:"lines"`
	CreatedAt          string              `json:"created_at"`
}

type OrderLineResponse struct {
	ID              uint    `json:"id"`
	ContractItemID  uint    `json:"contract_item_id"`
	ItemName        string  `json:"item_name"`
	UnitID          uint    `json:"unit_id"`
	UnitName        string  `json:"unit_name"`
	QuantityOrdered float64 `json:"quantity_ordered"`
}

func orderToResponse(o *models.Order) OrderResponse {
	lines := make([]OrderLineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, OrderLineResponse{
			ID:              l.ID,
			ContractItemID:  l.ContractItemID,
			ItemName:        l.ContractItem.Name,
			UnitID:          l.UnitID,
			UnitName:        l.Unit.Name,
			QuantityOrdered: l.QuantityOrdered,
		})
	}
	return OrderResponse{
		ID:                 o.ID,
		Number:             o.Number,
		ContractID:         o.ContractID,
		Status:             o.Status,
		OrderedAt:          o.OrderedAt.Format("2006-01-02 15:04:05"),
		ExpectedDeliveryAt: o.ExpectedDeliveryAt.Format("2006-01-02"),
		TotalValue:         o.TotalValue,
		Lines:              lines,
		CreatedAt:          o.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// POST /api/orders
func CreateOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateOrderRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		if body.ContractID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "contract_id zorunlu")
		}
		if len(body.Lines) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "En az bir sipariş satırı eklenmelidir")
		}
		for _, l := range body.Lines {
			if l.UnitID == 0 || l.ContractItemID == 0 || l.Quantity <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "Her satır için unit_id, contract_item_id ve 0'dan büyük quantity zorunlu")
			}
		}

		expected, err := time.Parse("2006-01-02", body.ExpectedDeliveryAt)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "expected_delivery_at formatı 'YYYY-MM-DD' olmalı")
		}

		in := PlaceInput{
			ContractID:         body.ContractID,
			ExpectedDeliveryAt: expected,
		}
		for _, l := range body.Lines {
			in.Lines = append(in.Lines, PlaceLineInput{
				UnitID:         l.UnitID,
				ContractItemID: l.ContractItemID,
				Quantity:       l.Quantity,
			})
		}

		tx := database.DB.Begin()
		if tx.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İşlem başlatılamadı")
		}

		o, err := Place(tx, in)
		if err != nil {
			tx.Rollback()
			return mapOrderError(err)
		}

		if err := tx.Commit().Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İşlem tamamlanamadı")
		}

		// Satırları ilişkileriyle tekrar yükle
		if err := database.DB.Preload("Lines.ContractItem").Preload("Lines.Unit").First(o, o.ID).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Sipariş yüklenemedi")
		}

		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "order",
				EntityID:    o.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Sipariş verildi: %s (%d satır, %.2f TL)", o.Number, len(o.Lines), o.TotalValue),
				After:       o,
			})
		}

		return c.Status(fiber.StatusCreated).JSON(orderToResponse(o))
	}
}

// GET /api/orders?contract_id=&status=
func ListOrdersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.
			Preload("Lines.ContractItem").
			Preload("Lines.Unit")

		if cid := c.QueryInt("contract_id"); cid > 0 {
			dbq = dbq.Where("contract_id = ?", cid)
		}
		if status := c.Query("status"); status != "" {
			dbq = dbq.Where("status = ?", status)
		}

		var orders []models.Order
		if err := dbq.Order("ordered_at DESC").Find(&orders).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Siparişler listelenemedi")
		}

		resp := make([]OrderResponse, 0, len(orders))
		for i := range orders {
			resp = append(resp, orderToResponse(&orders[i]))
		}
		return c.JSON(resp)
	}
}

// GET /api/orders/:id
func GetOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var o models.Order
		if err := database.DB.
			Preload("Lines.ContractItem").
			Preload("Lines.Unit").
			First(&o, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Sipariş bulunamadı")
		}
		return c.JSON(orderToResponse(&o))
	}
}

// POST /api/orders/:id/confirm
func ConfirmOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz sipariş ID")
		}

		tx := database.DB.Begin()
		if tx.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İşlem başlatılamadı")
		}

		o, err := Confirm(tx, uint(id))
		if err != nil {
			tx.Rollback()
			return mapOrderError(err)
		}
		if err := tx.Commit().Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İşlem tamamlanamadı")
		}

		return c.JSON(fiber.Map{"message": "Sipariş onaylandı", "order_id": o.ID, "status": o.Status})
	}
}

// POST /api/orders/:id/cancel
func CancelOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz sipariş ID")
		}

		tx := database.DB.Begin()
		if tx.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İşlem başlatılamadı")
		}

		o, err := Cancel(tx, uint(id))
		if err != nil {
			tx.Rollback()
			return mapOrderError(err)
		}
		if err := tx.Commit().Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İşlem tamamlanamadı")
		}

		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "order",
				EntityID:    o.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Sipariş iptal edildi: %s, bakiyeler iade edildi", o.Number),
				After:       o,
			})
		}

		return c.JSON(fiber.Map{"message": "Sipariş iptal edildi, bakiyeler iade edildi", "order_id": o.ID})
	}
}

// Servis hatalarını HTTP yanıtlarına çevir
func mapOrderError(err error) error {
	var insufficient *contract.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		return fiber.NewError(fiber.StatusUnprocessableEntity, insufficient.Error())
	}
	var integrity *contract.DataIntegrityError
	if errors.As(err, &integrity) {
		return fiber.NewError(fiber.StatusBadRequest, integrity.Error())
	}
	var status *StatusError
	if errors.As(err, &status) {
		return fiber.NewError(fiber.StatusConflict, status.Error())
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Sipariş bulunamadı")
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
