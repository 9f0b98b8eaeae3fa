package stock

import (
	"errors"
	"fmt"

	"tedarik-backend/internal/audit"
	"tedarik-backend/internal/auth"
	"tedarik-backend/internal/contract"
	"tedarik-backend/internal/database"
	"tedarik-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateMovementRequest struct {
	StockEntryID   uint    `json:"stock_entry_id"`
	Kind           string  `json:"kind"` // in | out | adjust | transfer | dispose
	Quantity       float64 `json:"quantity"`
	Reason         string  `json:"reason"`
	TransferUnitID *uint   `json:"transfer_unit_id"`
	DisposalPhoto  string  `json:"disposal_photo"`
}

type StockEntryResponse struct {
	ID              uint        `json:"id"`
	UnitID          uint        `json:"unit_id"`
	UnitName        string      `json:"unit_name"`
	ContractItemID  uint        `json:"contract_item_id"`
	ItemName        string      `json:"item_name"`
	ItemUnit        string      `json:"item_unit"`
	Pool            models.Pool `json:"pool"`
	PoolLabel       string      `json:"pool_label"`
	CurrentQuantity float64     `json:"current_quantity"`
	MinimumQuantity float64     `json:"minimum_quantity"`
	BelowMinimum    bool        `json:"below_minimum"`
	UpdatedAt       string      `json:"updated_at"`
}

func entryToResponse(e *models.StockEntry) StockEntryResponse {
	return StockEntryResponse{
		ID:              e.ID,
		UnitID:          e.UnitID,
		UnitName:        e.Unit.Name,
		ContractItemID:  e.ContractItemID,
		ItemName:        e.ContractItem.Name,
		ItemUnit:        e.ContractItem.Unit,
		Pool:            e.Pool,
		PoolLabel:       e.Pool.Label(),
		CurrentQuantity: e.CurrentQuantity,
		MinimumQuantity: e.MinimumQuantity,
		BelowMinimum:    e.MinimumQuantity > 0 && e.CurrentQuantity < e.MinimumQuantity,
		UpdatedAt:       e.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

type MovementResponse struct {
	ID             uint                `json:"id"`
	StockEntryID   uint                `json:"stock_entry_id"`
	Kind           models.MovementKind `json:"kind"`
	Quantity       float64             `json:"quantity"`
	QuantityBefore float64             `json:"quantity_before"`
	QuantityAfter  float64             `json:"quantity_after"`
	Reason         string              `json:"reason"`
	PerformedBy    string              `json:"performed_by"`
	ReceiptID      *uint               `json:"receipt_id,omitempty"`
	TransferUnitID *uint               `json:"transfer_unit_id,omitempty"`
	DisposalPhoto  string              `json:"disposal_photo,omitempty"`
	CreatedAt      string              `json:"created_at"`
}

func movementToResponse(m *models.StockMovement) MovementResponse {
	return MovementResponse{
		ID:             m.ID,
		StockEntryID:   m.StockEntryID,
		Kind:           m.Kind,
		Quantity:       m.Quantity,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		Reason:         m.Reason,
		PerformedBy:    m.PerformedBy,
		ReceiptID:      m.ReceiptID,
		TransferUnitID: m.TransferUnitID,
		DisposalPhoto:  m.DisposalPhoto,
		CreatedAt:      m.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// GET /api/stock?unit_id=&contract_item_id=&low=true
func ListStockHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Preload("Unit").Preload("ContractItem")

		if uid := c.QueryInt("unit_id"); uid > 0 {
			dbq = dbq.Where("unit_id = ?", uid)
		}
		if iid := c.QueryInt("contract_item_id"); iid > 0 {
			dbq = dbq.Where("contract_item_id = ?", iid)
		}
		if c.QueryBool("low") {
			dbq = dbq.Where("minimum_quantity > 0 AND current_quantity < minimum_quantity")
		}

		// Birim sorumlusu yalnızca kendi biriminin stoklarını görür
		if role, ok := c.Locals(auth.CtxUserRoleKey).(models.UserRole); ok && role == models.RoleUnitManager {
			if unitID, ok := c.Locals(auth.CtxUnitIDKey).(*uint); ok && unitID != nil {
				dbq = dbq.Where("unit_id = ?", *unitID)
			}
		}

		var entries []models.StockEntry
		if err := dbq.Order("unit_id, contract_item_id").Find(&entries).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Stok kayıtları listelenemedi")
		}

		resp := make([]StockEntryResponse, 0, len(entries))
		for i := range entries {
			resp = append(resp, entryToResponse(&entries[i]))
		}
		return c.JSON(resp)
	}
}

// GET /api/stock/:id/movements — bir kaydın hareket geçmişi (yeniden eskiye)
func ListMovementsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz stok kaydı ID")
		}

		var entry models.StockEntry
		if err := database.DB.Preload("Unit").Preload("ContractItem").First(&entry, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Stok kaydı bulunamadı")
		}

		var movements []models.StockMovement
		if err := database.DB.
			Where("stock_entry_id = ?", entry.ID).
			Order("created_at DESC, id DESC").
			Find(&movements).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Hareketler listelenemedi")
		}

		resp := make([]MovementResponse, 0, len(movements))
		for i := range movements {
			resp = append(resp, movementToResponse(&movements[i]))
		}
		return c.JSON(fiber.Map{"entry": entryToResponse(&entry), "movements": resp})
	}
}

// POST /api/stock/movements — manuel stok hareketi
func CreateMovementHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateMovementRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if body.StockEntryID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "stock_entry_id zorunlu")
		}
		if body.Quantity <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "quantity 0'dan büyük olmalı")
		}
		if body.Reason == "" {
			return fiber.NewError(fiber.StatusBadRequest, "reason zorunlu")
		}
		kind := models.MovementKind(body.Kind)
		switch kind {
		case models.MovementIn, models.MovementOut, models.MovementAdjust, models.MovementTransfer, models.MovementDispose:
		default:
			return fiber.NewError(fiber.StatusBadRequest, "kind değeri in/out/adjust/transfer/dispose olmalı")
		}

		userID, userName, uerr := getUserInfo(c)
		if uerr != nil {
			return uerr
		}

		tx := database.DB.Begin()
		if tx.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İşlem başlatılamadı")
		}

		m, err := Apply(tx, MovementInput{
			StockEntryID:   body.StockEntryID,
			Kind:           kind,
			Quantity:       body.Quantity,
			Reason:         body.Reason,
			PerformedBy:    userName,
			TransferUnitID: body.TransferUnitID,
			DisposalPhoto:  body.DisposalPhoto,
		})
		if err != nil {
			tx.Rollback()
			return mapStockError(err)
		}
		if err := tx.Commit().Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İşlem tamamlanamadı")
		}

		_ = audit.WriteLog(audit.LogOptions{
			UserID:      userID,
			UserName:    userName,
			EntityType:  "stock_movement",
			EntityID:    m.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Stok hareketi: %s %.2f (kayıt #%d)", m.Kind, m.Quantity, m.StockEntryID),
			After:       m,
		})

		return c.Status(fiber.StatusCreated).JSON(movementToResponse(m))
	}
}

type UpdateMinimumRequest struct {
	MinimumQuantity float64 `json:"minimum_quantity"`
}

// PUT /api/stock/:id/minimum — kritik stok eşiğini günceller
func UpdateMinimumHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz stok kaydı ID")
		}

		var body UpdateMinimumRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if body.MinimumQuantity < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "minimum_quantity negatif olamaz")
		}

		var entry models.StockEntry
		if err := database.DB.First(&entry, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Stok kaydı bulunamadı")
		}

		old := entry.MinimumQuantity
		entry.MinimumQuantity = body.MinimumQuantity
		if err := database.DB.Save(&entry).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Eşik güncellenemedi")
		}

		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "stock_entry",
				EntityID:    entry.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Kritik stok eşiği güncellendi: %.2f → %.2f", old, body.MinimumQuantity),
				After:       entry,
			})
		}

		return c.JSON(fiber.Map{"message": "Eşik güncellendi", "minimum_quantity": entry.MinimumQuantity})
	}
}

// Servis hatalarını HTTP yanıtlarına çevir
func mapStockError(err error) error {
	var insufficientStock *InsufficientStockError
	if errors.As(err, &insufficientStock) {
		return fiber.NewError(fiber.StatusUnprocessableEntity, insufficientStock.Error())
	}
	var missingDest *MissingDestinationError
	if errors.As(err, &missingDest) {
		return fiber.NewError(fiber.StatusBadRequest, missingDest.Error())
	}
	var missingEvidence *MissingEvidenceError
	if errors.As(err, &missingEvidence) {
		return fiber.NewError(fiber.StatusBadRequest, missingEvidence.Error())
	}
	var insufficientBalance *contract.InsufficientBalanceError
	if errors.As(err, &insufficientBalance) {
		return fiber.NewError(fiber.StatusUnprocessableEntity, insufficientBalance.Error())
	}
	var integrity *contract.DataIntegrityError
	if errors.As(err, &integrity) {
		return fiber.NewError(fiber.StatusBadRequest, integrity.Error())
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Stok kaydı bulunamadı")
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
