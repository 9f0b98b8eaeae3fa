package contract

import (
	"fmt"
	"strings"
	"time"

	"tedarik-backend/internal/audit"
	"tedarik-backend/internal/auth"
	"tedarik-backend/internal/database"
	"tedarik-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CreateContractRequest struct {
	Number     string                      `json:"number"`
	SupplierID uint                        `json:"supplier_id"`
	StartDate  string                      `json:"start_date"` // "2026-01-01"
	EndDate    string                      `json:"end_date"`
	Note       string                      `json:"note"`
	Items      []CreateContractItemRequest `json:"items"`
}

type CreateContractItemRequest struct {
	Name            string  `json:"name"`
	Unit            string  `json:"unit"` // kg, adet, koli vs.
	UnitPrice       float64 `json:"unit_price"`
	DaycareQuantity float64 `json:"daycare_quantity"` // kreş havuzu tahsisi
	SchoolQuantity  float64 `json:"school_quantity"`  // okul havuzu tahsisi
}

type ContractResponse struct {
	ID         uint                   `json:"id"`
	Number     string                 `json:"number"`
	SupplierID uint                   `json:"supplier_id"`
	Supplier   string                 `json:"supplier"`
	StartDate  string                 `json:"start_date"`
	EndDate    string                 `json:"end_date"`
	Note       string                 `json:"note"`
	Items      []ContractItemResponse `json:"items"`
	CreatedAt  string                 `json:"created_at"`
}

type ContractItemResponse struct {
	ID               uint    `json:"id"`
	Name             string  `json:"name"`
	Unit             string  `json:"unit"`
	UnitPrice        float64 `json:"unit_price"`
	OriginalQuantity float64 `json:"original_quantity"`
	CurrentBalance   float64 `json:"current_balance"`
	DaycareBalance   float64 `json:"daycare_balance"`
	SchoolBalance    float64 `json:"school_balance"`
}

func contractToResponse(ct *models.Contract) ContractResponse {
	items := make([]ContractItemResponse, 0, len(ct.Items))
	for _, it := range ct.Items {
		items = append(items, ContractItemResponse{
			ID:               it.ID,
			Name:             it.Name,
			Unit:             it.Unit,
			UnitPrice:        it.UnitPrice,
			OriginalQuantity: it.OriginalQuantity,
			CurrentBalance:   it.CurrentBalance,
			DaycareBalance:   it.DaycareBalance,
			SchoolBalance:    it.SchoolBalance,
		})
	}
	return ContractResponse{
		ID:         ct.ID,
		Number:     ct.Number,
		SupplierID: ct.SupplierID,
		Supplier:   ct.Supplier.Name,
		StartDate:  ct.StartDate.Format("2006-01-02"),
		EndDate:    ct.EndDate.Format("2006-01-02"),
		Note:       ct.Note,
		Items:      items,
		CreatedAt:  ct.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// POST /api/admin/contracts
func CreateContractHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateContractRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		body.Number = strings.TrimSpace(body.Number)
		if body.Number == "" || body.SupplierID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "number ve supplier_id zorunlu")
		}
		if len(body.Items) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "En az bir sözleşme kalemi eklenmelidir")
		}

		start, err := time.Parse("2006-01-02", body.StartDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "start_date formatı 'YYYY-MM-DD' olmalı")
		}
		end, err := time.Parse("2006-01-02", body.EndDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "end_date formatı 'YYYY-MM-DD' olmalı")
		}
		if end.Before(start) {
			return fiber.NewError(fiber.StatusBadRequest, "end_date start_date'ten önce olamaz")
		}

		var supplier models.Supplier
		if err := database.DB.First(&supplier, "id = ?", body.SupplierID).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Tedarikçi bulunamadı (ID: %d)", body.SupplierID))
		}

		items := make([]models.ContractItem, 0, len(body.Items))
		for _, it := range body.Items {
			if strings.TrimSpace(it.Name) == "" || it.Unit == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Her kalem için name ve unit zorunlu")
			}
			if it.UnitPrice <= 0 || it.DaycareQuantity < 0 || it.SchoolQuantity < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "unit_price 0'dan büyük, havuz miktarları negatif olmamalı")
			}
			total := it.DaycareQuantity + it.SchoolQuantity
			if total <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("'%s' kalemi için toplam miktar 0'dan büyük olmalı", it.Name))
			}

			// Başlangıçta tahsisin tamamı kullanılabilir bakiyedir
			items = append(items, models.ContractItem{
				Name:             strings.TrimSpace(it.Name),
				Unit:             it.Unit,
				UnitPrice:        it.UnitPrice,
				OriginalQuantity: total,
				CurrentBalance:   total,
				DaycareBalance:   it.DaycareQuantity,
				SchoolBalance:    it.SchoolQuantity,
			})
		}

		ct := models.Contract{
			Number:     body.Number,
			SupplierID: body.SupplierID,
			StartDate:  start,
			EndDate:    end,
			Note:       body.Note,
			Items:      items,
		}

		if err := database.DB.Create(&ct).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Sözleşme oluşturulamadı")
		}
		ct.Supplier = supplier

		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "contract",
				EntityID:    ct.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Sözleşme eklendi: %s (%d kalem)", ct.Number, len(ct.Items)),
				After:       ct,
			})
		}

		return c.Status(fiber.StatusCreated).JSON(contractToResponse(&ct))
	}
}

// GET /api/contracts
func ListContractsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var contracts []models.Contract
		if err := database.DB.
			Preload("Items").
			Preload("Supplier").
			Order("start_date DESC").
			Find(&contracts).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Sözleşmeler listelenemedi")
		}

		resp := make([]ContractResponse, 0, len(contracts))
		for i := range contracts {
			resp = append(resp, contractToResponse(&contracts[i]))
		}
		return c.JSON(resp)
	}
}

// GET /api/contracts/:id
func GetContractHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var ct models.Contract
		if err := database.DB.Preload("Items").Preload("Supplier").First(&ct, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Sözleşme bulunamadı")
		}
		return c.JSON(contractToResponse(&ct))
	}
}

type UpdateContractRequest struct {
	Number  *string `json:"number"`
	EndDate *string `json:"end_date"`
	Note    *string `json:"note"`
}

// PUT /api/admin/contracts/:id
// Sadece sözleşme üst bilgisi güncellenir; kalem bakiyeleri yalnızca
// sipariş/mutabakat/manuel hareket yollarından değişir.
func UpdateContractHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var ct models.Contract
		if err := database.DB.Preload("Items").Preload("Supplier").First(&ct, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Sözleşme bulunamadı")
		}

		var body UpdateContractRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		if body.Number != nil {
			n := strings.TrimSpace(*body.Number)
			if n == "" {
				return fiber.NewError(fiber.StatusBadRequest, "number boş olamaz")
			}
			ct.Number = n
		}
		if body.EndDate != nil {
			end, err := time.Parse("2006-01-02", *body.EndDate)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "end_date formatı 'YYYY-MM-DD' olmalı")
			}
			ct.EndDate = end
		}
		if body.Note != nil {
			ct.Note = *body.Note
		}

		if err := database.DB.Save(&ct).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Sözleşme güncellenemedi")
		}
		return c.JSON(contractToResponse(&ct))
	}
}

// DELETE /api/admin/contracts/:id
// Herhangi bir kalemi sipariş satırında referanslıysa silinemez.
func DeleteContractHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var ct models.Contract
		if err := database.DB.Preload("Items").First(&ct, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Sözleşme bulunamadı")
		}

		itemIDs := make([]uint, 0, len(ct.Items))
		for _, it := range ct.Items {
			itemIDs = append(itemIDs, it.ID)
		}

		var lineCount int64
		if len(itemIDs) > 0 {
			database.DB.Model(&models.OrderLine{}).Where("contract_item_id IN ?", itemIDs).Count(&lineCount)
		}
		if lineCount > 0 {
			return fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("Sözleşme silinemez: kalemlerine bağlı %d sipariş satırı var", lineCount))
		}

		if err := database.DB.Select("Items").Delete(&ct).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Sözleşme silinemedi")
		}

		userID, userName, uerr := getUserInfo(c)
		if uerr == nil {
			_ = audit.WriteLog(audit.LogOptions{
				UserID:      userID,
				UserName:    userName,
				EntityType:  "contract",
				EntityID:    ct.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("Sözleşme silindi: %s", ct.Number),
				Before:      ct,
			})
		}

		return c.JSON(fiber.Map{"message": "Sözleşme silindi"})
	}
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
