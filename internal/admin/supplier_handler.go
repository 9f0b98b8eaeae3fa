package admin

import (
	"strings"

	"tedarik-backend/internal/database"
	"tedarik-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type SupplierResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	TaxNumber string `json:"tax_number"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

type CreateSupplierRequest struct {
	Name      string `json:"name"`
	TaxNumber string `json:"tax_number"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

type UpdateSupplierRequest struct {
	Name      *string `json:"name"`
	TaxNumber *string `json:"tax_number"`
	Phone     *string `json:"phone"`
	Email     *string `json:"email"`
}

func supplierToResponse(s *models.Supplier) SupplierResponse {
	return SupplierResponse{
		ID:        s.ID,
		Name:      s.Name,
		TaxNumber: s.TaxNumber,
		Phone:     s.Phone,
		Email:     s.Email,
		CreatedAt: s.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func CreateSupplierHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateSupplierRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri gönderildi")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Tedarikçi adı boş olamaz")
		}

		supplier := models.Supplier{
			Name:      body.Name,
			TaxNumber: strings.TrimSpace(body.TaxNumber),
			Phone:     strings.TrimSpace(body.Phone),
			Email:     strings.ToLower(strings.TrimSpace(body.Email)),
		}
		if err := database.DB.Create(&supplier).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Tedarikçi oluşturulamadı")
		}

		return c.Status(fiber.StatusCreated).JSON(supplierToResponse(&supplier))
	}
}

func ListSuppliersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {

		var suppliers []models.Supplier
		if err := database.DB.Order("name").Find(&suppliers).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Tedarikçiler listelenemedi")
		}

		res := make([]SupplierResponse, 0, len(suppliers))
		for i := range suppliers {
			res = append(res, supplierToResponse(&suppliers[i]))
		}
		return c.JSON(res)
	}
}

func GetSupplierHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var supplier models.Supplier
		if err := database.DB.First(&supplier, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Tedarikçi bulunamadı")
		}
		return c.JSON(supplierToResponse(&supplier))
	}
}

func UpdateSupplierHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var supplier models.Supplier
		if err := database.DB.First(&supplier, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Tedarikçi bulunamadı")
		}

		var body UpdateSupplierRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri gönderildi")
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Tedarikçi adı boş olamaz")
			}
			supplier.Name = name
		}
		if body.TaxNumber != nil {
			supplier.TaxNumber = strings.TrimSpace(*body.TaxNumber)
		}
		if body.Phone != nil {
			supplier.Phone = strings.TrimSpace(*body.Phone)
		}
		if body.Email != nil {
			supplier.Email = strings.ToLower(strings.TrimSpace(*body.Email))
		}

		if err := database.DB.Save(&supplier).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Tedarikçi güncellenemedi")
		}
		return c.JSON(supplierToResponse(&supplier))
	}
}

func DeleteSupplierHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		// Sözleşmesi olan tedarikçi silinemez
		var contractCount int64
		database.DB.Model(&models.Contract{}).Where("supplier_id = ?", id).Count(&contractCount)
		if contractCount > 0 {
			return fiber.NewError(fiber.StatusConflict, "Sözleşmesi olan tedarikçi silinemez")
		}

		if err := database.DB.Delete(&models.Supplier{}, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Tedarikçi silinemedi")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
