package admin

import (
	"strings"

	"tedarik-backend/internal/database"
	"tedarik-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type UnitResponse struct {
	ID                uint   `json:"id"`
	Name              string `json:"name"`
	Address           string `json:"address"`
	Phone             string `json:"phone"`
	NurseryCount      uint   `json:"nursery_count"`
	PreschoolCount    uint   `json:"preschool_count"`
	KindergartenCount uint   `json:"kindergarten_count"`
	Pool              string `json:"pool"`       // daycare | school
	PoolLabel         string `json:"pool_label"` // kreş | okul
	CreatedAt         string `json:"created_at"`
}

type CreateUnitRequest struct {
	Name              string  `json:"name"`
	Address           string  `json:"address"`
	Phone             *string `json:"phone"` // Opsiyonel
	NurseryCount      uint    `json:"nursery_count"`
	PreschoolCount    uint    `json:"preschool_count"`
	KindergartenCount uint    `json:"kindergarten_count"`
}

type UpdateUnitRequest struct {
	Name              *string `json:"name"`
	Address           *string `json:"address"`
	Phone             *string `json:"phone"`
	NurseryCount      *uint   `json:"nursery_count"`
	PreschoolCount    *uint   `json:"preschool_count"`
	KindergartenCount *uint   `json:"kindergarten_count"`
}

type CreateUnitManagerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UnitManagerResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	UnitID    *uint  `json:"unit_id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func unitToResponse(u *models.Unit) UnitResponse {
	pool := models.PoolForUnit(u)
	return UnitResponse{
		ID:                u.ID,
		Name:              u.Name,
		Address:           u.Address,
		Phone:             u.Phone,
		NurseryCount:      u.NurseryCount,
		PreschoolCount:    u.PreschoolCount,
		KindergartenCount: u.KindergartenCount,
		Pool:              string(pool),
		PoolLabel:         pool.Label(),
		CreatedAt:         u.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// ----------------------------------------
// BİRİM CRUD
// ----------------------------------------

func CreateUnitHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUnitRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri gönderildi")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Birim adı boş olamaz")
		}

		unit := models.Unit{
			Name:              body.Name,
			Address:           body.Address,
			NurseryCount:      body.NurseryCount,
			PreschoolCount:    body.PreschoolCount,
			KindergartenCount: body.KindergartenCount,
		}
		if body.Phone != nil {
			unit.Phone = strings.TrimSpace(*body.Phone)
		}

		if err := database.DB.Create(&unit).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Birim oluşturulamadı")
		}

		return c.Status(fiber.StatusCreated).JSON(unitToResponse(&unit))
	}
}

func ListUnitsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {

		var units []models.Unit
		if err := database.DB.Find(&units).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Birimler listelenemedi")
		}

		res := make([]UnitResponse, 0, len(units))
		for i := range units {
			res = append(res, unitToResponse(&units[i]))
		}

		return c.JSON(res)
	}
}

func GetUnitHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var unit models.Unit
		if err := database.DB.First(&unit, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Birim bulunamadı")
		}

		return c.JSON(unitToResponse(&unit))
	}
}

func UpdateUnitHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var unit models.Unit
		if err := database.DB.First(&unit, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Birim bulunamadı")
		}

		var body UpdateUnitRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri gönderildi")
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Birim adı boş olamaz")
			}
			unit.Name = name
		}
		if body.Address != nil {
			unit.Address = *body.Address
		}
		if body.Phone != nil {
			unit.Phone = strings.TrimSpace(*body.Phone)
		}

		// Mevcut sayıları değiştirmek birimin havuzunu da değiştirebilir;
		// değişiklik yalnızca sonraki işlemleri etkiler, geçmiş kayıtlar
		// yazıldıkları havuzda kalır
		if body.NurseryCount != nil {
			unit.NurseryCount = *body.NurseryCount
		}
		if body.PreschoolCount != nil {
			unit.PreschoolCount = *body.PreschoolCount
		}
		if body.KindergartenCount != nil {
			unit.KindergartenCount = *body.KindergartenCount
		}

		if err := database.DB.Save(&unit).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Birim güncellenemedi")
		}

		return c.JSON(unitToResponse(&unit))
	}
}

func DeleteUnitHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		// Stok kaydı veya irsaliyesi olan birim silinemez
		var stockCount, receiptCount int64
		database.DB.Model(&models.StockEntry{}).Where("unit_id = ?", id).Count(&stockCount)
		database.DB.Model(&models.Receipt{}).Where("unit_id = ?", id).Count(&receiptCount)
		if stockCount > 0 || receiptCount > 0 {
			return fiber.NewError(fiber.StatusConflict, "Stok veya irsaliye kaydı olan birim silinemez")
		}

		if err := database.DB.Delete(&models.Unit{}, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Birim silinemedi")
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ----------------------------------------
// BİRİM SORUMLUSU OLUŞTURMA
// ----------------------------------------

func CreateUnitManagerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {

		unitID := c.Params("id")

		// Birim kontrolü
		var unit models.Unit
		if err := database.DB.First(&unit, "id = ?", unitID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Birim bulunamadı")
		}

		var body CreateUnitManagerRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri gönderildi")
		}

		body.Email = strings.ToLower(strings.TrimSpace(body.Email))
		body.Name = strings.TrimSpace(body.Name)

		if body.Name == "" || body.Email == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "İsim, email ve şifre zorunlu")
		}

		// Email kontrolü
		var exist models.User
		if err := database.DB.Where("email = ?", body.Email).First(&exist).Error; err == nil {
			return fiber.NewError(fiber.StatusBadRequest, "Bu email zaten kayıtlı")
		}

		hash, _ := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)

		user := models.User{
			Name:         body.Name,
			Email:        body.Email,
			PasswordHash: string(hash),
			Role:         models.RoleUnitManager,
			UnitID:       &unit.ID,
		}

		if err := database.DB.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Birim sorumlusu oluşturulamadı")
		}

		// NOT: Şifre sadece oluşturma sırasında bir kez döndürülür (güvenlik)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":       user.ID,
			"name":     user.Name,
			"email":    user.Email,
			"role":     user.Role,
			"unit_id":  user.UnitID,
			"password": body.Password, // Sadece oluşturma sırasında (bir kez)
		})
	}
}

// ----------------------------------------
// BİRİM SORUMLULARINI LİSTELE
// GET /api/admin/units/:id/managers
// ----------------------------------------

func ListUnitManagersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		unitID := c.Params("id")

		var users []models.User
		if err := database.DB.
			Where("unit_id = ? AND role = ?", unitID, models.RoleUnitManager).
			Order("created_at DESC").
			Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Sorumlular listelenemedi")
		}

		res := make([]UnitManagerResponse, 0, len(users))
		for _, u := range users {
			res = append(res, UnitManagerResponse{
				ID:        u.ID,
				Name:      u.Name,
				Email:     u.Email,
				Role:      string(u.Role),
				UnitID:    u.UnitID,
				CreatedAt: u.CreatedAt.Format("2006-01-02 15:04:05"),
				UpdatedAt: u.UpdatedAt.Format("2006-01-02 15:04:05"),
			})
		}

		return c.JSON(res)
	}
}
