package stock

import (
	"fmt"
	"time"

	"tedarik-backend/internal/database"
	"tedarik-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
)

var kindLabels = map[models.MovementKind]string{
	models.MovementIn:       "Giriş",
	models.MovementOut:      "Çıkış",
	models.MovementAdjust:   "Sayım Düzeltmesi",
	models.MovementTransfer: "Aktarım",
	models.MovementDispose:  "İmha",
}

// GET /api/stock/export?unit_id=&start=&end=
//
// Hareket defterini Excel olarak indirir. Tarih aralığı verilmezse tüm
// kayıtlar döner; unit_id ile tek birime daraltılabilir.
func ExportMovementsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.
			Preload("StockEntry.Unit").
			Preload("StockEntry.ContractItem").
			Joins("JOIN stock_entries ON stock_entries.id = stock_movements.stock_entry_id")

		if uid := c.QueryInt("unit_id"); uid > 0 {
			dbq = dbq.Where("stock_entries.unit_id = ?", uid)
		}
		if start := c.Query("start"); start != "" {
			d, err := time.Parse("2006-01-02", start)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "start formatı 'YYYY-MM-DD' olmalı")
			}
			dbq = dbq.Where("stock_movements.created_at >= ?", d)
		}
		if end := c.Query("end"); end != "" {
			d, err := time.Parse("2006-01-02", end)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "end formatı 'YYYY-MM-DD' olmalı")
			}
			dbq = dbq.Where("stock_movements.created_at < ?", d.AddDate(0, 0, 1))
		}

		var movements []models.StockMovement
		if err := dbq.Order("stock_movements.created_at").Find(&movements).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Hareketler okunamadı")
		}

		f := excelize.NewFile()
		defer f.Close()

		sheet := "Stok Hareketleri"
		f.SetSheetName("Sheet1", sheet)

		headers := []string{"Tarih", "Birim", "Kalem", "Havuz", "Tür", "Miktar", "Önce", "Sonra", "Açıklama", "İşlemi Yapan"}
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(sheet, cell, h)
		}

		for row, m := range movements {
			values := []any{
				m.CreatedAt.Format("2006-01-02 15:04"),
				m.StockEntry.Unit.Name,
				m.StockEntry.ContractItem.Name,
				m.StockEntry.Pool.Label(),
				kindLabels[m.Kind],
				m.Quantity,
				m.QuantityBefore,
				m.QuantityAfter,
				m.Reason,
				m.PerformedBy,
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
				f.SetCellValue(sheet, cell, v)
			}
		}

		f.SetColWidth(sheet, "A", "A", 17)
		f.SetColWidth(sheet, "B", "C", 25)
		f.SetColWidth(sheet, "I", "I", 40)

		buf, err := f.WriteToBuffer()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Excel dosyası oluşturulamadı")
		}

		filename := fmt.Sprintf("stok-hareketleri-%s.xlsx", time.Now().Format("2006-01-02"))
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
		return c.Send(buf.Bytes())
	}
}
