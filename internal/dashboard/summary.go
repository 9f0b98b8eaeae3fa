package dashboard

import (
	"fmt"
	"time"

	"tedarik-backend/internal/auth"
	"tedarik-backend/internal/database"
	"tedarik-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type ContractItemSummary struct {
	ID               uint    `json:"id"`
	Name             string  `json:"name"`
	Unit             string  `json:"unit"`
	OriginalQuantity float64 `json:"original_quantity"`
	CurrentBalance   float64 `json:"current_balance"`
	DaycareBalance   float64 `json:"daycare_balance"`
	SchoolBalance    float64 `json:"school_balance"`
	ConsumedPercent  float64 `json:"consumed_percent"`
}

type ContractSummary struct {
	ID       uint                  `json:"id"`
	Number   string                `json:"number"`
	Supplier string                `json:"supplier"`
	EndDate  string                `json:"end_date"`
	Items    []ContractItemSummary `json:"items"`
}

type SummaryResponse struct {
	UnitCount           int64             `json:"unit_count"`
	ActiveContractCount int64             `json:"active_contract_count"`
	PendingOrderCount   int64             `json:"pending_order_count"`
	PendingReceiptCount int64             `json:"pending_receipt_count"`
	LowStockCount       int64             `json:"low_stock_count"`
	Contracts           []ContractSummary `json:"contracts"`
}

// GET /api/dashboard/summary
//
// Merkez yönetim paneli: aktif sözleşmelerin kalan bakiyeleri, bekleyen
// sipariş/irsaliye sayıları ve kritik eşiğin altındaki stok sayısı.
func SummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		now := time.Now()
		resp := SummaryResponse{}

		database.DB.Model(&models.Unit{}).Count(&resp.UnitCount)
		database.DB.Model(&models.Contract{}).
			Where("start_date <= ? AND end_date >= ?", now, now).
			Count(&resp.ActiveContractCount)
		database.DB.Model(&models.Order{}).
			Where("status IN ?", []models.OrderStatus{models.OrderStatusPending, models.OrderStatusConfirmed}).
			Count(&resp.PendingOrderCount)
		database.DB.Model(&models.Receipt{}).
			Where("status = ?", models.ReceiptStatusPending).
			Count(&resp.PendingReceiptCount)
		database.DB.Model(&models.StockEntry{}).
			Where("minimum_quantity > 0 AND current_quantity < minimum_quantity").
			Count(&resp.LowStockCount)

		var contracts []models.Contract
		if err := database.DB.
			Preload("Supplier").
			Preload("Items").
			Where("start_date <= ? AND end_date >= ?", now, now).
			Order("end_date").
			Find(&contracts).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Sözleşmeler okunamadı")
		}

		resp.Contracts = make([]ContractSummary, 0, len(contracts))
		for _, ct := range contracts {
			cs := ContractSummary{
				ID:       ct.ID,
				Number:   ct.Number,
				Supplier: ct.Supplier.Name,
				EndDate:  ct.EndDate.Format("2006-01-02"),
			}
			for _, item := range ct.Items {
				consumed := 0.0
				if item.OriginalQuantity > 0 {
					consumed = (item.OriginalQuantity - item.CurrentBalance) / item.OriginalQuantity * 100
				}
				cs.Items = append(cs.Items, ContractItemSummary{
					ID:               item.ID,
					Name:             item.Name,
					Unit:             item.Unit,
					OriginalQuantity: item.OriginalQuantity,
					CurrentBalance:   item.CurrentBalance,
					DaycareBalance:   item.DaycareBalance,
					SchoolBalance:    item.SchoolBalance,
					ConsumedPercent:  consumed,
				})
			}
			resp.Contracts = append(resp.Contracts, cs)
		}

		return c.JSON(resp)
	}
}

type ConsumptionPoint struct {
	Label   string  `json:"label"` // tarih / hafta başlangıcı / ay başlangıcı
	Out     float64 `json:"out"`
	Dispose float64 `json:"dispose"`
	Total   float64 `json:"total"`
}

type ConsumptionChartResponse struct {
	UnitID uint               `json:"unit_id"`
	Period string             `json:"period"` // daily | weekly | monthly
	From   string             `json:"from"`
	To     string             `json:"to"`
	Points []ConsumptionPoint `json:"points"`
}

// context'ten birim id çıkar (unit_manager için JWT, super_admin için query param)
// super_admin için ?unit_id=1 zorunlu
func getUnitIDFromContext(c *fiber.Ctx) (uint, error) {
	roleVal := c.Locals(auth.CtxUserRoleKey)
	role, ok := roleVal.(models.UserRole)
	if !ok {
		return 0, fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
	}

	if role == models.RoleUnitManager {
		unitIDVal := c.Locals(auth.CtxUnitIDKey)
		unitIDPtr, ok := unitIDVal.(*uint)
		if !ok || unitIDPtr == nil {
			return 0, fiber.NewError(fiber.StatusForbidden, "Birim bilgisi bulunamadı")
		}
		return *unitIDPtr, nil
	}

	// super_admin
	uidStr := c.Query("unit_id")
	if uidStr == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, "unit_id zorunlu")
	}
	var uid uint
	if _, err := fmt.Sscan(uidStr, &uid); err != nil || uid == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "unit_id geçersiz")
	}
	return uid, nil
}

// GET /api/dashboard/consumption-chart?period=daily&count=7&unit_id=1
//
// Birimin tüketim (çıkış + imha) hareketlerini zaman dilimine göre toplar.
func ConsumptionChartHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		unitID, err := getUnitIDFromContext(c)
		if err != nil {
			return err
		}

		period := c.Query("period", "daily") // daily | weekly | monthly
		countStr := c.Query("count", "")

		var count int
		if countStr == "" {
			switch period {
			case "weekly":
				count = 8
			case "monthly":
				count = 12
			default:
				period = "daily"
				count = 7
			}
		} else {
			if _, err := fmt.Sscan(countStr, &count); err != nil || count <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "count geçersiz")
			}
		}

		now := time.Now()
		loc := now.Location()
		// bugünün 00:00'ı
		end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		var start time.Time

		switch period {
		case "weekly":
			start = end.AddDate(0, 0, -7*(count-1))
		case "monthly":
			end = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
			start = end.AddDate(0, -(count - 1), 0)
		default:
			period = "daily"
			start = end.AddDate(0, 0, -(count - 1))
		}

		// aggregation sonucu satır yapısı
		type row struct {
			Bucket time.Time `gorm:"column:bucket"`
			Kind   string    `gorm:"column:kind"`
			Total  float64   `gorm:"column:total"`
		}
		var rows []row

		var trunc string
		switch period {
		case "weekly":
			trunc = "week"
		case "monthly":
			trunc = "month"
		default:
			trunc = "day"
		}

		sql := fmt.Sprintf(`
			SELECT date_trunc('%s', sm.created_at)::date AS bucket,
				   sm.kind,
				   SUM(sm.quantity) AS total
			FROM stock_movements sm
			JOIN stock_entries se ON se.id = sm.stock_entry_id
			WHERE se.unit_id = ? AND sm.kind IN ('out', 'dispose')
			  AND sm.created_at >= ? AND sm.created_at < ?
			GROUP BY bucket, sm.kind
			ORDER BY bucket ASC;
		`, trunc)

		queryEnd := end.AddDate(0, 0, 1)
		if period == "monthly" {
			queryEnd = start.AddDate(0, count, 0)
		}
		if err := database.DB.Raw(sql, unitID, start, queryEnd).Scan(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Veri toplanırken hata oluştu")
		}

		// bucket bazlı toplama
		type bucketAgg struct {
			Bucket  time.Time
			Out     float64
			Dispose float64
		}
		buckets := make(map[time.Time]*bucketAgg)
		for _, r := range rows {
			agg, ok := buckets[r.Bucket]
			if !ok {
				agg = &bucketAgg{Bucket: r.Bucket}
				buckets[r.Bucket] = agg
			}
			switch models.MovementKind(r.Kind) {
			case models.MovementOut:
				agg.Out += r.Total
			case models.MovementDispose:
				agg.Dispose += r.Total
			}
		}

		// map'ten slice'a taşı ve sıralı hale getir
		ordered := make([]bucketAgg, 0, len(buckets))
		for _, v := range buckets {
			ordered = append(ordered, *v)
		}
		for i := 0; i < len(ordered); i++ {
			for j := i + 1; j < len(ordered); j++ {
				if ordered[j].Bucket.Before(ordered[i].Bucket) {
					ordered[i], ordered[j] = ordered[j], ordered[i]
				}
			}
		}

		points := make([]ConsumptionPoint, 0, len(ordered))
		for _, b := range ordered {
			points = append(points, ConsumptionPoint{
				Label:   b.Bucket.Format("2006-01-02"),
				Out:     b.Out,
				Dispose: b.Dispose,
				Total:   b.Out + b.Dispose,
			})
		}

		return c.JSON(ConsumptionChartResponse{
			UnitID: unitID,
			Period: period,
			From:   start.Format("2006-01-02"),
			To:     end.Format("2006-01-02"),
			Points: points,
		})
	}
}
