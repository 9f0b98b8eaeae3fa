package main

import (
	"log"
	"strings"

	"tedarik-backend/internal/admin"
	"tedarik-backend/internal/audit"
	"tedarik-backend/internal/auth"
	"tedarik-backend/internal/config"
	"tedarik-backend/internal/contract"
	"tedarik-backend/internal/dashboard"
	"tedarik-backend/internal/database"
	"tedarik-backend/internal/models"
	"tedarik-backend/internal/order"
	"tedarik-backend/internal/receipt"
	"tedarik-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	cfg := config.Load()
	database.Init(cfg)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			log.Println("Unexpected error:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Beklenmeyen sunucu hatası",
			})
		},
	})

	// CORS origins'i virgülle ayrılmış string'den array'e çevir
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-super-admin", auth.RegisterSuperAdminHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Teslimat onayı: QR linkindeki token ile oturumsuz erişilir,
	// handler token'ı irsaliyenin kendi token'ıyla doğrular
	api.Post("/receipts/:id/confirm", receipt.ConfirmReceiptHandler())

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())

	// Super admin routes
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleSuperAdmin))

	// Birim yönetimi
	adminRoutes.Post("/units", admin.CreateUnitHandler())
	adminRoutes.Get("/units", admin.ListUnitsHandler())
	adminRoutes.Get("/units/:id", admin.GetUnitHandler())
	adminRoutes.Put("/units/:id", admin.UpdateUnitHandler())
	adminRoutes.Delete("/units/:id", admin.DeleteUnitHandler())
	adminRoutes.Post("/units/:id/manager", admin.CreateUnitManagerHandler())
	adminRoutes.Get("/units/:id/managers", admin.ListUnitManagersHandler())

	// Tedarikçi yönetimi
	adminRoutes.Post("/suppliers", admin.CreateSupplierHandler())
	adminRoutes.Get("/suppliers", admin.ListSuppliersHandler())
	adminRoutes.Get("/suppliers/:id", admin.GetSupplierHandler())
	adminRoutes.Put("/suppliers/:id", admin.UpdateSupplierHandler())
	adminRoutes.Delete("/suppliers/:id", admin.DeleteSupplierHandler())

	// Sözleşme yönetimi
	adminRoutes.Post("/contracts", contract.CreateContractHandler())
	adminRoutes.Put("/contracts/:id", contract.UpdateContractHandler())
	adminRoutes.Delete("/contracts/:id", contract.DeleteContractHandler())

	// Sipariş ve irsaliye akışı merkezden yönetilir
	adminRoutes.Post("/orders", order.CreateOrderHandler())
	adminRoutes.Post("/orders/:id/confirm", order.ConfirmOrderHandler())
	adminRoutes.Post("/orders/:id/cancel", order.CancelOrderHandler())
	adminRoutes.Post("/orders/:id/receipts", receipt.GenerateReceiptsHandler(cfg.ConfirmBaseURL))
	adminRoutes.Post("/receipts/:id/adjust", receipt.AdjustReceiptHandler(cfg.ConfirmBaseURL))

	// Ortak (auth gerektiren) route'lar

	// Sözleşmeler
	protected.Get("/contracts", contract.ListContractsHandler())
	protected.Get("/contracts/:id", contract.GetContractHandler())

	// Siparişler
	protected.Get("/orders", order.ListOrdersHandler())
	protected.Get("/orders/:id", order.GetOrderHandler())

	// İrsaliyeler
	protected.Get("/receipts", receipt.ListReceiptsHandler())
	protected.Get("/receipts/:id", receipt.GetReceiptHandler())
	protected.Get("/receipts/:id/qr", receipt.ReceiptQRHandler())

	// Stok
	protected.Get("/stock", stock.ListStockHandler())
	protected.Get("/stock/export", stock.ExportMovementsHandler())
	protected.Get("/stock/:id/movements", stock.ListMovementsHandler())
	protected.Post("/stock/movements", stock.CreateMovementHandler())
	protected.Put("/stock/:id/minimum", stock.UpdateMinimumHandler())

	// Dashboard
	protected.Get("/dashboard/summary", dashboard.SummaryHandler())
	protected.Get("/dashboard/consumption-chart", dashboard.ConsumptionChartHandler())

	// Audit logs
	protected.Get("/audit-logs", audit.ListAuditLogsHandler())

	log.Println("Server çalışıyor port:", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
