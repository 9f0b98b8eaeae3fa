package database

import (
	"log"

	"tedarik-backend/internal/config"
	"tedarik-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	var err error

	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Veritabanına bağlanılamadı: %v", err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatalf("AutoMigrate hatası: %v", err)
	}

	log.Println("Veritabanı bağlantısı başarılı. Migration tamamlandı.")
}

// Migrate: Tüm tabloları oluşturur/günceller. Testler de aynı şemayı
// in-memory sqlite üzerinde kurmak için bunu çağırır.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Unit{},
		&models.User{},
		&models.Supplier{},
		&models.Contract{},
		&models.ContractItem{},
		&models.Order{},
		&models.OrderLine{},
		&models.Receipt{},
		&models.ReceiptLine{},
		&models.StockEntry{},
		&models.StockMovement{},
		&models.AuditLog{},
	)
}

// ForUpdate: Bakiye/stok satırlarını transaction içinde kilitleyerek okur.
// Eşzamanlı onaylar aynı ContractItem/StockEntry satırına dokunduğunda
// kayıp güncelleme olmaması için karar veren her okuma bu kilidi kullanır.
// sqlite FOR UPDATE desteklemediği için testlerde kilitsiz çalışır;
// orada zaten tek bağlantı vardır.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
