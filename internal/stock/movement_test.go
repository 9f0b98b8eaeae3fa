package stock

import (
	"errors"
	"testing"
	"time"

	"tedarik-backend/internal/database"
	"tedarik-backend/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("test veritabanı açılamadı: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB alınamadı: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migration hatası: %v", err)
	}
	return db
}

type fixture struct {
	rice        models.ContractItem // kreş 100 / okul 180, 20 kg zaten stokta
	schoolUnit  models.Unit
	daycareUnit models.Unit
	schoolStock models.StockEntry // okul biriminde 20 kg pirinç
}

func seedFixture(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()

	supplier := models.Supplier{Name: "Anadolu Gıda Ltd."}
	if err := db.Create(&supplier).Error; err != nil {
		t.Fatalf("tedarikçi oluşturulamadı: %v", err)
	}
	ct := models.Contract{
		Number:     "SZL-2026-07",
		SupplierID: supplier.ID,
		StartDate:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		Items: []models.ContractItem{
			{Name: "Pirinç", Unit: "kg", UnitPrice: 45, OriginalQuantity: 300, CurrentBalance: 280, DaycareBalance: 100, SchoolBalance: 180},
		},
	}
	if err := db.Create(&ct).Error; err != nil {
		t.Fatalf("sözleşme oluşturulamadı: %v", err)
	}

	f := &fixture{rice: ct.Items[0]}
	f.schoolUnit = models.Unit{Name: "Cumhuriyet İlkokulu"}
	f.daycareUnit = models.Unit{Name: "Papatya Kreşi", NurseryCount: 24}
	if err := db.Create(&f.schoolUnit).Error; err != nil {
		t.Fatalf("birim oluşturulamadı: %v", err)
	}
	if err := db.Create(&f.daycareUnit).Error; err != nil {
		t.Fatalf("birim oluşturulamadı: %v", err)
	}

	f.schoolStock = models.StockEntry{
		UnitID:          f.schoolUnit.ID,
		ContractItemID:  f.rice.ID,
		Pool:            models.PoolSchool,
		CurrentQuantity: 20,
	}
	if err := db.Create(&f.schoolStock).Error; err != nil {
		t.Fatalf("stok kaydı oluşturulamadı: %v", err)
	}
	return f
}

func reloadEntry(t *testing.T, db *gorm.DB, id uint) models.StockEntry {
	t.Helper()
	var e models.StockEntry
	if err := db.First(&e, id).Error; err != nil {
		t.Fatalf("stok kaydı okunamadı: %v", err)
	}
	return e
}

func reloadItem(t *testing.T, db *gorm.DB, id uint) models.ContractItem {
	t.Helper()
	var item models.ContractItem
	if err := db.First(&item, id).Error; err != nil {
		t.Fatalf("kalem okunamadı: %v", err)
	}
	return item
}

func TestApplyOutDecrementsStockAndPool(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	m, err := Apply(db, MovementInput{
		StockEntryID: f.schoolStock.ID,
		Kind:         models.MovementOut,
		Quantity:     5,
		Reason:       "Haftalık menü tüketimi",
		PerformedBy:  "Ayşe Yılmaz",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if m.QuantityBefore != 20 || m.QuantityAfter != 15 {
		t.Errorf("hareket önce/sonra yanlış: %+v", m)
	}

	entry := reloadEntry(t, db, f.schoolStock.ID)
	if entry.CurrentQuantity != 15 {
		t.Errorf("stok 15 olmalı, %.2f bulundu", entry.CurrentQuantity)
	}
	rice := reloadItem(t, db, f.rice.ID)
	if rice.SchoolBalance != 175 || rice.CurrentBalance != 275 {
		t.Errorf("çıkış havuz bakiyesini düşürmeli: %+v", rice)
	}
}

func TestApplyOutInsufficientStockRollsBack(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	tx := db.Begin()
	_, err := Apply(tx, MovementInput{
		StockEntryID: f.schoolStock.ID,
		Kind:         models.MovementOut,
		Quantity:     25, // stokta 20 var
		Reason:       "Haftalık menü tüketimi",
		PerformedBy:  "Ayşe Yılmaz",
	})
	var insufficient *InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("InsufficientStockError bekleniyordu, %v bulundu", err)
	}
	if insufficient.Requested != 25 || insufficient.Available != 20 {
		t.Errorf("hata miktarları yanlış: %+v", insufficient)
	}
	tx.Rollback()

	entry := reloadEntry(t, db, f.schoolStock.ID)
	if entry.CurrentQuantity != 20 {
		t.Errorf("başarısız hareket stoku değiştirmemeli: %.2f", entry.CurrentQuantity)
	}
	rice := reloadItem(t, db, f.rice.ID)
	if rice.SchoolBalance != 180 || rice.CurrentBalance != 280 {
		t.Errorf("başarısız hareket bakiyeyi değiştirmemeli: %+v", rice)
	}
	var count int64
	db.Model(&models.StockMovement{}).Count(&count)
	if count != 0 {
		t.Errorf("başarısız hareket kayıt bırakmamalı, %d bulundu", count)
	}
}

func TestApplyAdjustSetsAbsoluteQuantity(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	m, err := Apply(db, MovementInput{
		StockEntryID: f.schoolStock.ID,
		Kind:         models.MovementAdjust,
		Quantity:     18,
		Reason:       "Aylık sayım",
		PerformedBy:  "Ayşe Yılmaz",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	entry := reloadEntry(t, db, f.schoolStock.ID)
	if entry.CurrentQuantity != 18 {
		t.Errorf("sayım düzeltmesi mutlak değer atamalı: %.2f", entry.CurrentQuantity)
	}
	if m.QuantityBefore != 20 || m.QuantityAfter != 18 {
		t.Errorf("hareket önce/sonra yanlış: %+v", m)
	}

	// Havuz bakiyesi hareket miktarı kadar düşer (mutlak fark kadar değil)
	rice := reloadItem(t, db, f.rice.ID)
	if rice.SchoolBalance != 162 || rice.CurrentBalance != 262 {
		t.Errorf("sayım düzeltmesi havuzdan hareket miktarını düşmeli: %+v", rice)
	}
}

func TestApplyTransferBetweenUnits(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	origin, err := Apply(db, MovementInput{
		StockEntryID:   f.schoolStock.ID,
		Kind:           models.MovementTransfer,
		Quantity:       5,
		Reason:         "Kreşe takviye",
		PerformedBy:    "Ayşe Yılmaz",
		TransferUnitID: &f.daycareUnit.ID,
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// Kaynak ayağı: stok ve okul havuzu azalır
	entry := reloadEntry(t, db, f.schoolStock.ID)
	if entry.CurrentQuantity != 15 {
		t.Errorf("kaynak stok 15 olmalı: %.2f", entry.CurrentQuantity)
	}
	rice := reloadItem(t, db, f.rice.ID)
	if rice.SchoolBalance != 175 {
		t.Errorf("kaynak havuz düşmeli: %+v", rice)
	}
	// Hedef ayağı sözleşme bakiyesine dokunmaz
	if rice.DaycareBalance != 100 {
		t.Errorf("hedef havuz değişmemeli: %+v", rice)
	}

	// Hedef birimde kreş havuzunda yeni kayıt açılır
	var destEntry models.StockEntry
	if err := db.Where("unit_id = ? AND contract_item_id = ?", f.daycareUnit.ID, f.rice.ID).First(&destEntry).Error; err != nil {
		t.Fatalf("hedef stok kaydı oluşmalı: %v", err)
	}
	if destEntry.Pool != models.PoolDaycare || destEntry.CurrentQuantity != 5 {
		t.Errorf("hedef kayıt yanlış: %+v", destEntry)
	}

	// İki hareket yazılır, karşı birimler çapraz işaretlenir
	var movements []models.StockMovement
	if err := db.Order("id").Find(&movements).Error; err != nil {
		t.Fatalf("hareketler okunamadı: %v", err)
	}
	if len(movements) != 2 {
		t.Fatalf("aktarım iki hareket yazmalı, %d bulundu", len(movements))
	}
	if movements[0].ID != origin.ID || movements[0].TransferUnitID == nil || *movements[0].TransferUnitID != f.daycareUnit.ID {
		t.Errorf("kaynak hareket hedef birimi göstermeli: %+v", movements[0])
	}
	if movements[1].StockEntryID != destEntry.ID || movements[1].TransferUnitID == nil || *movements[1].TransferUnitID != f.schoolUnit.ID {
		t.Errorf("hedef hareket kaynak birimi göstermeli: %+v", movements[1])
	}
	if movements[1].QuantityBefore != 0 || movements[1].QuantityAfter != 5 {
		t.Errorf("hedef hareket önce/sonra yanlış: %+v", movements[1])
	}
}

func TestApplyTransferRequiresDestination(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	_, err := Apply(db, MovementInput{
		StockEntryID: f.schoolStock.ID,
		Kind:         models.MovementTransfer,
		Quantity:     5,
		Reason:       "Kreşe takviye",
		PerformedBy:  "Ayşe Yılmaz",
	})
	var missing *MissingDestinationError
	if !errors.As(err, &missing) {
		t.Fatalf("MissingDestinationError bekleniyordu, %v bulundu", err)
	}
}

func TestApplyDisposeRequiresPhoto(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	_, err := Apply(db, MovementInput{
		StockEntryID: f.schoolStock.ID,
		Kind:         models.MovementDispose,
		Quantity:     2,
		Reason:       "Küflenme",
		PerformedBy:  "Ayşe Yılmaz",
	})
	var missing *MissingEvidenceError
	if !errors.As(err, &missing) {
		t.Fatalf("MissingEvidenceError bekleniyordu, %v bulundu", err)
	}

	m, err := Apply(db, MovementInput{
		StockEntryID:  f.schoolStock.ID,
		Kind:          models.MovementDispose,
		Quantity:      2,
		Reason:        "Küflenme",
		PerformedBy:   "Ayşe Yılmaz",
		DisposalPhoto: "uploads/imha-1.jpg",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if m.DisposalPhoto != "uploads/imha-1.jpg" {
		t.Errorf("imha fotoğrafı harekete yazılmalı: %+v", m)
	}
	entry := reloadEntry(t, db, f.schoolStock.ID)
	if entry.CurrentQuantity != 18 {
		t.Errorf("imha sonrası stok 18 olmalı: %.2f", entry.CurrentQuantity)
	}
}

func TestApplyInIncrementsStockAndPool(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	if _, err := Apply(db, MovementInput{
		StockEntryID: f.schoolStock.ID,
		Kind:         models.MovementIn,
		Quantity:     5,
		Reason:       "Manuel düzeltme girişi",
		PerformedBy:  "Ayşe Yılmaz",
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	entry := reloadEntry(t, db, f.schoolStock.ID)
	if entry.CurrentQuantity != 25 {
		t.Errorf("stok 25 olmalı: %.2f", entry.CurrentQuantity)
	}
	rice := reloadItem(t, db, f.rice.ID)
	if rice.SchoolBalance != 185 || rice.CurrentBalance != 285 {
		t.Errorf("giriş havuza iade etmeli: %+v", rice)
	}
}

func TestPostInboundCreatesEntryLazily(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	receiptID := uint(42)
	m, err := PostInbound(db, InboundInput{
		UnitID:         f.daycareUnit.ID,
		ContractItemID: f.rice.ID,
		Pool:           models.PoolDaycare,
		Quantity:       8,
		Reason:         "İrsaliye IRS-2026-000001 (orijinal teslimat)",
		PerformedBy:    "Ayşe Yılmaz",
		ReceiptID:      &receiptID,
	})
	if err != nil {
		t.Fatalf("PostInbound: %v", err)
	}
	if m.ReceiptID == nil || *m.ReceiptID != receiptID {
		t.Errorf("hareket irsaliyeye bağlanmalı: %+v", m)
	}

	var entry models.StockEntry
	if err := db.Where("unit_id = ? AND contract_item_id = ? AND pool = ?",
		f.daycareUnit.ID, f.rice.ID, models.PoolDaycare).First(&entry).Error; err != nil {
		t.Fatalf("stok kaydı tembel oluşmalı: %v", err)
	}
	if entry.CurrentQuantity != 8 {
		t.Errorf("stok 8 olmalı: %.2f", entry.CurrentQuantity)
	}

	// Otomatik giriş sözleşme bakiyesine dokunmaz
	rice := reloadItem(t, db, f.rice.ID)
	if rice.CurrentBalance != 280 || rice.DaycareBalance != 100 {
		t.Errorf("otomatik giriş bakiyeyi değiştirmemeli: %+v", rice)
	}
}
