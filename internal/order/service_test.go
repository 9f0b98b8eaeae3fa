package order

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"tedarik-backend/internal/contract"
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
	contract    models.Contract
	rice        models.ContractItem // kreş 100 / okul 200
	lentil      models.ContractItem // kreş 50 / okul 50
	schoolUnit  models.Unit
	daycareUnit models.Unit
}

func seedFixture(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()

	supplier := models.Supplier{Name: "Anadolu Gıda Ltd."}
	if err := db.Create(&supplier).Error; err != nil {
		t.Fatalf("tedarikçi oluşturulamadı: %v", err)
	}

	f := &fixture{}
	f.contract = models.Contract{
		Number:     "SZL-2026-07",
		SupplierID: supplier.ID,
		StartDate:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		Items: []models.ContractItem{
			{Name: "Pirinç", Unit: "kg", UnitPrice: 45, OriginalQuantity: 300, CurrentBalance: 300, DaycareBalance: 100, SchoolBalance: 200},
			{Name: "Kırmızı Mercimek", Unit: "kg", UnitPrice: 60, OriginalQuantity: 100, CurrentBalance: 100, DaycareBalance: 50, SchoolBalance: 50},
		},
	}
	if err := db.Create(&f.contract).Error; err != nil {
		t.Fatalf("sözleşme oluşturulamadı: %v", err)
	}
	f.rice = f.contract.Items[0]
	f.lentil = f.contract.Items[1]

	f.schoolUnit = models.Unit{Name: "Cumhuriyet İlkokulu"}
	f.daycareUnit = models.Unit{Name: "Papatya Kreşi", NurseryCount: 24}
	if err := db.Create(&f.schoolUnit).Error; err != nil {
		t.Fatalf("birim oluşturulamadı: %v", err)
	}
	if err := db.Create(&f.daycareUnit).Error; err != nil {
		t.Fatalf("birim oluşturulamadı: %v", err)
	}
	return f
}

func reloadItem(t *testing.T, db *gorm.DB, id uint) models.ContractItem {
	t.Helper()
	var item models.ContractItem
	if err := db.First(&item, id).Error; err != nil {
		t.Fatalf("kalem okunamadı: %v", err)
	}
	return item
}

func TestPlaceDecrementsCorrectPool(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	o, err := Place(db, PlaceInput{
		ContractID:         f.contract.ID,
		ExpectedDeliveryAt: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Lines: []PlaceLineInput{
			{UnitID: f.schoolUnit.ID, ContractItemID: f.rice.ID, Quantity: 10},
			{UnitID: f.daycareUnit.ID, ContractItemID: f.rice.ID, Quantity: 5},
		},
	})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}

	if o.Status != models.OrderStatusPending {
		t.Errorf("yeni sipariş pending olmalı, %s bulundu", o.Status)
	}
	wantNumber := fmt.Sprintf("SIP-%d-000001", time.Now().Year())
	if o.Number != wantNumber {
		t.Errorf("sipariş numarası %s olmalı, %s bulundu", wantNumber, o.Number)
	}
	if o.TotalValue != 15*45 {
		t.Errorf("toplam tutar %.2f olmalı, %.2f bulundu", float64(15*45), o.TotalValue)
	}

	rice := reloadItem(t, db, f.rice.ID)
	if rice.SchoolBalance != 190 || rice.DaycareBalance != 95 || rice.CurrentBalance != 285 {
		t.Errorf("bakiyeler yanlış: %+v", rice)
	}
	if rice.CurrentBalance != rice.DaycareBalance+rice.SchoolBalance {
		t.Errorf("bakiye invariantı bozuldu: %+v", rice)
	}
}

func TestPlaceRollsBackWholeOrderOnInsufficientBalance(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	tx := db.Begin()
	_, err := Place(tx, PlaceInput{
		ContractID:         f.contract.ID,
		ExpectedDeliveryAt: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Lines: []PlaceLineInput{
			{UnitID: f.schoolUnit.ID, ContractItemID: f.rice.ID, Quantity: 10},
			// Okul havuzunda 50 var, 80 istenemez
			{UnitID: f.schoolUnit.ID, ContractItemID: f.lentil.ID, Quantity: 80},
		},
	})

	var insufficient *contract.InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("InsufficientBalanceError bekleniyordu, %v bulundu", err)
	}
	if insufficient.ItemName != "Kırmızı Mercimek" {
		t.Errorf("hata yanlış kalemi gösteriyor: %s", insufficient.ItemName)
	}
	tx.Rollback()

	// İlk satırın düşümü de geri alınmış olmalı
	rice := reloadItem(t, db, f.rice.ID)
	if rice.SchoolBalance != 200 || rice.CurrentBalance != 300 {
		t.Errorf("rollback sonrası bakiyeler değişmemeli: %+v", rice)
	}
	var orderCount int64
	db.Model(&models.Order{}).Count(&orderCount)
	if orderCount != 0 {
		t.Errorf("rollback sonrası sipariş kalmamalı, %d bulundu", orderCount)
	}
}

func TestConfirmOnlyFromPending(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	o, err := Place(db, PlaceInput{
		ContractID:         f.contract.ID,
		ExpectedDeliveryAt: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Lines:              []PlaceLineInput{{UnitID: f.schoolUnit.ID, ContractItemID: f.rice.ID, Quantity: 10}},
	})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}

	if _, err := Confirm(db, o.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	_, err = Confirm(db, o.ID)
	var status *StatusError
	if !errors.As(err, &status) {
		t.Fatalf("ikinci onay StatusError vermeliydi, %v bulundu", err)
	}
}

func TestCancelReturnsBalancesToPools(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	o, err := Place(db, PlaceInput{
		ContractID:         f.contract.ID,
		ExpectedDeliveryAt: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Lines: []PlaceLineInput{
			{UnitID: f.schoolUnit.ID, ContractItemID: f.rice.ID, Quantity: 30},
			{UnitID: f.daycareUnit.ID, ContractItemID: f.lentil.ID, Quantity: 20},
		},
	})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}

	if _, err := Cancel(db, o.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	rice := reloadItem(t, db, f.rice.ID)
	lentil := reloadItem(t, db, f.lentil.ID)
	if rice.SchoolBalance != 200 || rice.CurrentBalance != 300 {
		t.Errorf("pirinç bakiyesi iade edilmemiş: %+v", rice)
	}
	if lentil.DaycareBalance != 50 || lentil.CurrentBalance != 100 {
		t.Errorf("mercimek bakiyesi iade edilmemiş: %+v", lentil)
	}

	var reloaded models.Order
	if err := db.First(&reloaded, o.ID).Error; err != nil {
		t.Fatalf("sipariş okunamadı: %v", err)
	}
	if reloaded.Status != models.OrderStatusCancelled {
		t.Errorf("sipariş cancelled olmalı, %s bulundu", reloaded.Status)
	}
}

func TestOrderNumbersIncrementWithinYear(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	for i := 1; i <= 2; i++ {
		o, err := Place(db, PlaceInput{
			ContractID:         f.contract.ID,
			ExpectedDeliveryAt: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			Lines:              []PlaceLineInput{{UnitID: f.schoolUnit.ID, ContractItemID: f.rice.ID, Quantity: 1}},
		})
		if err != nil {
			t.Fatalf("Place %d: %v", i, err)
		}
		want := fmt.Sprintf("SIP-%d-%06d", time.Now().Year(), i)
		if o.Number != want {
			t.Errorf("sipariş numarası %s olmalı, %s bulundu", want, o.Number)
		}
	}
}
