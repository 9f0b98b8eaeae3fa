package receipt

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"tedarik-backend/internal/database"
	"tedarik-backend/internal/models"
	"tedarik-backend/internal/order"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testBaseURL = "https://tedarik.example.gov.tr"

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
		},
	}
	if err := db.Create(&f.contract).Error; err != nil {
		t.Fatalf("sözleşme oluşturulamadı: %v", err)
	}
	f.rice = f.contract.Items[0]

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

// Sipariş ver + onayla + irsaliyeleri üret
func placeAndGenerate(t *testing.T, db *gorm.DB, f *fixture, lines []order.PlaceLineInput) []models.Receipt {
	t.Helper()

	o, err := order.Place(db, order.PlaceInput{
		ContractID:         f.contract.ID,
		ExpectedDeliveryAt: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Lines:              lines,
	})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if _, err := order.Confirm(db, o.ID); err != nil {
		t.Fatalf("Confirm(order): %v", err)
	}

	receipts, err := Generate(db, testBaseURL, o.ID, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return receipts
}

func reloadItem(t *testing.T, db *gorm.DB, id uint) models.ContractItem {
	t.Helper()
	var item models.ContractItem
	if err := db.First(&item, id).Error; err != nil {
		t.Fatalf("kalem okunamadı: %v", err)
	}
	return item
}

func reloadReceipt(t *testing.T, db *gorm.DB, id uint) models.Receipt {
	t.Helper()
	var r models.Receipt
	if err := db.Preload("Lines").First(&r, id).Error; err != nil {
		t.Fatalf("irsaliye okunamadı: %v", err)
	}
	return r
}

func stockEntry(t *testing.T, db *gorm.DB, unitID, itemID uint) *models.StockEntry {
	t.Helper()
	var entry models.StockEntry
	err := db.Where("unit_id = ? AND contract_item_id = ?", unitID, itemID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		t.Fatalf("stok kaydı okunamadı: %v", err)
	}
	return &entry
}

func fullConfirmInput(r *models.Receipt, receivedBy string) ConfirmInput {
	in := ConfirmInput{ReceiptID: r.ID, ReceivedBy: receivedBy}
	for _, l := range r.Lines {
		in.Lines = append(in.Lines, ConfirmLineInput{
			ReceiptLineID:    l.ID,
			Conforming:       true,
			QuantityReceived: l.QuantityRequested,
		})
	}
	return in
}

func TestGenerateSplitsOrderByUnit(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	receipts := placeAndGenerate(t, db, f, []order.PlaceLineInput{
		{UnitID: f.schoolUnit.ID, ContractItemID: f.rice.ID, Quantity: 10},
		{UnitID: f.daycareUnit.ID, ContractItemID: f.rice.ID, Quantity: 5},
	})

	if len(receipts) != 2 {
		t.Fatalf("birim başına bir irsaliye bekleniyordu, %d bulundu", len(receipts))
	}

	year := time.Now().Year()
	for i, r := range receipts {
		want := fmt.Sprintf("IRS-%d-%06d", year, i+1)
		if r.Number != want {
			t.Errorf("irsaliye numarası %s olmalı, %s bulundu", want, r.Number)
		}
		if r.Status != models.ReceiptStatusPending {
			t.Errorf("yeni irsaliye pending olmalı, %s bulundu", r.Status)
		}
		if r.ConfirmationToken == "" {
			t.Error("onay token'ı atanmamış")
		}
		if !strings.Contains(r.ConfirmationURL, r.ConfirmationToken) {
			t.Errorf("onay linki token'ı taşımalı: %s", r.ConfirmationURL)
		}
	}
	if receipts[0].ConfirmationToken == receipts[1].ConfirmationToken {
		t.Error("token'lar irsaliye başına tekil olmalı")
	}

	full := reloadReceipt(t, db, receipts[0].ID)
	if len(full.Lines) != 1 || full.Lines[0].QuantityRequested != 10 || full.Lines[0].QuantityReceived != 0 {
		t.Errorf("irsaliye satırları sipariş miktarını taşımalı: %+v", full.Lines)
	}

	var o models.Order
	if err := db.First(&o, receipts[0].OrderID).Error; err != nil {
		t.Fatalf("sipariş okunamadı: %v", err)
	}
	if o.Status != models.OrderStatusDelivered {
		t.Errorf("irsaliye üretimi sonrası sipariş delivered olmalı, %s bulundu", o.Status)
	}
}

func TestGenerateRequiresConfirmedOrder(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	o, err := order.Place(db, order.PlaceInput{
		ContractID:         f.contract.ID,
		ExpectedDeliveryAt: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Lines:              []order.PlaceLineInput{{UnitID: f.schoolUnit.ID, ContractItemID: f.rice.ID, Quantity: 10}},
	})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}

	_, err = Generate(db, testBaseURL, o.ID, time.Now())
	var state *OrderStateError
	if !errors.As(err, &state) {
		t.Fatalf("pending sipariş için OrderStateError bekleniyordu, %v bulundu", err)
	}

	// İkinci üretim denemesi de aynı kapıya takılır: sipariş artık delivered
	if _, err := order.Confirm(db, o.ID); err != nil {
		t.Fatalf("Confirm(order): %v", err)
	}
	if _, err := Generate(db, testBaseURL, o.ID, time.Now()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	_, err = Generate(db, testBaseURL, o.ID, time.Now())
	if !errors.As(err, &state) {
		t.Fatalf("mükerrer üretim OrderStateError vermeliydi, %v bulundu", err)
	}
}

// Senaryo: tam ve uygun teslim. Bakiyeye iade olmaz, teslim alınan miktar
// stok defterine tek 'in' hareketiyle girer.
func TestConfirmFullConforming(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	receipts := placeAndGenerate(t, db, f, []order.PlaceLineInput{
		{UnitID: f.schoolUnit.ID, ContractItemID: f.rice.ID, Quantity: 10},
	})
	r := reloadReceipt(t, db, receipts[0].ID)

	confirmed, err := Confirm(db, fullConfirmInput(&r, "Ayşe Yılmaz"))
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if confirmed.Status != models.ReceiptStatusConfirmed {
		t.Errorf("tam teslim confirmed olmalı, %s bulundu", confirmed.Status)
	}

	rice := reloadItem(t, db, f.rice.ID)
	if rice.SchoolBalance != 190 || rice.CurrentBalance != 290 {
		t.Errorf("tam teslimde bakiye değişmemeli: %+v", rice)
	}

	entry := stockEntry(t, db, f.schoolUnit.ID, f.rice.ID)
	if entry == nil || entry.CurrentQuantity != 10 {
		t.Fatalf("stok 10 olmalı: %+v", entry)
	}
	if entry.Pool != models.PoolSchool {
		t.Errorf("stok kaydı okul havuzunda olmalı, %s bulundu", entry.Pool)
	}

	var movements []models.StockMovement
	if err := db.Where("stock_entry_id = ?", entry.ID).Find(&movements).Error; err != nil {
		t.Fatalf("hareketler okunamadı: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("tek 'in' hareketi bekleniyordu, %d bulundu", len(movements))
	}
	m := movements[0]
	if m.Kind != models.MovementIn || m.Quantity != 10 || m.QuantityBefore != 0 || m.QuantityAfter != 10 {
		t.Errorf("hareket yanlış: %+v", m)
	}
	if m.ReceiptID == nil || *m.ReceiptID != r.ID {
		t.Errorf("hareket irsaliyeye bağlanmalı: %+v", m)
	}
}

// Senaryo: 10 istendi, 7 teslim alındı. Eksik 3 sözleşme havuzuna döner,
// stok 7 olur, sonuç partial.
func TestConfirmPartialReturnsShortfall(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	receipts := placeAndGenerate(t, db, f, []order.PlaceLineInput{
		{UnitID: f.schoolUnit.ID, ContractItemID: f.rice.ID, Quantity: 10},
	})
	r := reloadReceipt(t, db, receipts[0].ID)

	confirmed, err := Confirm(db, ConfirmInput{
		ReceiptID:  r.ID,
		ReceivedBy: "Ayşe Yılmaz",
		Lines: []ConfirmLineInput{{
			ReceiptLineID:       r.Lines[0].ID,
			Conforming:          false,
			QuantityReceived:    7,
			Notes:               "3 kg çuval hasarlı geldi",
			NonConformingPhotos: []string{"uploads/hasar-1.jpg"},
		}},
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if confirmed.Status != models.ReceiptStatusPartial {
		t.Errorf("kısmi teslim partial olmalı, %s bulundu", confirmed.Status)
	}

	rice := reloadItem(t, db, f.rice.ID)
	if rice.SchoolBalance != 193 || rice.CurrentBalance != 293 {
		t.Errorf("eksik 3 kg havuza dönmeli: %+v", rice)
	}
	if rice.CurrentBalance != rice.DaycareBalance+rice.SchoolBalance {
		t.Errorf("bakiye invariantı bozuldu: %+v", rice)
	}

	entry := stockEntry(t, db, f.schoolUnit.ID, f.rice.ID)
	if entry == nil || entry.CurrentQuantity != 7 {
		t.Fatalf("stok 7 olmalı: %+v", entry)
	}

	line := reloadReceipt(t, db, r.ID).Lines[0]
	if photos := line.NonConformingPhotoList(); len(photos) != 1 || photos[0] != "uploads/hasar-1.jpg" {
		t.Errorf("uygunsuzluk fotoğrafları saklanmalı: %v", photos)
	}
}

func TestConfirmNothingReceivedRejected(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	receipts := placeAndGenerate(t, db, f, []order.PlaceLineInput{
		{UnitID: f.schoolUnit.ID, ContractItemID: f.rice.ID, Quantity: 10},
	})
	r := reloadReceipt(t, db, receipts[0].ID)

	confirmed, err := Confirm(db, ConfirmInput{
		ReceiptID:  r.ID,
		ReceivedBy: "Ayşe Yılmaz",
		Lines: []ConfirmLineInput{{
			ReceiptLineID:    r.Lines[0].ID,
			Conforming:       false,
			QuantityReceived: 0,
			Notes:            "Teslimat hiç gelmedi",
		}},
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if confirmed.Status != models.ReceiptStatusRejected {
		t.Errorf("sıfır teslim rejected olmalı, %s bulundu", confirmed.Status)
	}

	// Tüm miktar havuza döner, stok hareketi oluşmaz
	rice := reloadItem(t, db, f.rice.ID)
	if rice.SchoolBalance != 200 || rice.CurrentBalance != 300 {
		t.Errorf("tüm miktar havuza dönmeli: %+v", rice)
	}
	var movementCount int64
	db.Model(&models.StockMovement{}).Count(&movementCount)
	if movementCount != 0 {
		t.Errorf("reddedilen teslim stok hareketi üretmemeli, %d bulundu", movementCount)
	}
}

func TestConfirmTwiceFails(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	receipts := placeAndGenerate(t, db, f, []order.PlaceLineInput{
		{UnitID: f.schoolUnit.ID, ContractItemID: f.rice.ID, Quantity: 10},
	})
	r := reloadReceipt(t, db, receipts[0].ID)

	if _, err := Confirm(db, fullConfirmInput(&r, "Ayşe Yılmaz")); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	_, err := Confirm(db, fullConfirmInput(&r, "Ayşe Yılmaz"))
	var processed *AlreadyProcessedError
	if !errors.As(err, &processed) {
		t.Fatalf("ikinci onay AlreadyProcessedError vermeliydi, %v bulundu", err)
	}
	if processed.Status != models.ReceiptStatusConfirmed {
		t.Errorf("hata mevcut durumu taşımalı, %s bulundu", processed.Status)
	}
}

// Senaryo: 10 teslim olarak onaylandı, sonradan 9 olduğu anlaşıldı.
// Düzeltme orijinali adjusted yapar, 1 kg'lık tamamlayıcı irsaliye açar;
// tamamlayıcı tam teslimle complementary durumuna kapanır.
func TestAdjustCreatesComplementaryChain(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	receipts := placeAndGenerate(t, db, f, []order.PlaceLineInput{
		{UnitID: f.schoolUnit.ID, ContractItemID: f.rice.ID, Quantity: 10},
	})
	r := reloadReceipt(t, db, receipts[0].ID)

	if _, err := Confirm(db, fullConfirmInput(&r, "Ayşe Yılmaz")); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	comp, err := Adjust(db, testBaseURL, AdjustInput{
		ReceiptID:   r.ID,
		PerformedBy: "Mehmet Kaya",
		Lines:       []AdjustLineInput{{ReceiptLineID: r.Lines[0].ID, QuantityReceived: 9}},
	})
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}

	original := reloadReceipt(t, db, r.ID)
	if original.Status != models.ReceiptStatusAdjusted {
		t.Errorf("düzeltilen irsaliye adjusted olmalı, %s bulundu", original.Status)
	}
	if original.Lines[0].QuantityReceived != 9 || original.Lines[0].Conforming {
		t.Errorf("orijinal satır düzeltilmiş miktarı taşımalı: %+v", original.Lines[0])
	}

	if comp.OriginalReceiptID == nil || *comp.OriginalReceiptID != r.ID {
		t.Fatalf("tamamlayıcı irsaliye orijinali göstermeli: %+v", comp)
	}
	if comp.Status != models.ReceiptStatusPending {
		t.Errorf("tamamlayıcı irsaliye pending açılmalı, %s bulundu", comp.Status)
	}
	compLoaded := reloadReceipt(t, db, comp.ID)
	if len(compLoaded.Lines) != 1 || compLoaded.Lines[0].QuantityRequested != 1 {
		t.Errorf("tamamlayıcı irsaliye 1 kg'lık tek satır taşımalı: %+v", compLoaded.Lines)
	}

	// Zincir sorgusu tamamlayıcıyı bulur
	children, err := Chain(db, r.ID)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if len(children) != 1 || children[0].ID != comp.ID {
		t.Errorf("zincir tamamlayıcı irsaliyeyi içermeli: %+v", children)
	}

	// Tamamlayıcı tam teslimle complementary olarak kapanır
	closed, err := Confirm(db, fullConfirmInput(&compLoaded, "Ayşe Yılmaz"))
	if err != nil {
		t.Fatalf("Confirm(tamamlayıcı): %v", err)
	}
	if closed.Status != models.ReceiptStatusComplementary {
		t.Errorf("tamamlayıcı tam teslim complementary olmalı, %s bulundu", closed.Status)
	}

	// Zincir kapanınca tahsis korunur: sipariş 10 düştü, zincir boyunca
	// teslim alınan 9 + 1 = 10, havuza iade olmadı
	rice := reloadItem(t, db, f.rice.ID)
	if rice.SchoolBalance != 190 || rice.CurrentBalance != 290 {
		t.Errorf("zincir tahsisi korumalı: %+v", rice)
	}
	chainTotal := reloadReceipt(t, db, r.ID).Lines[0].QuantityReceived +
		reloadReceipt(t, db, comp.ID).Lines[0].QuantityReceived
	if chainTotal != 10 {
		t.Errorf("zincir toplamı sipariş miktarına eşit olmalı, %.2f bulundu", chainTotal)
	}

	// İkinci düzeltme reddedilir
	_, err = Adjust(db, testBaseURL, AdjustInput{
		ReceiptID:   r.ID,
		PerformedBy: "Mehmet Kaya",
		Lines:       []AdjustLineInput{{ReceiptLineID: r.Lines[0].ID, QuantityReceived: 8}},
	})
	var already *AlreadyAdjustedError
	if !errors.As(err, &already) {
		t.Fatalf("ikinci düzeltme AlreadyAdjustedError vermeliydi, %v bulundu", err)
	}
}

func TestAdjustWithoutDiscrepancyFails(t *testing.T) {
	db := openTestDB(t)
	f := seedFixture(t, db)

	receipts := placeAndGenerate(t, db, f, []order.PlaceLineInput{
		{UnitID: f.schoolUnit.ID, ContractItemID: f.rice.ID, Quantity: 10},
	})
	r := reloadReceipt(t, db, receipts[0].ID)

	if _, err := Confirm(db, fullConfirmInput(&r, "Ayşe Yılmaz")); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	_, err := Adjust(db, testBaseURL, AdjustInput{
		ReceiptID:   r.ID,
		PerformedBy: "Mehmet Kaya",
		Lines:       []AdjustLineInput{{ReceiptLineID: r.Lines[0].ID, QuantityReceived: 10}},
	})
	var noDiscrepancy *NoDiscrepancyError
	if !errors.As(err, &noDiscrepancy) {
		t.Fatalf("farksız düzeltme NoDiscrepancyError vermeliydi, %v bulundu", err)
	}
}
