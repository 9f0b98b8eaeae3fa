package stock

import (
	"errors"
	"fmt"

	"tedarik-backend/internal/contract"
	"tedarik-backend/internal/database"
	"tedarik-backend/internal/models"

	"gorm.io/gorm"
)

// InsufficientStockError: Çıkış türü hareket mevcut stoktan fazlasını istedi
type InsufficientStockError struct {
	StockEntryID uint
	Requested    float64
	Available    float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Yetersiz stok (kayıt #%d): istenen %.2f, mevcut %.2f",
		e.StockEntryID, e.Requested, e.Available)
}

// MissingDestinationError: Aktarım hareketi hedef birim olmadan yapılamaz
type MissingDestinationError struct{ StockEntryID uint }

func (e *MissingDestinationError) Error() string {
	return fmt.Sprintf("Aktarım için hedef birim zorunlu (kayıt #%d)", e.StockEntryID)
}

// MissingEvidenceError: İmha hareketi fotoğraf referansı olmadan yapılamaz
type MissingEvidenceError struct{ StockEntryID uint }

func (e *MissingEvidenceError) Error() string {
	return fmt.Sprintf("İmha için fotoğraf referansı zorunlu (kayıt #%d)", e.StockEntryID)
}

type MovementInput struct {
	StockEntryID   uint
	Kind           models.MovementKind
	Quantity       float64
	Reason         string
	PerformedBy    string
	TransferUnitID *uint  // sadece transfer
	DisposalPhoto  string // sadece dispose
}

// Apply: Manuel stok hareketini tek transaction içinde uygular. Her hareket
// türünün doğrulaması ve yan etkisi kendi işleyicisinde; ortak akış burada:
// kaydı kilitle, işleyiciye ver, hareketi append et.
func Apply(tx *gorm.DB, in MovementInput) (*models.StockMovement, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("hareket miktarı 0'dan büyük olmalı")
	}

	var entry models.StockEntry
	if err := database.ForUpdate(tx).First(&entry, "id = ?", in.StockEntryID).Error; err != nil {
		return nil, err
	}

	switch in.Kind {
	case models.MovementIn:
		return applyIn(tx, &entry, in)
	case models.MovementOut:
		return applyOut(tx, &entry, in)
	case models.MovementAdjust:
		return applyAdjust(tx, &entry, in)
	case models.MovementTransfer:
		return applyTransfer(tx, &entry, in)
	case models.MovementDispose:
		return applyDispose(tx, &entry, in)
	default:
		return nil, fmt.Errorf("bilinmeyen hareket türü: %s", in.Kind)
	}
}

// applyIn: Manuel giriş. Stok artar, tahsis havuzuna aynı miktar iade edilir
// (manuel düzeltme yolu).
func applyIn(tx *gorm.DB, entry *models.StockEntry, in MovementInput) (*models.StockMovement, error) {
	before := entry.CurrentQuantity
	entry.CurrentQuantity += in.Quantity
	if err := tx.Save(entry).Error; err != nil {
		return nil, err
	}

	if _, err := contract.IncrementPool(tx, entry.ContractItemID, entry.Pool, in.Quantity); err != nil {
		return nil, err
	}

	return appendMovement(tx, entry, in, before, entry.CurrentQuantity)
}

// applyOut: Tüketim çıkışı. Stok ve havuz bakiyesi birlikte azalır.
func applyOut(tx *gorm.DB, entry *models.StockEntry, in MovementInput) (*models.StockMovement, error) {
	if in.Quantity > entry.CurrentQuantity {
		return nil, &InsufficientStockError{StockEntryID: entry.ID, Requested: in.Quantity, Available: entry.CurrentQuantity}
	}

	before := entry.CurrentQuantity
	entry.CurrentQuantity -= in.Quantity
	if err := tx.Save(entry).Error; err != nil {
		return nil, err
	}

	if _, err := contract.DecrementPool(tx, entry.ContractItemID, entry.Pool, in.Quantity); err != nil {
		return nil, err
	}

	return appendMovement(tx, entry, in, before, entry.CurrentQuantity)
}

// applyAdjust: Sayım düzeltmesi. Stok miktarını MUTLAK olarak atar.
// Havuz bakiyesi ise kaynak sistemdeki davranışla uyumlu şekilde 'out' gibi
// hareket miktarı kadar düşülür (bkz. DESIGN.md, bilinen tutarsızlık).
func applyAdjust(tx *gorm.DB, entry *models.StockEntry, in MovementInput) (*models.StockMovement, error) {
	before := entry.CurrentQuantity
	entry.CurrentQuantity = in.Quantity
	if err := tx.Save(entry).Error; err != nil {
		return nil, err
	}

	if _, err := contract.DecrementPool(tx, entry.ContractItemID, entry.Pool, in.Quantity); err != nil {
		return nil, err
	}

	return appendMovement(tx, entry, in, before, entry.CurrentQuantity)
}

// applyTransfer: Birimler arası aktarım. Kaynakta negatif, hedefte pozitif
// olmak üzere iki hareket yazılır; sözleşme bakiyesine yalnızca kaynak ayağı
// yansır, hedef ayağı tahsise dokunmaz.
func applyTransfer(tx *gorm.DB, entry *models.StockEntry, in MovementInput) (*models.StockMovement, error) {
	if in.TransferUnitID == nil {
		return nil, &MissingDestinationError{StockEntryID: entry.ID}
	}
	if in.Quantity > entry.CurrentQuantity {
		return nil, &InsufficientStockError{StockEntryID: entry.ID, Requested: in.Quantity, Available: entry.CurrentQuantity}
	}

	var destUnit models.Unit
	if err := tx.First(&destUnit, "id = ?", *in.TransferUnitID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &contract.DataIntegrityError{Entity: "unit", ID: *in.TransferUnitID}
		}
		return nil, err
	}

	// Kaynak ayağı
	before := entry.CurrentQuantity
	entry.CurrentQuantity -= in.Quantity
	if err := tx.Save(entry).Error; err != nil {
		return nil, err
	}
	if _, err := contract.DecrementPool(tx, entry.ContractItemID, entry.Pool, in.Quantity); err != nil {
		return nil, err
	}
	origin, err := appendMovement(tx, entry, in, before, entry.CurrentQuantity)
	if err != nil {
		return nil, err
	}

	// Hedef ayağı: hedef birimin kendi havuzundaki kayda girer,
	// sözleşme bakiyesi değişmez
	destEntry, err := upsertEntry(tx, destUnit.ID, entry.ContractItemID, models.PoolForUnit(&destUnit))
	if err != nil {
		return nil, err
	}
	destBefore := destEntry.CurrentQuantity
	destEntry.CurrentQuantity += in.Quantity
	if err := tx.Save(destEntry).Error; err != nil {
		return nil, err
	}

	originUnitID := entry.UnitID
	destMovement := models.StockMovement{
		StockEntryID:   destEntry.ID,
		Kind:           models.MovementTransfer,
		Quantity:       in.Quantity,
		QuantityBefore: destBefore,
		QuantityAfter:  destEntry.CurrentQuantity,
		Reason:         in.Reason,
		PerformedBy:    in.PerformedBy,
		TransferUnitID: &originUnitID,
	}
	if err := tx.Create(&destMovement).Error; err != nil {
		return nil, err
	}

	return origin, nil
}

// applyDispose: İmha. Fotoğraf kanıtı zorunlu; stok ve havuz bakiyesi azalır.
func applyDispose(tx *gorm.DB, entry *models.StockEntry, in MovementInput) (*models.StockMovement, error) {
	if in.DisposalPhoto == "" {
		return nil, &MissingEvidenceError{StockEntryID: entry.ID}
	}
	if in.Quantity > entry.CurrentQuantity {
		return nil, &InsufficientStockError{StockEntryID: entry.ID, Requested: in.Quantity, Available: entry.CurrentQuantity}
	}

	before := entry.CurrentQuantity
	entry.CurrentQuantity -= in.Quantity
	if err := tx.Save(entry).Error; err != nil {
		return nil, err
	}

	if _, err := contract.DecrementPool(tx, entry.ContractItemID, entry.Pool, in.Quantity); err != nil {
		return nil, err
	}

	return appendMovement(tx, entry, in, before, entry.CurrentQuantity)
}

func appendMovement(tx *gorm.DB, entry *models.StockEntry, in MovementInput, before, after float64) (*models.StockMovement, error) {
	m := models.StockMovement{
		StockEntryID:   entry.ID,
		Kind:           in.Kind,
		Quantity:       in.Quantity,
		QuantityBefore: before,
		QuantityAfter:  after,
		Reason:         in.Reason,
		PerformedBy:    in.PerformedBy,
		TransferUnitID: in.TransferUnitID,
		DisposalPhoto:  in.DisposalPhoto,
	}
	if err := tx.Create(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// upsertEntry: (birim, kalem, havuz) üçlüsünün stok kaydını kilitleyerek
// getirir, yoksa sıfır miktarla oluşturur. İlk giriş hareketleri bu yolla
// kaydı tembel oluşturur.
func upsertEntry(tx *gorm.DB, unitID, itemID uint, pool models.Pool) (*models.StockEntry, error) {
	var entry models.StockEntry
	err := database.ForUpdate(tx).
		Where("unit_id = ? AND contract_item_id = ? AND pool = ?", unitID, itemID, pool).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		entry = models.StockEntry{UnitID: unitID, ContractItemID: itemID, Pool: pool}
		if err := tx.Create(&entry).Error; err != nil {
			return nil, err
		}
		return &entry, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

type InboundInput struct {
	UnitID         uint
	ContractItemID uint
	Pool           models.Pool
	Quantity       float64
	Reason         string
	PerformedBy    string
	ReceiptID      *uint
}

// PostInbound: Mutabakat motorunun otomatik stok girişi. Stok kaydını tembel
// oluşturur/artırır ve irsaliyeye bağlı bir 'in' hareketi append eder.
// Sözleşme bakiyesine dokunmaz; eksik iade akışı mutabakatın kendisinde.
func PostInbound(tx *gorm.DB, in InboundInput) (*models.StockMovement, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("giriş miktarı 0'dan büyük olmalı")
	}

	entry, err := upsertEntry(tx, in.UnitID, in.ContractItemID, in.Pool)
	if err != nil {
		return nil, err
	}

	before := entry.CurrentQuantity
	entry.CurrentQuantity += in.Quantity
	if err := tx.Save(entry).Error; err != nil {
		return nil, err
	}

	m := models.StockMovement{
		StockEntryID:   entry.ID,
		Kind:           models.MovementIn,
		Quantity:       in.Quantity,
		QuantityBefore: before,
		QuantityAfter:  entry.CurrentQuantity,
		Reason:         in.Reason,
		PerformedBy:    in.PerformedBy,
		ReceiptID:      in.ReceiptID,
	}
	if err := tx.Create(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
