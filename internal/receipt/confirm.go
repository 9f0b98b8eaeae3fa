package receipt

import (
	"errors"
	"fmt"

	"tedarik-backend/internal/contract"
	"tedarik-backend/internal/models"
	"tedarik-backend/internal/stock"

	"gorm.io/gorm"
)

type ConfirmLineInput struct {
	ReceiptLineID       uint
	Conforming          bool
	QuantityReceived    float64
	Notes               string
	NonConformingPhotos []string
}

type ConfirmInput struct {
	ReceiptID  uint
	ReceivedBy string
	Notes      string
	Signature  string // imza görseli referansı
	ProofPhoto string // imzalı kağıt irsaliye fotoğrafı
	Lines      []ConfirmLineInput
}

// Confirm: Mutabakat motoru. Birimin bildirdiği teslim miktarlarını satır
// satır işler, eksikleri sözleşme havuzuna iade eder, teslim alınanları stok
// defterine geçirir ve irsaliyenin sonucunu türetir. Tamamı tek transaction
// içinde çalışır; herhangi bir adım başarısız olursa çağıran geri alır.
//
// Sonuç türetimi: hiçbir satırda teslim yoksa rejected; tüm satırlar uygunsa
// confirmed; aksi halde partial. Tamamlayıcı irsaliyede (OriginalReceiptID
// dolu) confirmed sonucu complementary olarak yazılır — ikinci turda kapanan
// teslimatı ilk turda tam teslimattan ayırt etmek için.
func Confirm(tx *gorm.DB, in ConfirmInput) (*models.Receipt, error) {
	var r models.Receipt
	err := tx.Preload("Lines.OrderLine").Preload("Unit").First(&r, "id = ?", in.ReceiptID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{ReceiptID: in.ReceiptID}
	}
	if err != nil {
		return nil, err
	}
	if r.Status != models.ReceiptStatusPending {
		return nil, &AlreadyProcessedError{ReceiptID: r.ID, Status: r.Status}
	}

	pool := models.PoolForUnit(&r.Unit)
	isComplementary := r.OriginalReceiptID != nil

	inputByLine := make(map[uint]ConfirmLineInput, len(in.Lines))
	for _, li := range in.Lines {
		inputByLine[li.ReceiptLineID] = li
	}

	receivedAny := false
	allConforming := true

	for i := range r.Lines {
		line := &r.Lines[i]
		li, ok := inputByLine[line.ID]
		if !ok {
			// Handler her satır için kayıt zorunlu tutar; buraya düşmesi
			// istek ile veritabanının ayrıştığını gösterir
			return nil, &contract.DataIntegrityError{Entity: "receipt_line", ID: line.ID}
		}
		if li.QuantityReceived < 0 || li.QuantityReceived > line.QuantityRequested {
			return nil, fmt.Errorf("satır #%d için teslim miktarı 0 ile %.2f arasında olmalı", line.ID, line.QuantityRequested)
		}

		line.Conforming = li.Conforming
		line.QuantityReceived = li.QuantityReceived
		line.Notes = li.Notes
		if li.Conforming {
			// Uygun işaretlenen satırın eski uygunsuzluk fotoğrafları silinir
			line.SetNonConformingPhotos(nil)
		} else {
			// Yeni gönderilen set eskisinin yerine geçer
			line.SetNonConformingPhotos(li.NonConformingPhotos)
			allConforming = false
		}
		if err := tx.Save(line).Error; err != nil {
			return nil, err
		}

		// Eksik teslim, kullanılmayan tahsisi sözleşmeye iade eder
		shortfall := line.QuantityRequested - li.QuantityReceived
		if shortfall > 0 {
			if _, err := contract.IncrementPool(tx, line.OrderLine.ContractItemID, pool, shortfall); err != nil {
				return nil, err
			}
		}

		if li.QuantityReceived > 0 {
			receivedAny = true

			deliveryKind := "orijinal teslimat"
			if isComplementary {
				deliveryKind = "tamamlayıcı teslimat"
			}
			if _, err := stock.PostInbound(tx, stock.InboundInput{
				UnitID:         r.UnitID,
				ContractItemID: line.OrderLine.ContractItemID,
				Pool:           pool,
				Quantity:       li.QuantityReceived,
				Reason:         fmt.Sprintf("İrsaliye %s (%s)", r.Number, deliveryKind),
				PerformedBy:    in.ReceivedBy,
				ReceiptID:      &r.ID,
			}); err != nil {
				return nil, err
			}
		}
	}

	switch {
	case !receivedAny:
		r.Status = models.ReceiptStatusRejected
	case allConforming:
		if isComplementary {
			r.Status = models.ReceiptStatusComplementary
		} else {
			r.Status = models.ReceiptStatusConfirmed
		}
	default:
		r.Status = models.ReceiptStatusPartial
	}

	r.ReceivedBy = in.ReceivedBy
	r.ReceivedBySignature = in.Signature
	r.ProofPhoto = in.ProofPhoto
	r.Notes = in.Notes
	if err := tx.Save(&r).Error; err != nil {
		return nil, err
	}

	return &r, nil
}
