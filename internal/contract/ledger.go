package contract

import (
	"errors"
	"fmt"

	"tedarik-backend/internal/database"
	"tedarik-backend/internal/models"

	"gorm.io/gorm"
)

// InsufficientBalanceError: Düşüm, toplam bakiyeyi veya hedef havuzu
// eksiye düşürecekti. Çağıranın kullanıcıya gösterebilmesi için kalem
// ve miktar bilgisini taşır.
type InsufficientBalanceError struct {
	ItemID    uint
	ItemName  string
	Pool      models.Pool
	Requested float64
	Available float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("Yetersiz sözleşme bakiyesi: %s (%s havuzu) - istenen %.2f, kalan %.2f",
		e.ItemName, e.Pool.Label(), e.Requested, e.Available)
}

// DataIntegrityError: Transaction ortasında referans verilen kayıt bulunamadı.
// Normal akışta oluşmaması gerekir; oluşursa transaction'ın tamamı geri alınır.
type DataIntegrityError struct {
	Entity string
	ID     uint
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("Veri bütünlüğü hatası: %s kaydı bulunamadı (ID: %d)", e.Entity, e.ID)
}

// DecrementPool: Sözleşme kaleminin hedef havuzundan ve toplam bakiyesinden
// qty düşer. Satır, çağıranın transaction'ı içinde kilitlenerek okunur.
// Toplam bakiye veya hedef havuz eksiye düşecekse InsufficientBalanceError
// döner ve hiçbir değişiklik yapılmaz.
func DecrementPool(tx *gorm.DB, itemID uint, pool models.Pool, qty float64) (*models.ContractItem, error) {
	var item models.ContractItem
	if err := database.ForUpdate(tx).First(&item, "id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &DataIntegrityError{Entity: "contract_item", ID: itemID}
		}
		return nil, err
	}

	poolBalance := item.PoolBalance(pool)
	if item.CurrentBalance < qty || poolBalance < qty {
		available := poolBalance
		if item.CurrentBalance < available {
			available = item.CurrentBalance
		}
		return nil, &InsufficientBalanceError{
			ItemID:    item.ID,
			ItemName:  item.Name,
			Pool:      pool,
			Requested: qty,
			Available: available,
		}
	}

	item.CurrentBalance -= qty
	if pool == models.PoolDaycare {
		item.DaycareBalance -= qty
	} else {
		item.SchoolBalance -= qty
	}

	if err := tx.Save(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// IncrementPool: Hedef havuza ve toplam bakiyeye qty iade eder.
// Mutabakat eksikleri ve manuel düzeltmeler bu yoldan döner.
func IncrementPool(tx *gorm.DB, itemID uint, pool models.Pool, qty float64) (*models.ContractItem, error) {
	var item models.ContractItem
	if err := database.ForUpdate(tx).First(&item, "id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &DataIntegrityError{Entity: "contract_item", ID: itemID}
		}
		return nil, err
	}

	item.CurrentBalance += qty
	if pool == models.PoolDaycare {
		item.DaycareBalance += qty
	} else {
		item.SchoolBalance += qty
	}

	if err := tx.Save(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}
