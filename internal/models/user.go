package models

import "time"

type UserRole string

const (
	RoleSuperAdmin  UserRole = "super_admin"  // merkez yönetimi
	RoleUnitManager UserRole = "unit_manager" // birim sorumlusu
)

type User struct {
	ID           uint `gorm:"primaryKey"`
	UnitID       *uint
	Unit         *Unit
	Name         string   `gorm:"size:100;not null"`
	Email        string   `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string   `gorm:"size:255;not null"`
	Role         UserRole `gorm:"size:20;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
