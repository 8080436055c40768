// models/vault_mirror.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// VaultMirror mirrors custody vault data from the vault service.
// Table name: vault_mirror
// BeginStaking reads the gem count from here; the service never queries the
// custody vault directly.
type VaultMirror struct {
	ID             string     `gorm:"primaryKey;type:uuid;not null" json:"id"`
	FarmID         string     `gorm:"type:uuid;not null;index" json:"farm_id"`
	FarmerIdentity string     `gorm:"type:uuid;not null;index" json:"farmer_identity"`
	GemCount       uint64     `gorm:"not null" json:"gem_count"`
	Locked         bool       `gorm:"not null" json:"locked"`
	LastDepositAt  *time.Time `json:"last_deposit_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (VaultMirror) TableName() string {
	return "vault_mirror"
}
