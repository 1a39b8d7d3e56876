package models

import (
	"time"

	"github.com/google/uuid"
)

// ServicePriceModel is the authoritative base price per service kind and
// currency, in minor units.
type ServicePriceModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	ServiceKind string    `gorm:"size:32;not null;uniqueIndex:idx_service_prices_kind"`
	Currency    string    `gorm:"size:3;not null;uniqueIndex:idx_service_prices_kind"`
	PriceMinor  int64     `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for ServicePriceModel
func (ServicePriceModel) TableName() string {
	return "service_prices"
}

// PromotionModel is a promotional price window overriding the base price.
type PromotionModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	ServiceKind string    `gorm:"size:32;not null;index"`
	Currency    string    `gorm:"size:3;not null"`
	PriceMinor  int64     `gorm:"not null"`
	StartsAt    time.Time `gorm:"not null;index"`
	EndsAt      time.Time `gorm:"not null;index"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for PromotionModel
func (PromotionModel) TableName() string {
	return "promotions"
}

// DiscountCodeModel is a stackable percentage discount code.
type DiscountCodeModel struct {
	Code      string    `gorm:"primary_key;size:64"`
	Percent   int64     `gorm:"not null"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for DiscountCodeModel
func (DiscountCodeModel) TableName() string {
	return "discount_codes"
}
