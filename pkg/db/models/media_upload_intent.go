package models

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// MediaUploadIntent is written before a remote transfer and committed with the
// image row that references it. Pending rows past retention are orphans.
type MediaUploadIntent struct {
	ID               uint                    `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID        *uint                   `gorm:"column:product_id;index"`
	ProductVariantID *uint                   `gorm:"column:product_variant_id"`
	RemoteName       string                  `gorm:"column:remote_name;not null;uniqueIndex"`
	Status           enums.MediaIntentStatus `gorm:"column:status;type:varchar(16);not null;default:pending;index"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// All lists every model in dependency order, for sqlite-backed tests and dev auto-migration.
func All() []any {
	return []any{
		&Category{},
		&SubCategory{},
		&Attribute{},
		&AttributeValue{},
		&Product{},
		&ProductVariant{},
		&ProductImage{},
		&ProductAttribute{},
		&ProductAttributeValue{},
		&VariantAttributeValue{},
		&MediaUploadIntent{},
	}
}
