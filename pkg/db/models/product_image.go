package models

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ProductImage references a file on the remote media store. Variant images
// carry both ids so a product-wide listing reaches them.
type ProductImage struct {
	ID               uint            `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID        uint            `gorm:"column:product_id;not null;index"`
	ProductVariantID *uint           `gorm:"column:product_variant_id;index"`
	FileName         string          `gorm:"column:file_name;not null"`
	ImageType        enums.ImageType `gorm:"column:image_type;type:varchar(16);not null;default:gallery"`
	DisplayOrder     int             `gorm:"column:display_order;not null;default:0"`
	IsThumbnail      bool            `gorm:"column:is_thumbnail;not null;default:false"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
