package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Product is the root of the catalog aggregate.
type Product struct {
	ID                 uint                `gorm:"column:id;primaryKey;autoIncrement"`
	Title              string              `gorm:"column:title;not null"`
	Slug               string              `gorm:"column:slug;not null;uniqueIndex"`
	Description        string              `gorm:"column:description;not null;default:''"`
	ShortDescription   string              `gorm:"column:short_description;not null;default:''"`
	Status             enums.ProductStatus `gorm:"column:status;type:varchar(16);not null;default:active"`
	PriceINR           decimal.Decimal     `gorm:"column:price_inr;type:numeric(12,2);not null"`
	PriceUSD           decimal.Decimal     `gorm:"column:price_usd;type:numeric(12,2);not null"`
	ComparePriceINR    decimal.NullDecimal `gorm:"column:compare_price_inr;type:numeric(12,2)"`
	ComparePriceUSD    decimal.NullDecimal `gorm:"column:compare_price_usd;type:numeric(12,2)"`
	StockCount         int                 `gorm:"column:stock_count;not null;default:0"`
	StockStatus        enums.StockStatus   `gorm:"column:stock_status;type:varchar(16);not null;default:in_stock"`
	QuantityLimit      int                 `gorm:"column:quantity_limit;not null;default:10"`
	IsShippingRequired bool                `gorm:"column:is_shipping_required;not null"`
	IsTaxable          bool                `gorm:"column:is_taxable;not null"`
	HasVariants        bool                `gorm:"column:has_variants;not null;default:false"`
	CategoryID         *uint               `gorm:"column:cat_id;index"`
	SubCategoryID      *uint               `gorm:"column:subcat_id;index"`
	Version            int                 `gorm:"column:version;not null;default:1"`

	Category    *Category          `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL"`
	SubCategory *SubCategory       `gorm:"foreignKey:SubCategoryID;constraint:OnDelete:SET NULL"`
	Images      []ProductImage     `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Attributes  []ProductAttribute `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Variants    []ProductVariant   `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
