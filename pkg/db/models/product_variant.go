package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ProductVariant is a SKU-level concretisation of a product.
type ProductVariant struct {
	ID              uint                    `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID       uint                    `gorm:"column:product_id;not null;index"`
	SKU             string                  `gorm:"column:sku;not null;uniqueIndex"`
	PriceINR        decimal.Decimal         `gorm:"column:price_inr;type:numeric(12,2);not null"`
	PriceUSD        decimal.Decimal         `gorm:"column:price_usd;type:numeric(12,2);not null"`
	StockCount      int                     `gorm:"column:stock_count;not null;default:0"`
	StockStatus     enums.StockStatus       `gorm:"column:stock_status;type:varchar(16);not null;default:in_stock"`
	Weight          decimal.NullDecimal     `gorm:"column:weight;type:numeric(10,3)"`
	IsDefault       bool                    `gorm:"column:is_default;not null;default:false"`
	AttributeValues []VariantAttributeValue `gorm:"foreignKey:ProductVariantID;constraint:OnDelete:CASCADE"`
	Images          []ProductImage          `gorm:"foreignKey:ProductVariantID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

type VariantAttributeValue struct {
	ID               uint            `gorm:"column:id;primaryKey;autoIncrement"`
	ProductVariantID uint            `gorm:"column:product_variant_id;not null;index"`
	AttributeValueID uint            `gorm:"column:attribute_value_id;not null;index"`
	AttributeValue   *AttributeValue `gorm:"foreignKey:AttributeValueID"`
}
