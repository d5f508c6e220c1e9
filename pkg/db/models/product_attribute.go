package models

import "github.com/shopspring/decimal"

// ProductAttribute enables an Attribute on one product.
type ProductAttribute struct {
	ID          uint                    `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID   uint                    `gorm:"column:product_id;not null;index"`
	AttributeID uint                    `gorm:"column:attribute_id;not null;index"`
	Attribute   *Attribute              `gorm:"foreignKey:AttributeID"`
	IsRequired  bool                    `gorm:"column:is_required;not null;default:false"`
	Values      []ProductAttributeValue `gorm:"foreignKey:ProductAttributeID;constraint:OnDelete:CASCADE"`
}

// ProductAttributeValue is a selected value with optional per-currency price adjustments.
type ProductAttributeValue struct {
	ID                 uint            `gorm:"column:id;primaryKey;autoIncrement"`
	ProductAttributeID uint            `gorm:"column:product_attribute_id;not null;index"`
	AttributeValueID   uint            `gorm:"column:attribute_value_id;not null;index"`
	AttributeValue     *AttributeValue `gorm:"foreignKey:AttributeValueID"`
	PriceAdjustmentINR decimal.Decimal `gorm:"column:price_adjustment_inr;type:numeric(12,2);not null;default:0"`
	PriceAdjustmentUSD decimal.Decimal `gorm:"column:price_adjustment_usd;type:numeric(12,2);not null;default:0"`
}
