package product

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// FileInput is one uploaded image held in memory.
type FileInput struct {
	Name string
	Data []byte
}

// AttributeValueInput selects an attribute value with optional price adjustments.
type AttributeValueInput struct {
	AttributeValueID   uint            `json:"attribute_value_id" validate:"required"`
	PriceAdjustmentINR decimal.Decimal `json:"price_adjustment_inr"`
	PriceAdjustmentUSD decimal.Decimal `json:"price_adjustment_usd"`
}

// AttributeInput enables one attribute on a product.
type AttributeInput struct {
	AttributeID uint                  `json:"attribute_id" validate:"required"`
	IsRequired  bool                  `json:"is_required"`
	Values      []AttributeValueInput `json:"values" validate:"dive"`
}

// VariantInput describes a new SKU. Images are attached after the variant row exists.
type VariantInput struct {
	SKU               string              `json:"sku" validate:"required,max=64"`
	PriceINR          decimal.Decimal     `json:"price_inr"`
	PriceUSD          decimal.Decimal     `json:"price_usd"`
	StockCount        int                 `json:"stock_count" validate:"gte=0"`
	StockStatus       enums.StockStatus   `json:"stock_status"`
	Weight            decimal.NullDecimal `json:"weight"`
	IsDefault         bool                `json:"is_default"`
	AttributeValueIDs []uint              `json:"attribute_values"`
	Images            []FileInput         `json:"-"`
}

// VariantUpdateInput patches an existing variant. A non-nil AttributeValueIDs
// replaces the variant's bindings wholesale.
type VariantUpdateInput struct {
	ID                uint                 `json:"id" validate:"required"`
	SKU               *string              `json:"sku" validate:"omitempty,max=64"`
	PriceINR          *decimal.Decimal     `json:"price_inr"`
	PriceUSD          *decimal.Decimal     `json:"price_usd"`
	StockCount        *int                 `json:"stock_count" validate:"omitempty,gte=0"`
	StockStatus       *enums.StockStatus   `json:"stock_status"`
	Weight            *decimal.NullDecimal `json:"weight"`
	IsDefault         *bool                `json:"is_default"`
	AttributeValueIDs *[]uint              `json:"updated_attribute_values"`
	NewImages         []FileInput          `json:"-"`
}

// CreateProductInput holds the parsed payload to create a product aggregate.
// Nil pointers take the catalog defaults.
type CreateProductInput struct {
	Title              string              `json:"title" validate:"required,max=255"`
	Slug               string              `json:"slug" validate:"omitempty,max=255"`
	Description        string              `json:"description"`
	ShortDescription   string              `json:"short_description"`
	Status             enums.ProductStatus `json:"status"`
	PriceINR           decimal.Decimal     `json:"price_inr"`
	PriceUSD           decimal.Decimal     `json:"price_usd"`
	ComparePriceINR    decimal.NullDecimal `json:"compare_price_inr"`
	ComparePriceUSD    decimal.NullDecimal `json:"compare_price_usd"`
	StockCount         *int                `json:"stock_count" validate:"omitempty,gte=0"`
	StockStatus        enums.StockStatus   `json:"stock_status"`
	QuantityLimit      *int                `json:"quantity_limit" validate:"omitempty,gte=1"`
	IsShippingRequired *bool               `json:"is_shipping_required"`
	IsTaxable          *bool               `json:"is_taxable"`
	HasVariants        bool                `json:"has_variants"`
	CategoryID         *uint               `json:"cat_id"`
	SubCategoryID      *uint               `json:"subcat_id"`
	Images             []FileInput         `json:"-"`
	Attributes         []AttributeInput    `json:"attributes" validate:"dive"`
	Variants           []VariantInput      `json:"variants" validate:"dive"`
}

// UpdateProductInput holds optional mutations for a product aggregate.
// A non-nil UpdatedAttributes replaces every attribute binding, even when empty.
type UpdateProductInput struct {
	ExpectedVersion *int `json:"expected_version"`

	Title              *string              `json:"title" validate:"omitempty,max=255"`
	Slug               *string              `json:"slug" validate:"omitempty,max=255"`
	Description        *string              `json:"description"`
	ShortDescription   *string              `json:"short_description"`
	Status             *enums.ProductStatus `json:"status"`
	PriceINR           *decimal.Decimal     `json:"price_inr"`
	PriceUSD           *decimal.Decimal     `json:"price_usd"`
	ComparePriceINR    *decimal.NullDecimal `json:"compare_price_inr"`
	ComparePriceUSD    *decimal.NullDecimal `json:"compare_price_usd"`
	StockCount         *int                 `json:"stock_count" validate:"omitempty,gte=0"`
	StockStatus        *enums.StockStatus   `json:"stock_status"`
	QuantityLimit      *int                 `json:"quantity_limit" validate:"omitempty,gte=1"`
	IsShippingRequired *bool                `json:"is_shipping_required"`
	IsTaxable          *bool                `json:"is_taxable"`
	HasVariants        *bool                `json:"has_variants"`
	CategoryID         *uint                `json:"cat_id"`
	SubCategoryID      *uint                `json:"subcat_id"`

	NewImages         []FileInput          `json:"-"`
	DeletedImageIDs   []uint               `json:"deleted_image_ids"`
	UpdatedAttributes *[]AttributeInput    `json:"updated_attributes" validate:"omitempty,dive"`
	NewVariants       []VariantInput       `json:"new_variants" validate:"dive"`
	UpdatedVariants   []VariantUpdateInput `json:"updated_variants" validate:"dive"`
	DeletedVariantIDs []uint               `json:"deleted_variant_ids"`
}
