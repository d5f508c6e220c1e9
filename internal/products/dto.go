package product

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// ProductDTO is the fully populated aggregate returned to admin clients.
type ProductDTO struct {
	ID                 uint             `json:"id"`
	Title              string           `json:"title"`
	Slug               string           `json:"slug"`
	Description        string           `json:"description"`
	ShortDescription   string           `json:"short_description"`
	Status             string           `json:"status"`
	PriceINR           decimal.Decimal  `json:"price_inr"`
	PriceUSD           decimal.Decimal  `json:"price_usd"`
	ComparePriceINR    *decimal.Decimal `json:"compare_price_inr,omitempty"`
	ComparePriceUSD    *decimal.Decimal `json:"compare_price_usd,omitempty"`
	StockCount         int              `json:"stock_count"`
	StockStatus        string           `json:"stock_status"`
	QuantityLimit      int              `json:"quantity_limit"`
	IsShippingRequired bool             `json:"is_shipping_required"`
	IsTaxable          bool             `json:"is_taxable"`
	HasVariants        bool             `json:"has_variants"`
	CategoryID         *uint            `json:"cat_id,omitempty"`
	SubCategoryID      *uint            `json:"subcat_id,omitempty"`
	Category           *CategoryDTO     `json:"category,omitempty"`
	SubCategory        *SubCategoryDTO  `json:"sub_category,omitempty"`
	Images             []ImageDTO       `json:"images"`
	Attributes         []AttributeDTO   `json:"attributes"`
	Variants           []VariantDTO     `json:"variants"`
	Version            int              `json:"version"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

type CategoryDTO struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type SubCategoryDTO struct {
	ID       uint         `json:"id"`
	Name     string       `json:"name"`
	Slug     string       `json:"slug"`
	Category *CategoryDTO `json:"category,omitempty"`
}

// ImageDTO exposes the stored relative name and its rendered URL.
type ImageDTO struct {
	ID           uint   `json:"id"`
	VariantID    *uint  `json:"product_variant_id,omitempty"`
	FileName     string `json:"file_name"`
	URL          string `json:"url"`
	ImageType    string `json:"image_type"`
	DisplayOrder int    `json:"display_order"`
	IsThumbnail  bool   `json:"is_thumbnail"`
}

type AttributeDTO struct {
	ID          uint                `json:"id"`
	AttributeID uint                `json:"attribute_id"`
	Name        string              `json:"name"`
	IsRequired  bool                `json:"is_required"`
	Values      []AttributeValueDTO `json:"values"`
}

type AttributeValueDTO struct {
	ID                 uint            `json:"id"`
	AttributeValueID   uint            `json:"attribute_value_id"`
	Value              string          `json:"value"`
	PriceAdjustmentINR decimal.Decimal `json:"price_adjustment_inr"`
	PriceAdjustmentUSD decimal.Decimal `json:"price_adjustment_usd"`
}

type VariantDTO struct {
	ID              uint                       `json:"id"`
	SKU             string                     `json:"sku"`
	PriceINR        decimal.Decimal            `json:"price_inr"`
	PriceUSD        decimal.Decimal            `json:"price_usd"`
	StockCount      int                        `json:"stock_count"`
	StockStatus     string                     `json:"stock_status"`
	Weight          *decimal.Decimal           `json:"weight,omitempty"`
	IsDefault       bool                       `json:"is_default"`
	AttributeValues []VariantAttributeValueDTO `json:"attribute_values"`
	Images          []ImageDTO                 `json:"images"`
}

type VariantAttributeValueDTO struct {
	AttributeValueID uint   `json:"attribute_value_id"`
	AttributeID      uint   `json:"attribute_id"`
	Value            string `json:"value"`
}

// DeleteResult reports a completed delete with a snapshot of what was removed.
type DeleteResult struct {
	Success        bool        `json:"success"`
	DeletedProduct *ProductDTO `json:"deleted_product"`
}

// NewProductDTO builds a DTO from a preloaded aggregate. urlFor renders stored
// names against the media public base URL.
func NewProductDTO(product *models.Product, urlFor func(string) string) *ProductDTO {
	if urlFor == nil {
		urlFor = func(name string) string { return name }
	}
	dto := &ProductDTO{
		ID:                 product.ID,
		Title:              product.Title,
		Slug:               product.Slug,
		Description:        product.Description,
		ShortDescription:   product.ShortDescription,
		Status:             string(product.Status),
		PriceINR:           product.PriceINR,
		PriceUSD:           product.PriceUSD,
		ComparePriceINR:    nullableDecimal(product.ComparePriceINR),
		ComparePriceUSD:    nullableDecimal(product.ComparePriceUSD),
		StockCount:         product.StockCount,
		StockStatus:        string(product.StockStatus),
		QuantityLimit:      product.QuantityLimit,
		IsShippingRequired: product.IsShippingRequired,
		IsTaxable:          product.IsTaxable,
		HasVariants:        product.HasVariants,
		CategoryID:         product.CategoryID,
		SubCategoryID:      product.SubCategoryID,
		Version:            product.Version,
		CreatedAt:          product.CreatedAt,
		UpdatedAt:          product.UpdatedAt,
		Images:             make([]ImageDTO, 0, len(product.Images)),
		Attributes:         make([]AttributeDTO, 0, len(product.Attributes)),
		Variants:           make([]VariantDTO, 0, len(product.Variants)),
	}

	if product.Category != nil {
		dto.Category = newCategoryDTO(product.Category)
	}
	if product.SubCategory != nil {
		dto.SubCategory = &SubCategoryDTO{
			ID:   product.SubCategory.ID,
			Name: product.SubCategory.Name,
			Slug: product.SubCategory.Slug,
		}
		if product.SubCategory.Category != nil {
			dto.SubCategory.Category = newCategoryDTO(product.SubCategory.Category)
		}
	}

	for _, img := range product.Images {
		dto.Images = append(dto.Images, newImageDTO(img, urlFor))
	}

	for _, attr := range product.Attributes {
		entry := AttributeDTO{
			ID:          attr.ID,
			AttributeID: attr.AttributeID,
			IsRequired:  attr.IsRequired,
			Values:      make([]AttributeValueDTO, 0, len(attr.Values)),
		}
		if attr.Attribute != nil {
			entry.Name = attr.Attribute.Name
		}
		for _, val := range attr.Values {
			v := AttributeValueDTO{
				ID:                 val.ID,
				AttributeValueID:   val.AttributeValueID,
				PriceAdjustmentINR: val.PriceAdjustmentINR,
				PriceAdjustmentUSD: val.PriceAdjustmentUSD,
			}
			if val.AttributeValue != nil {
				v.Value = val.AttributeValue.Value
			}
			entry.Values = append(entry.Values, v)
		}
		dto.Attributes = append(dto.Attributes, entry)
	}

	for _, variant := range product.Variants {
		entry := VariantDTO{
			ID:              variant.ID,
			SKU:             variant.SKU,
			PriceINR:        variant.PriceINR,
			PriceUSD:        variant.PriceUSD,
			StockCount:      variant.StockCount,
			StockStatus:     string(variant.StockStatus),
			Weight:          nullableDecimal(variant.Weight),
			IsDefault:       variant.IsDefault,
			AttributeValues: make([]VariantAttributeValueDTO, 0, len(variant.AttributeValues)),
			Images:          make([]ImageDTO, 0, len(variant.Images)),
		}
		for _, binding := range variant.AttributeValues {
			v := VariantAttributeValueDTO{AttributeValueID: binding.AttributeValueID}
			if binding.AttributeValue != nil {
				v.AttributeID = binding.AttributeValue.AttributeID
				v.Value = binding.AttributeValue.Value
			}
			entry.AttributeValues = append(entry.AttributeValues, v)
		}
		for _, img := range variant.Images {
			entry.Images = append(entry.Images, newImageDTO(img, urlFor))
		}
		dto.Variants = append(dto.Variants, entry)
	}

	return dto
}

func newCategoryDTO(c *models.Category) *CategoryDTO {
	return &CategoryDTO{ID: c.ID, Name: c.Name, Slug: c.Slug}
}

func newImageDTO(img models.ProductImage, urlFor func(string) string) ImageDTO {
	return ImageDTO{
		ID:           img.ID,
		VariantID:    img.ProductVariantID,
		FileName:     img.FileName,
		URL:          urlFor(img.FileName),
		ImageType:    string(img.ImageType),
		DisplayOrder: img.DisplayOrder,
		IsThumbnail:  img.IsThumbnail,
	}
}

func nullableDecimal(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}
