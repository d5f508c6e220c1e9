package enums

import "fmt"

// ProductStatus is the storefront visibility of a product.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

var validProductStatuses = []ProductStatus{
	ProductStatusActive,
	ProductStatusInactive,
}

// String implements fmt.Stringer.
func (s ProductStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ProductStatus.
func (s ProductStatus) IsValid() bool {
	for _, candidate := range validProductStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseProductStatus converts raw input into a ProductStatus.
func ParseProductStatus(value string) (ProductStatus, error) {
	for _, candidate := range validProductStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product status %q", value)
}

// StockStatus describes availability shown to shoppers.
type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
	StockStatusBackorder  StockStatus = "backorder"
)

var validStockStatuses = []StockStatus{
	StockStatusInStock,
	StockStatusOutOfStock,
	StockStatusBackorder,
}

// String implements fmt.Stringer.
func (s StockStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches a known StockStatus.
func (s StockStatus) IsValid() bool {
	for _, candidate := range validStockStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockStatus converts raw input into a StockStatus.
func ParseStockStatus(value string) (StockStatus, error) {
	for _, candidate := range validStockStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock status %q", value)
}

// ImageType separates the lead image from the rest of a gallery.
type ImageType string

const (
	ImageTypeMain    ImageType = "main"
	ImageTypeGallery ImageType = "gallery"
)

var validImageTypes = []ImageType{
	ImageTypeMain,
	ImageTypeGallery,
}

// String implements fmt.Stringer.
func (t ImageType) String() string {
	return string(t)
}

// IsValid reports whether the value matches a known ImageType.
func (t ImageType) IsValid() bool {
	for _, candidate := range validImageTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ImageTypeForPosition maps a batch position to its image type.
func ImageTypeForPosition(position int) ImageType {
	if position == 0 {
		return ImageTypeMain
	}
	return ImageTypeGallery
}
