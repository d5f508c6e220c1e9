package product

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const maxSlugAttempts = 50

func validateCreateInput(input CreateProductInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.Status != "" && !input.Status.IsValid() {
		return invalidField("status", string(input.Status))
	}
	if input.StockStatus != "" && !input.StockStatus.IsValid() {
		return invalidField("stock_status", string(input.StockStatus))
	}
	if input.StockCount != nil && *input.StockCount < 0 {
		return invalidField("stock_count", *input.StockCount)
	}
	if input.QuantityLimit != nil && *input.QuantityLimit < 1 {
		return invalidField("quantity_limit", *input.QuantityLimit)
	}
	if input.PriceINR.IsNegative() || input.PriceUSD.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "prices must not be negative")
	}
	return validateNewVariants(input.Variants)
}

func validateNewVariants(variants []VariantInput) error {
	seen := make(map[string]struct{}, len(variants))
	for idx, v := range variants {
		sku := strings.TrimSpace(v.SKU)
		if sku == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant sku is required").
				WithDetails(map[string]any{"variant_index": idx})
		}
		if _, dup := seen[sku]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate variant sku in request").
				WithDetails(map[string]any{"sku": sku})
		}
		seen[sku] = struct{}{}
		if v.StockStatus != "" && !v.StockStatus.IsValid() {
			return invalidField("stock_status", string(v.StockStatus))
		}
		if v.StockCount < 0 {
			return invalidField("stock_count", v.StockCount)
		}
		if v.PriceINR.IsNegative() || v.PriceUSD.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant prices must not be negative").
				WithDetails(map[string]any{"sku": sku})
		}
	}
	return nil
}

// validateUpdateInput rejects malformed id lists before anything is mutated.
// Each list must be free of duplicates and a variant cannot be both updated
// and deleted. Image ids and variant ids are separate id spaces.
func validateUpdateInput(input UpdateProductInput) error {
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title must not be empty")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return invalidField("status", string(*input.Status))
	}
	if input.StockStatus != nil && !input.StockStatus.IsValid() {
		return invalidField("stock_status", string(*input.StockStatus))
	}
	if input.StockCount != nil && *input.StockCount < 0 {
		return invalidField("stock_count", *input.StockCount)
	}
	if input.QuantityLimit != nil && *input.QuantityLimit < 1 {
		return invalidField("quantity_limit", *input.QuantityLimit)
	}

	updatedIDs := make([]uint, 0, len(input.UpdatedVariants))
	for _, v := range input.UpdatedVariants {
		if v.ID == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "updated variant id is required")
		}
		if v.StockStatus != nil && !v.StockStatus.IsValid() {
			return invalidField("stock_status", string(*v.StockStatus))
		}
		if v.SKU != nil && strings.TrimSpace(*v.SKU) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant sku must not be empty")
		}
		updatedIDs = append(updatedIDs, v.ID)
	}

	if dups := duplicates(input.DeletedImageIDs); len(dups) > 0 {
		return overlapError("deleted_image_ids contains duplicate ids", dups)
	}
	if dups := duplicates(updatedIDs); len(dups) > 0 {
		return overlapError("updated_variants contains duplicate ids", dups)
	}
	if dups := duplicates(input.DeletedVariantIDs); len(dups) > 0 {
		return overlapError("deleted_variant_ids contains duplicate ids", dups)
	}
	if shared := intersect(updatedIDs, input.DeletedVariantIDs); len(shared) > 0 {
		return overlapError("variant ids cannot be both updated and deleted", shared)
	}
	return validateNewVariants(input.NewVariants)
}

// ensureOwned checks that every requested image and variant id belongs to the
// loaded aggregate.
func ensureOwned(product *models.Product, input UpdateProductInput) error {
	images := make(map[uint]struct{})
	for _, img := range product.Images {
		images[img.ID] = struct{}{}
	}
	variants := make(map[uint]struct{}, len(product.Variants))
	for _, v := range product.Variants {
		variants[v.ID] = struct{}{}
		for _, img := range v.Images {
			images[img.ID] = struct{}{}
		}
	}

	for _, id := range input.DeletedImageIDs {
		if _, ok := images[id]; !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product image not found").
				WithDetails(map[string]any{"image_id": id})
		}
	}
	for _, v := range input.UpdatedVariants {
		if _, ok := variants[v.ID]; !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found").
				WithDetails(map[string]any{"variant_id": v.ID})
		}
	}
	for _, id := range input.DeletedVariantIDs {
		if _, ok := variants[id]; !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found").
				WithDetails(map[string]any{"variant_id": id})
		}
	}
	return nil
}

// newProductRow parses the create payload into a row with catalog defaults.
func newProductRow(input CreateProductInput, defaultQuantityLimit int) *models.Product {
	status := input.Status
	if status == "" {
		status = enums.ProductStatusActive
	}
	stockStatus := input.StockStatus
	if stockStatus == "" {
		stockStatus = enums.StockStatusInStock
	}
	stockCount := 0
	if input.StockCount != nil {
		stockCount = *input.StockCount
	}
	quantityLimit := defaultQuantityLimit
	if input.QuantityLimit != nil {
		quantityLimit = *input.QuantityLimit
	}

	return &models.Product{
		Title:              strings.TrimSpace(input.Title),
		Slug:               strings.TrimSpace(input.Slug),
		Description:        input.Description,
		ShortDescription:   input.ShortDescription,
		Status:             status,
		PriceINR:           input.PriceINR,
		PriceUSD:           input.PriceUSD,
		ComparePriceINR:    input.ComparePriceINR,
		ComparePriceUSD:    input.ComparePriceUSD,
		StockCount:         stockCount,
		StockStatus:        stockStatus,
		QuantityLimit:      quantityLimit,
		IsShippingRequired: boolOr(input.IsShippingRequired, true),
		IsTaxable:          boolOr(input.IsTaxable, true),
		HasVariants:        input.HasVariants,
		Version:            1,
	}
}

// scalarChanges maps the supplied update fields to columns.
func scalarChanges(input UpdateProductInput) map[string]any {
	fields := map[string]any{}
	if input.Title != nil {
		fields["title"] = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		fields["description"] = *input.Description
	}
	if input.ShortDescription != nil {
		fields["short_description"] = *input.ShortDescription
	}
	if input.Status != nil {
		fields["status"] = string(*input.Status)
	}
	if input.PriceINR != nil {
		fields["price_inr"] = *input.PriceINR
	}
	if input.PriceUSD != nil {
		fields["price_usd"] = *input.PriceUSD
	}
	if input.ComparePriceINR != nil {
		fields["compare_price_inr"] = *input.ComparePriceINR
	}
	if input.ComparePriceUSD != nil {
		fields["compare_price_usd"] = *input.ComparePriceUSD
	}
	if input.StockCount != nil {
		fields["stock_count"] = *input.StockCount
	}
	if input.StockStatus != nil {
		fields["stock_status"] = string(*input.StockStatus)
	}
	if input.QuantityLimit != nil {
		fields["quantity_limit"] = *input.QuantityLimit
	}
	if input.IsShippingRequired != nil {
		fields["is_shipping_required"] = *input.IsShippingRequired
	}
	if input.IsTaxable != nil {
		fields["is_taxable"] = *input.IsTaxable
	}
	if input.HasVariants != nil {
		fields["has_variants"] = *input.HasVariants
	}
	return fields
}

func variantChanges(input VariantUpdateInput) map[string]any {
	fields := map[string]any{}
	if input.SKU != nil {
		fields["sku"] = strings.TrimSpace(*input.SKU)
	}
	if input.PriceINR != nil {
		fields["price_inr"] = *input.PriceINR
	}
	if input.PriceUSD != nil {
		fields["price_usd"] = *input.PriceUSD
	}
	if input.StockCount != nil {
		fields["stock_count"] = *input.StockCount
	}
	if input.StockStatus != nil {
		fields["stock_status"] = string(*input.StockStatus)
	}
	if input.Weight != nil {
		fields["weight"] = *input.Weight
	}
	if input.IsDefault != nil {
		fields["is_default"] = *input.IsDefault
	}
	return fields
}

// resolveTaxonomy validates the category references. A sub category implies
// its parent category when none is given.
func (s *service) resolveTaxonomy(ctx context.Context, categoryID, subCategoryID *uint) (*uint, *uint, error) {
	if subCategoryID != nil {
		sub, err := s.repo.FindSubCategory(ctx, *subCategoryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, unknownReference("sub category", *subCategoryID)
			}
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load sub category")
		}
		if categoryID != nil && *categoryID != sub.CategoryID {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "sub category does not belong to category").
				WithDetails(map[string]any{"cat_id": *categoryID, "subcat_id": sub.ID})
		}
		catID := sub.CategoryID
		subID := sub.ID
		return &catID, &subID, nil
	}
	if categoryID != nil {
		ok, err := s.repo.CategoryExists(ctx, *categoryID)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load category")
		}
		if !ok {
			return nil, nil, unknownReference("category", *categoryID)
		}
	}
	return categoryID, nil, nil
}

// uniqueSlug derives a slug from base and suffixes it until no other product uses it.
func (s *service) uniqueSlug(ctx context.Context, base string, excludeID uint) (string, error) {
	root := slugify(base)
	if root == "" {
		root = "product"
	}
	candidate := root
	for attempt := 2; attempt <= maxSlugAttempts+1; attempt++ {
		taken, err := s.repo.SlugExists(ctx, candidate, excludeID)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check slug")
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", root, attempt)
	}
	return "", pkgerrors.New(pkgerrors.CodeConflict, "could not derive a unique slug").
		WithDetails(map[string]any{"slug": root})
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func duplicates(ids []uint) []uint {
	seen := make(map[uint]int, len(ids))
	for _, id := range ids {
		seen[id]++
	}
	var out []uint
	for id, n := range seen {
		if n > 1 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func intersect(a, b []uint) []uint {
	set := make(map[uint]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	var out []uint
	for _, id := range b {
		if _, ok := set[id]; ok {
			out = append(out, id)
			delete(set, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func overlapError(msg string, ids []uint) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"ids": ids})
}

func invalidField(field string, value any) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid %s", field)).
		WithDetails(map[string]any{"field": field, "value": value})
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
