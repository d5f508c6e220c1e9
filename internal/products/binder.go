package product

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// binder attaches attribute selections and variants to an existing product.
// It never rolls back rows written before a failing item.
type binder struct {
	repo     *Repository
	dbClient *db.Client
	images   *imageAttacher
}

// withTx returns a binder whose attribute writes go through tx. Variant
// binding is not available on it since images need the remote store.
func (b *binder) withTx(tx *gorm.DB) *binder {
	return &binder{repo: b.repo.WithTx(tx)}
}

// BindAttributes creates one ProductAttribute per input and one
// ProductAttributeValue per selected value.
func (b *binder) BindAttributes(ctx context.Context, productID uint, attrs []AttributeInput) error {
	if len(attrs) == 0 {
		return nil
	}
	known, err := b.attributeIndex(ctx, attrs)
	if err != nil {
		return err
	}
	values, err := b.valueIndex(ctx, collectAttributeValueIDs(attrs))
	if err != nil {
		return err
	}

	for _, input := range attrs {
		if _, ok := known[input.AttributeID]; !ok {
			return unknownReference("attribute", input.AttributeID)
		}
		row := &models.ProductAttribute{
			ProductID:   productID,
			AttributeID: input.AttributeID,
			IsRequired:  input.IsRequired,
		}
		if err := b.repo.CreateProductAttribute(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product attribute")
		}

		for _, sel := range input.Values {
			value, ok := values[sel.AttributeValueID]
			if !ok {
				return unknownReference("attribute value", sel.AttributeValueID)
			}
			if value.AttributeID != input.AttributeID {
				return pkgerrors.New(pkgerrors.CodeValidation, "attribute value does not belong to attribute").
					WithDetails(map[string]any{
						"attribute_id":       input.AttributeID,
						"attribute_value_id": sel.AttributeValueID,
					})
			}
			entry := &models.ProductAttributeValue{
				ProductAttributeID: row.ID,
				AttributeValueID:   sel.AttributeValueID,
				PriceAdjustmentINR: sel.PriceAdjustmentINR,
				PriceAdjustmentUSD: sel.PriceAdjustmentUSD,
			}
			if err := b.repo.CreateProductAttributeValue(ctx, entry); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product attribute value")
			}
		}
	}
	return nil
}

// BindVariants creates variants strictly in input order. A failure on one
// variant stops the batch; earlier variants stay committed. Each variant row
// and its bindings are written atomically before its images are attached.
func (b *binder) BindVariants(ctx context.Context, scope *remoteScope, productID uint, variants []VariantInput) ([]uint, error) {
	created := make([]uint, 0, len(variants))
	if len(variants) == 0 {
		return created, nil
	}
	values, err := b.valueIndex(ctx, collectVariantValueIDs(variants))
	if err != nil {
		return created, err
	}

	for idx, input := range variants {
		for _, id := range input.AttributeValueIDs {
			if _, ok := values[id]; !ok {
				return created, unknownReference("attribute value", id).
					WithDetails(map[string]any{"variant_index": idx, "attribute_value_id": id})
			}
		}
		variant := newVariantRow(productID, input)
		if err := b.ensureSKUAvailable(ctx, variant.SKU, 0); err != nil {
			return created, err
		}

		if err := b.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := b.repo.WithTx(tx)
			if err := txRepo.CreateVariant(ctx, variant); err != nil {
				return err
			}
			return txRepo.ReplaceVariantAttributeValues(ctx, variant.ID, input.AttributeValueIDs)
		}); err != nil {
			if db.IsUniqueViolation(err, "") {
				return created, pkgerrors.New(pkgerrors.CodeConflict, "variant sku already exists").
					WithDetails(map[string]any{"sku": variant.SKU})
			}
			return created, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert variant")
		}
		created = append(created, variant.ID)

		variantID := variant.ID
		if err := b.images.Attach(ctx, scope, productID, &variantID, input.Images, 0); err != nil {
			return created, err
		}
	}
	return created, nil
}

// validateValueIDs checks that every id names an existing attribute value.
func (b *binder) validateValueIDs(ctx context.Context, ids []uint) error {
	values, err := b.valueIndex(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := values[id]; !ok {
			return unknownReference("attribute value", id)
		}
	}
	return nil
}

func (b *binder) ensureSKUAvailable(ctx context.Context, sku string, excludeID uint) error {
	taken, err := b.repo.SKUExists(ctx, sku, excludeID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check sku")
	}
	if taken {
		return pkgerrors.New(pkgerrors.CodeConflict, "variant sku already exists").
			WithDetails(map[string]any{"sku": sku})
	}
	return nil
}

func (b *binder) attributeIndex(ctx context.Context, attrs []AttributeInput) (map[uint]models.Attribute, error) {
	ids := make([]uint, 0, len(attrs))
	for _, a := range attrs {
		ids = append(ids, a.AttributeID)
	}
	rows, err := b.repo.FindAttributes(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load attributes")
	}
	index := make(map[uint]models.Attribute, len(rows))
	for _, row := range rows {
		index[row.ID] = row
	}
	return index, nil
}

func (b *binder) valueIndex(ctx context.Context, ids []uint) (map[uint]models.AttributeValue, error) {
	rows, err := b.repo.FindAttributeValues(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load attribute values")
	}
	index := make(map[uint]models.AttributeValue, len(rows))
	for _, row := range rows {
		index[row.ID] = row
	}
	return index, nil
}

func newVariantRow(productID uint, input VariantInput) *models.ProductVariant {
	status := input.StockStatus
	if status == "" {
		status = enums.StockStatusInStock
	}
	return &models.ProductVariant{
		ProductID:   productID,
		SKU:         strings.TrimSpace(input.SKU),
		PriceINR:    input.PriceINR,
		PriceUSD:    input.PriceUSD,
		StockCount:  input.StockCount,
		StockStatus: status,
		Weight:      input.Weight,
		IsDefault:   input.IsDefault,
	}
}

func collectAttributeValueIDs(attrs []AttributeInput) []uint {
	var ids []uint
	for _, a := range attrs {
		for _, v := range a.Values {
			ids = append(ids, v.AttributeValueID)
		}
	}
	return ids
}

func collectVariantValueIDs(variants []VariantInput) []uint {
	var ids []uint
	for _, v := range variants {
		ids = append(ids, v.AttributeValueIDs...)
	}
	return ids
}

func unknownReference(kind string, id uint) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown %s %d", kind, id))
}
