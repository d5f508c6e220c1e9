package product

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestCreateProductAppliesDefaultsAndOrdersImages(t *testing.T) {
	h := newHarness(t)
	input := h.baseInput("Trail Runner")
	input.Images = pngFiles("front.png", "side.png", "back.png")

	dto := h.mustCreate(t, input)

	assert.Equal(t, "trail-runner", dto.Slug)
	assert.Equal(t, 0, dto.StockCount)
	assert.Equal(t, 10, dto.QuantityLimit)
	assert.Equal(t, "active", dto.Status)
	assert.Equal(t, "in_stock", dto.StockStatus)
	assert.True(t, dto.IsShippingRequired)
	assert.True(t, dto.IsTaxable)
	assert.Equal(t, 1, dto.Version)
	require.NotNil(t, dto.CategoryID)
	assert.Equal(t, h.catalog.category.ID, *dto.CategoryID)
	require.NotNil(t, dto.SubCategory)
	require.NotNil(t, dto.SubCategory.Category)
	assert.Equal(t, "Footwear", dto.SubCategory.Category.Name)

	require.Len(t, dto.Images, 3)
	var types []string
	var orders []int
	for i, img := range dto.Images {
		types = append(types, img.ImageType)
		orders = append(orders, img.DisplayOrder)
		assert.Equal(t, i == 0, img.IsThumbnail)
		assert.True(t, strings.HasPrefix(img.URL, "https://cdn.example.com/products/"))
		assert.True(t, h.store.Has(img.FileName))
		assert.Equal(t, enums.MediaIntentCommitted, h.intentStatus(t, img.FileName))
	}
	assert.Equal(t, []string{"main", "gallery", "gallery"}, types)
	assert.Equal(t, []int{0, 1, 2}, orders)
	assert.True(t, strings.HasSuffix(dto.Images[0].FileName, "-0-front.png"))
	assert.True(t, strings.HasSuffix(dto.Images[2].FileName, "-2-back.png"))

	pending, err := h.staging.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.True(t, h.store.Balanced(), "remote session must be closed")
}

func TestCreateThenGetRoundTrips(t *testing.T) {
	h := newHarness(t)
	input := h.baseInput("Canvas Sneaker")
	input.QuantityLimit = ptr(4)
	input.StockCount = ptr(25)
	input.IsTaxable = ptr(false)
	input.ComparePriceINR = decimal.NewNullDecimal(decimal.RequireFromString("1999.00"))

	created := h.mustCreate(t, input)
	fetched, err := h.svc.GetProduct(context.Background(), created.ID)
	require.NoError(t, err)

	assert.Equal(t, created.Title, fetched.Title)
	assert.Equal(t, 4, fetched.QuantityLimit)
	assert.Equal(t, 25, fetched.StockCount)
	assert.False(t, fetched.IsTaxable)
	assert.True(t, fetched.PriceINR.Equal(decimal.RequireFromString("1499")))
	require.NotNil(t, fetched.ComparePriceINR)
	assert.True(t, fetched.ComparePriceINR.Equal(decimal.RequireFromString("1999")))
	assert.Nil(t, fetched.ComparePriceUSD)
	assert.Empty(t, fetched.Images)
	assert.Empty(t, fetched.Variants)
}

func TestCreateDerivesUniqueSlugs(t *testing.T) {
	h := newHarness(t)
	first := h.mustCreate(t, h.baseInput("Desert Boot"))
	second := h.mustCreate(t, h.baseInput("Desert Boot"))

	assert.Equal(t, "desert-boot", first.Slug)
	assert.Equal(t, "desert-boot-2", second.Slug)
}

func TestCreateWithVariantsBindsExactAttributeValues(t *testing.T) {
	h := newHarness(t)
	c := h.catalog
	input := h.baseInput("Court Classic")
	input.HasVariants = true
	input.Attributes = []AttributeInput{
		{AttributeID: c.color.ID, IsRequired: true, Values: []AttributeValueInput{
			{AttributeValueID: c.red.ID, PriceAdjustmentINR: decimal.RequireFromString("50")},
			{AttributeValueID: c.blue.ID},
		}},
	}
	input.Variants = []VariantInput{
		{SKU: "CC-RED-S", PriceINR: decimal.RequireFromString("1499"), PriceUSD: decimal.RequireFromString("17.99"),
			AttributeValueIDs: []uint{c.red.ID, c.small.ID}, Images: pngFiles("red.png", "red-side.png")},
		{SKU: "CC-BLUE-L", PriceINR: decimal.RequireFromString("1549"), PriceUSD: decimal.RequireFromString("18.49"),
			AttributeValueIDs: []uint{c.blue.ID, c.large.ID}, IsDefault: true},
	}

	dto := h.mustCreate(t, input)

	require.Len(t, dto.Attributes, 1)
	assert.Equal(t, "Color", dto.Attributes[0].Name)
	require.Len(t, dto.Attributes[0].Values, 2)
	assert.True(t, dto.Attributes[0].Values[0].PriceAdjustmentINR.Equal(decimal.NewFromInt(50)))

	require.Len(t, dto.Variants, 2)
	assert.Equal(t, "CC-RED-S", dto.Variants[0].SKU)
	assert.ElementsMatch(t, []uint{c.red.ID, c.small.ID}, variantValueIDs(dto.Variants[0]))
	assert.ElementsMatch(t, []uint{c.blue.ID, c.large.ID}, variantValueIDs(dto.Variants[1]))
	assert.Equal(t, enums.StockStatusInStock.String(), dto.Variants[0].StockStatus)

	require.Len(t, dto.Variants[0].Images, 2)
	assert.Equal(t, "main", dto.Variants[0].Images[0].ImageType)
	assert.Equal(t, "gallery", dto.Variants[0].Images[1].ImageType)
	require.NotNil(t, dto.Variants[0].Images[0].VariantID)
	assert.Equal(t, dto.Variants[0].ID, *dto.Variants[0].Images[0].VariantID)
	assert.Empty(t, dto.Images, "variant images are not product-level images")
}

func TestCreateIgnoresVariantsWhenProductHasNone(t *testing.T) {
	h := newHarness(t)
	input := h.baseInput("Plain Slipper")
	input.Variants = []VariantInput{{SKU: "PS-1"}}

	dto := h.mustCreate(t, input)

	assert.Empty(t, dto.Variants)
	assert.Zero(t, h.count(t, &models.ProductVariant{}, ""))
}

func TestCreateCompensatesWhenUploadFails(t *testing.T) {
	h := newHarness(t)
	h.store.FailUpload = func(name string) error {
		if strings.Contains(name, "-1-") {
			return errors.New("quota exceeded")
		}
		return nil
	}
	input := h.baseInput("Broken Upload")
	input.Images = pngFiles("one.png", "two.png")

	_, err := h.svc.CreateProduct(context.Background(), input)
	require.Error(t, err)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, OpCreate, opErr.Op)
	assert.Equal(t, pkgerrors.CodeTransfer, pkgerrors.CodeOf(err))

	assert.Zero(t, h.count(t, &models.Product{}, ""))
	assert.Zero(t, h.count(t, &models.ProductImage{}, ""))
	assert.Empty(t, h.store.Files(), "uploaded file must be removed again")
	assert.Zero(t, h.count(t, &models.MediaUploadIntent{}, "status = ?", enums.MediaIntentPending))

	pending, err := h.staging.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending, "staged files must not leak on failure")
	assert.True(t, h.store.Balanced())
}

func TestCreateRejectsUnknownAttributeValue(t *testing.T) {
	h := newHarness(t)
	input := h.baseInput("Mystery")
	input.Attributes = []AttributeInput{
		{AttributeID: h.catalog.color.ID, Values: []AttributeValueInput{{AttributeValueID: 9999}}},
	}

	_, err := h.svc.CreateProduct(context.Background(), input)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.Zero(t, h.count(t, &models.Product{}, ""))
	assert.Zero(t, h.count(t, &models.ProductAttribute{}, ""))
}

func TestCreateRejectsValueFromAnotherAttribute(t *testing.T) {
	h := newHarness(t)
	input := h.baseInput("Crossed")
	input.Attributes = []AttributeInput{
		{AttributeID: h.catalog.color.ID, Values: []AttributeValueInput{{AttributeValueID: h.catalog.small.ID}}},
	}

	_, err := h.svc.CreateProduct(context.Background(), input)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestCreateRejectsUnknownSubCategory(t *testing.T) {
	h := newHarness(t)
	input := h.baseInput("Nowhere")
	input.SubCategoryID = ptr(uint(4242))

	_, err := h.svc.CreateProduct(context.Background(), input)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.Zero(t, h.count(t, &models.Product{}, ""))
}

func TestDeleteTwiceReturnsNotFound(t *testing.T) {
	h := newHarness(t)
	input := h.baseInput("Short Lived")
	input.HasVariants = true
	input.Images = pngFiles("a.png", "b.png")
	input.Attributes = []AttributeInput{{AttributeID: h.catalog.color.ID, Values: []AttributeValueInput{{AttributeValueID: h.catalog.red.ID}}}}
	input.Variants = []VariantInput{{SKU: "SL-1", AttributeValueIDs: []uint{h.catalog.red.ID}, Images: pngFiles("v.png")}}
	dto := h.mustCreate(t, input)
	require.Len(t, h.store.Files(), 3)

	res, err := h.svc.DeleteProduct(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, dto.ID, res.DeletedProduct.ID)
	assert.Empty(t, h.store.Files())

	for _, model := range []any{&models.Product{}, &models.ProductImage{}, &models.ProductAttribute{},
		&models.ProductAttributeValue{}, &models.ProductVariant{}, &models.VariantAttributeValue{}} {
		assert.Zero(t, h.count(t, model, ""), "%T rows must be gone", model)
	}

	_, err = h.svc.DeleteProduct(context.Background(), dto.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	assert.True(t, h.store.Balanced())
}

func TestDeleteProceedsWhenRemoteUnavailable(t *testing.T) {
	h := newHarness(t)
	input := h.baseInput("Stranded")
	input.Images = pngFiles("a.png")
	dto := h.mustCreate(t, input)

	h.store.FailOpen = errors.New("connection refused")
	res, err := h.svc.DeleteProduct(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, h.count(t, &models.Product{}, ""))
}

func TestUpdateRemovesImagesEvenWhenRemoteDeleteFails(t *testing.T) {
	h := newHarness(t)
	input := h.baseInput("Gallery")
	input.Images = pngFiles("a.png", "b.png", "c.png")
	dto := h.mustCreate(t, input)

	h.store.FailDelete = func(string) error { return errors.New("permission denied") }
	doomed := []uint{dto.Images[1].ID, dto.Images[2].ID}
	updated, err := h.svc.UpdateProduct(context.Background(), dto.ID, UpdateProductInput{DeletedImageIDs: doomed})
	require.NoError(t, err)

	require.Len(t, updated.Images, 1)
	assert.Equal(t, dto.Images[0].ID, updated.Images[0].ID)
	assert.Zero(t, h.count(t, &models.ProductImage{}, "id IN ?", doomed))
	assert.Len(t, h.store.Deleted(), 2)
}

func TestUpdateNewImagesContinueAfterRemainingImages(t *testing.T) {
	h := newHarness(t)
	input := h.baseInput("Extended")
	input.Images = pngFiles("a.png", "b.png")
	dto := h.mustCreate(t, input)

	updated, err := h.svc.UpdateProduct(context.Background(), dto.ID, UpdateProductInput{
		NewImages: pngFiles("c.png"),
	})
	require.NoError(t, err)
	require.Len(t, updated.Images, 3)
	assert.Equal(t, 2, updated.Images[2].DisplayOrder)
	assert.Equal(t, "gallery", updated.Images[2].ImageType)
	assert.False(t, updated.Images[2].IsThumbnail)
}

func TestUpdateNewImagesBecomeMainWhenAllOldOnesDeleted(t *testing.T) {
	h := newHarness(t)
	input := h.baseInput("Reshoot")
	input.Images = pngFiles("old.png")
	dto := h.mustCreate(t, input)

	updated, err := h.svc.UpdateProduct(context.Background(), dto.ID, UpdateProductInput{
		NewImages:       pngFiles("new.png"),
		DeletedImageIDs: []uint{dto.Images[0].ID},
	})
	require.NoError(t, err)
	require.Len(t, updated.Images, 1)
	assert.Equal(t, "main", updated.Images[0].ImageType)
	assert.True(t, updated.Images[0].IsThumbnail)
}

func TestUpdateReplacesAttributesWholesale(t *testing.T) {
	h := newHarness(t)
	c := h.catalog
	input := h.baseInput("Swap")
	input.Attributes = []AttributeInput{
		{AttributeID: c.color.ID, Values: []AttributeValueInput{{AttributeValueID: c.red.ID}, {AttributeValueID: c.blue.ID}}},
	}
	dto := h.mustCreate(t, input)

	next := []AttributeInput{{AttributeID: c.size.ID, IsRequired: true, Values: []AttributeValueInput{{AttributeValueID: c.large.ID}}}}
	updated, err := h.svc.UpdateProduct(context.Background(), dto.ID, UpdateProductInput{UpdatedAttributes: &next})
	require.NoError(t, err)

	require.Len(t, updated.Attributes, 1)
	assert.Equal(t, c.size.ID, updated.Attributes[0].AttributeID)
	require.Len(t, updated.Attributes[0].Values, 1)
	assert.Equal(t, c.large.ID, updated.Attributes[0].Values[0].AttributeValueID)
	assert.Equal(t, int64(1), h.count(t, &models.ProductAttributeValue{}, ""))

	empty := []AttributeInput{}
	cleared, err := h.svc.UpdateProduct(context.Background(), dto.ID, UpdateProductInput{UpdatedAttributes: &empty})
	require.NoError(t, err)
	assert.Empty(t, cleared.Attributes)
}

func TestUpdateFailedAttributeReplaceKeepsOldBindings(t *testing.T) {
	h := newHarness(t)
	c := h.catalog
	input := h.baseInput("Atomic")
	input.Attributes = []AttributeInput{{AttributeID: c.color.ID, Values: []AttributeValueInput{{AttributeValueID: c.red.ID}}}}
	dto := h.mustCreate(t, input)

	bad := []AttributeInput{{AttributeID: 777}}
	_, err := h.svc.UpdateProduct(context.Background(), dto.ID, UpdateProductInput{UpdatedAttributes: &bad})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.Equal(t, int64(1), h.count(t, &models.ProductAttribute{}, "product_id = ?", dto.ID))
}

func TestUpdateAddsAndDeletesVariantsWithUnreachableRemote(t *testing.T) {
	h := newHarness(t)
	c := h.catalog
	input := h.baseInput("Runner Pro")
	input.HasVariants = true
	input.Variants = []VariantInput{
		{SKU: "RP-1", AttributeValueIDs: []uint{c.red.ID}, Images: pngFiles("rp1.png")},
		{SKU: "RP-2", AttributeValueIDs: []uint{c.blue.ID}},
		{SKU: "RP-3", AttributeValueIDs: []uint{c.small.ID}},
	}
	dto := h.mustCreate(t, input)
	require.Len(t, dto.Variants, 3)
	doomed := dto.Variants[0]

	h.store.FailOpen = errors.New("no route to host")
	updated, err := h.svc.UpdateProduct(context.Background(), dto.ID, UpdateProductInput{
		DeletedVariantIDs: []uint{doomed.ID},
		NewVariants: []VariantInput{
			{SKU: "RP-4", AttributeValueIDs: []uint{c.large.ID}},
			{SKU: "RP-5", AttributeValueIDs: []uint{c.red.ID, c.large.ID}},
		},
	})
	require.NoError(t, err)

	assert.Len(t, updated.Variants, 3-1+2)
	for _, v := range updated.Variants {
		assert.NotEqual(t, doomed.ID, v.ID)
	}
	assert.Zero(t, h.count(t, &models.ProductImage{}, "product_variant_id = ?", doomed.ID))
	assert.Zero(t, h.count(t, &models.VariantAttributeValue{}, "product_variant_id = ?", doomed.ID))
}

func TestUpdateVariantReplacesBindingsAndFields(t *testing.T) {
	h := newHarness(t)
	c := h.catalog
	input := h.baseInput("Mutable")
	input.HasVariants = true
	input.Variants = []VariantInput{{SKU: "MU-1", AttributeValueIDs: []uint{c.red.ID, c.small.ID}}}
	dto := h.mustCreate(t, input)
	variantID := dto.Variants[0].ID

	values := []uint{c.blue.ID}
	updated, err := h.svc.UpdateProduct(context.Background(), dto.ID, UpdateProductInput{
		UpdatedVariants: []VariantUpdateInput{{
			ID:                variantID,
			SKU:               ptr("MU-1-BLUE"),
			StockCount:        ptr(7),
			AttributeValueIDs: &values,
			NewImages:         pngFiles("blue.png"),
		}},
	})
	require.NoError(t, err)

	require.Len(t, updated.Variants, 1)
	v := updated.Variants[0]
	assert.Equal(t, "MU-1-BLUE", v.SKU)
	assert.Equal(t, 7, v.StockCount)
	assert.Equal(t, []uint{c.blue.ID}, variantValueIDs(v))
	require.Len(t, v.Images, 1)
	assert.Equal(t, "main", v.Images[0].ImageType)
}

func TestUpdateDisablingVariantsDropsThem(t *testing.T) {
	h := newHarness(t)
	input := h.baseInput("Simplify")
	input.HasVariants = true
	input.Variants = []VariantInput{{SKU: "SI-1", Images: pngFiles("si.png")}, {SKU: "SI-2"}}
	dto := h.mustCreate(t, input)

	updated, err := h.svc.UpdateProduct(context.Background(), dto.ID, UpdateProductInput{HasVariants: ptr(false)})
	require.NoError(t, err)

	assert.False(t, updated.HasVariants)
	assert.Empty(t, updated.Variants)
	assert.Zero(t, h.count(t, &models.ProductVariant{}, "product_id = ?", dto.ID))
	assert.Empty(t, h.store.Files())
}

func TestUpdateRejectsOverlappingIDSets(t *testing.T) {
	h := newHarness(t)
	input := h.baseInput("Overlap")
	input.HasVariants = true
	input.Variants = []VariantInput{{SKU: "OV-1"}}
	dto := h.mustCreate(t, input)
	variantID := dto.Variants[0].ID

	cases := map[string]UpdateProductInput{
		"updated and deleted": {
			UpdatedVariants:   []VariantUpdateInput{{ID: variantID, StockCount: ptr(1)}},
			DeletedVariantIDs: []uint{variantID},
		},
		"duplicate deleted variants": {DeletedVariantIDs: []uint{variantID, variantID}},
		"duplicate deleted images":   {DeletedImageIDs: []uint{1, 1}},
		"duplicate updated variants": {UpdatedVariants: []VariantUpdateInput{{ID: variantID}, {ID: variantID}}},
	}
	for name, upd := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.UpdateProduct(context.Background(), dto.ID, upd)
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
		})
	}

	fetched, err := h.svc.GetProduct(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Len(t, fetched.Variants, 1)
	assert.Equal(t, 1, fetched.Version, "rejected updates must not bump the version")
}

func TestUpdateRejectsForeignIDs(t *testing.T) {
	h := newHarness(t)
	other := h.baseInput("Other")
	other.Images = pngFiles("o.png")
	otherDTO := h.mustCreate(t, other)
	dto := h.mustCreate(t, h.baseInput("Mine"))

	_, err := h.svc.UpdateProduct(context.Background(), dto.ID, UpdateProductInput{
		DeletedImageIDs: []uint{otherDTO.Images[0].ID},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	assert.Equal(t, int64(1), h.count(t, &models.ProductImage{}, "product_id = ?", otherDTO.ID))
}

func TestUpdateOptimisticVersion(t *testing.T) {
	h := newHarness(t)
	dto := h.mustCreate(t, h.baseInput("Versioned"))

	first, err := h.svc.UpdateProduct(context.Background(), dto.ID, UpdateProductInput{
		ExpectedVersion: ptr(1),
		Title:           ptr("Versioned v2"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Version)
	assert.Equal(t, "Versioned v2", first.Title)

	_, err = h.svc.UpdateProduct(context.Background(), dto.ID, UpdateProductInput{
		ExpectedVersion: ptr(1),
		Title:           ptr("Lost edit"),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	fetched, err := h.svc.GetProduct(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, "Versioned v2", fetched.Title)
}

func TestUpdateMissingProduct(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.UpdateProduct(context.Background(), 9999, UpdateProductInput{Title: ptr("ghost")})
	require.Error(t, err)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, OpUpdate, opErr.Op)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestUpdateMovesSubCategory(t *testing.T) {
	h := newHarness(t)
	dto := h.mustCreate(t, h.baseInput("Mover"))

	updated, err := h.svc.UpdateProduct(context.Background(), dto.ID, UpdateProductInput{SubCategoryID: ptr(h.catalog.boots.ID)})
	require.NoError(t, err)
	require.NotNil(t, updated.SubCategoryID)
	assert.Equal(t, h.catalog.boots.ID, *updated.SubCategoryID)
	assert.Equal(t, h.catalog.category.ID, *updated.CategoryID)
}

func TestUpdateVariantNewImageBecomesMainWhenOldOneDeleted(t *testing.T) {
	h := newHarness(t)
	c := h.catalog
	input := h.baseInput("Variant Reshoot")
	input.HasVariants = true
	input.Variants = []VariantInput{{SKU: "VR-1", AttributeValueIDs: []uint{c.red.ID}, Images: pngFiles("old.png")}}
	dto := h.mustCreate(t, input)
	v := dto.Variants[0]
	require.Len(t, v.Images, 1)

	updated, err := h.svc.UpdateProduct(context.Background(), dto.ID, UpdateProductInput{
		DeletedImageIDs: []uint{v.Images[0].ID},
		UpdatedVariants: []VariantUpdateInput{{ID: v.ID, NewImages: pngFiles("new.png")}},
	})
	require.NoError(t, err)

	require.Len(t, updated.Variants, 1)
	images := updated.Variants[0].Images
	require.Len(t, images, 1)
	assert.Equal(t, 0, images[0].DisplayOrder)
	assert.Equal(t, "main", images[0].ImageType)
	assert.True(t, images[0].IsThumbnail)
}

func TestCreateStoresTrimmedSKU(t *testing.T) {
	h := newHarness(t)
	c := h.catalog
	input := h.baseInput("Padded")
	input.HasVariants = true
	input.Variants = []VariantInput{{SKU: "  SK-1 ", AttributeValueIDs: []uint{c.red.ID}}}
	dto := h.mustCreate(t, input)
	require.Len(t, dto.Variants, 1)
	assert.Equal(t, "SK-1", dto.Variants[0].SKU)

	again := h.baseInput("Padded Again")
	again.HasVariants = true
	again.Variants = []VariantInput{{SKU: "SK-1", AttributeValueIDs: []uint{c.blue.ID}}}
	_, err := h.svc.CreateProduct(context.Background(), again)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
}

func TestUpdateVariantPaddedSKUConflicts(t *testing.T) {
	h := newHarness(t)
	c := h.catalog
	input := h.baseInput("Pair")
	input.HasVariants = true
	input.Variants = []VariantInput{
		{SKU: "PR-1", AttributeValueIDs: []uint{c.red.ID}},
		{SKU: "PR-2", AttributeValueIDs: []uint{c.blue.ID}},
	}
	dto := h.mustCreate(t, input)

	_, err := h.svc.UpdateProduct(context.Background(), dto.ID, UpdateProductInput{
		UpdatedVariants: []VariantUpdateInput{{ID: dto.Variants[1].ID, SKU: ptr(" PR-1 ")}},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
}

func TestUpdateVariantSKUUniqueViolationIsConflict(t *testing.T) {
	h := newHarness(t)
	c := h.catalog
	input := h.baseInput("Racing")
	input.HasVariants = true
	input.Variants = []VariantInput{
		{SKU: "RC-1", AttributeValueIDs: []uint{c.red.ID}},
		{SKU: "RC-2", AttributeValueIDs: []uint{c.blue.ID}},
	}
	dto := h.mustCreate(t, input)

	// The availability check reads an empty catalog, so only the unique
	// index can catch the duplicate.
	h.svc.binder = &binder{repo: NewRepository(dbtest.Open(t)), dbClient: h.svc.dbClient, images: h.svc.images}

	_, err := h.svc.UpdateProduct(context.Background(), dto.ID, UpdateProductInput{
		UpdatedVariants: []VariantUpdateInput{{ID: dto.Variants[1].ID, SKU: ptr("RC-1")}},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
	assert.Contains(t, err.Error(), `sku "RC-1" already exists`)
}

func TestUpdateWithoutExpectedVersionIsLastWriterWins(t *testing.T) {
	h := newHarness(t)
	dto := h.mustCreate(t, h.baseInput("Unguarded"))

	// Another writer has moved the version on since the caller last read it.
	require.NoError(t, h.conn.Model(&models.Product{}).Where("id = ?", dto.ID).Update("version", 5).Error)

	updated, err := h.svc.UpdateProduct(context.Background(), dto.ID, UpdateProductInput{Title: ptr("Unguarded v2")})
	require.NoError(t, err)
	assert.Equal(t, "Unguarded v2", updated.Title)
	assert.Equal(t, 6, updated.Version)
}

func TestUpdateProductFieldsVersionGuard(t *testing.T) {
	h := newHarness(t)
	dto := h.mustCreate(t, h.baseInput("Guarded"))
	repo := NewRepository(h.conn)
	ctx := context.Background()

	ok, err := repo.UpdateProductFields(ctx, dto.ID, ptr(1), map[string]any{"title": "Guarded v2"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateProductFields(ctx, dto.ID, ptr(1), map[string]any{"title": "stale"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.UpdateProductFields(ctx, dto.ID, nil, map[string]any{"title": "Guarded v3"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateProductFields(ctx, 9999, nil, map[string]any{"title": "ghost"})
	require.NoError(t, err)
	assert.False(t, ok)
}
