package product

import (
	"errors"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestOpErrorKeepsCodeReachable(t *testing.T) {
	cause := pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	err := wrapOp(OpUpdate, 12, cause)

	if got := err.Error(); got != "update product 12: NOT_FOUND: product not found" {
		t.Fatalf("unexpected message %q", got)
	}
	if pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found code, got %s", pkgerrors.CodeOf(err))
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable via errors.Is")
	}
	if again := wrapOp(OpCreate, 12, err); again != err {
		t.Fatal("expected an existing OpError not to be wrapped twice")
	}
	if wrapOp(OpDelete, 1, nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Trail Runner":           "trail-runner",
		"  Men's  Boots / 2024 ": "men-s-boots-2024",
		"---":                    "",
		"Ünïcode Shoe":           "n-code-shoe",
	}
	for in, want := range cases {
		if got := slugify(in); got != want {
			t.Fatalf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateUpdateInputIDSets(t *testing.T) {
	if err := validateUpdateInput(UpdateProductInput{
		DeletedImageIDs:   []uint{1, 2},
		DeletedVariantIDs: []uint{1},
		UpdatedVariants:   []VariantUpdateInput{{ID: 2}},
	}); err != nil {
		t.Fatalf("image and variant ids are separate id spaces, got %v", err)
	}

	err := validateUpdateInput(UpdateProductInput{
		DeletedVariantIDs: []uint{4, 5},
		UpdatedVariants:   []VariantUpdateInput{{ID: 5}},
	})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", pkgerrors.As(err).Details())
	}
	if ids, _ := details["ids"].([]uint); len(ids) != 1 || ids[0] != 5 {
		t.Fatalf("expected overlapping id 5, got %v", details["ids"])
	}

	if err := validateUpdateInput(UpdateProductInput{
		NewVariants: []VariantInput{{SKU: "A"}, {SKU: "A"}},
	}); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected duplicate sku rejection, got %v", err)
	}
}

func TestNextDisplayOrder(t *testing.T) {
	if got := nextDisplayOrder(nil, nil); got != 0 {
		t.Fatalf("expected 0 for empty batch, got %d", got)
	}
	images := []models.ProductImage{{ID: 1, DisplayOrder: 0}, {ID: 2, DisplayOrder: 1}, {ID: 3, DisplayOrder: 4}}
	if got := nextDisplayOrder(images, nil); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if got := nextDisplayOrder(images, map[uint]struct{}{3: {}}); got != 2 {
		t.Fatalf("expected removed images to be skipped, got %d", got)
	}
}
