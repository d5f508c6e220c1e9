package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/media"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/storage"
)

// Service exposes the product aggregate write pipeline.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, productID uint, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, productID uint) (*DeleteResult, error)
	GetProduct(ctx context.Context, productID uint) (*ProductDTO, error)
}

// Deps groups the collaborators of the product service.
type Deps struct {
	Repo    *Repository
	Intents *media.Repository
	Media   media.Service
	Remote  storage.Opener
	DB      *db.Client
	Cache   AggregateCache
	Catalog config.CatalogConfig
	URLFor  func(string) string
	Logger  *logger.Logger
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	remote   storage.Opener
	images   *imageAttacher
	binder   *binder
	cache    AggregateCache
	catalog  config.CatalogConfig
	urlFor   func(string) string
	logg     *logger.Logger
}

// NewService builds the product service.
func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if deps.Intents == nil {
		return nil, fmt.Errorf("upload intent repository required")
	}
	if deps.Media == nil {
		return nil, fmt.Errorf("media service required")
	}
	if deps.Remote == nil {
		return nil, fmt.Errorf("remote media store required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	cache := deps.Cache
	if cache == nil {
		cache = NoopCache()
	}
	catalog := deps.Catalog
	if catalog.DefaultQuantityLimit <= 0 {
		catalog.DefaultQuantityLimit = 10
	}

	images := &imageAttacher{
		repo:     deps.Repo,
		intents:  deps.Intents,
		media:    deps.Media,
		dbClient: deps.DB,
		logg:     deps.Logger,
	}
	return &service{
		repo:     deps.Repo,
		dbClient: deps.DB,
		remote:   deps.Remote,
		images:   images,
		binder:   &binder{repo: deps.Repo, dbClient: deps.DB, images: images},
		cache:    cache,
		catalog:  catalog,
		urlFor:   deps.URLFor,
		logg:     deps.Logger,
	}, nil
}

// CreateProduct inserts the product row, then attaches images, attributes and
// variants in that order. When a later step fails the product row and every
// file uploaded during the call are removed again.
func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	ctx = s.logg.WithOperation(ctx, string(OpCreate))
	if err := validateCreateInput(input); err != nil {
		return nil, wrapOp(OpCreate, 0, err)
	}

	product := newProductRow(input, s.catalog.DefaultQuantityLimit)
	catID, subID, err := s.resolveTaxonomy(ctx, input.CategoryID, input.SubCategoryID)
	if err != nil {
		return nil, wrapOp(OpCreate, 0, err)
	}
	product.CategoryID, product.SubCategoryID = catID, subID

	slugBase := product.Slug
	if slugBase == "" {
		slugBase = product.Title
	}
	if product.Slug, err = s.uniqueSlug(ctx, slugBase, 0); err != nil {
		return nil, wrapOp(OpCreate, 0, err)
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, wrapOp(OpCreate, 0, pkgerrors.New(pkgerrors.CodeConflict, "product slug already exists"))
		}
		return nil, wrapOp(OpCreate, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product"))
	}
	ctx = s.logg.WithProductID(ctx, product.ID)

	scope := newRemoteScope(s.remote)
	defer scope.Close(ctx, s.logg)

	if err := s.populate(ctx, scope, product.ID, input); err != nil {
		s.compensateCreate(ctx, scope, product.ID)
		return nil, wrapOp(OpCreate, product.ID, err)
	}

	dto, err := s.load(ctx, product.ID)
	if err != nil {
		return nil, wrapOp(OpCreate, product.ID, err)
	}
	s.logg.Info(ctx, "product created")
	return dto, nil
}

func (s *service) populate(ctx context.Context, scope *remoteScope, productID uint, input CreateProductInput) error {
	if err := s.images.Attach(ctx, scope, productID, nil, input.Images, 0); err != nil {
		return err
	}
	if err := s.binder.BindAttributes(ctx, productID, input.Attributes); err != nil {
		return err
	}
	if len(input.Variants) == 0 {
		return nil
	}
	if !input.HasVariants {
		s.logg.Warn(s.logg.WithField(ctx, "variants", len(input.Variants)), "variants ignored for product without variants")
		return nil
	}
	_, err := s.binder.BindVariants(ctx, scope, productID, input.Variants)
	return err
}

// compensateCreate undoes a partially built product. It runs detached from
// the request context so a cancelled request still cleans up.
func (s *service) compensateCreate(ctx context.Context, scope *remoteScope, productID uint) {
	ctx = context.WithoutCancel(ctx)
	s.images.Remove(ctx, scope, scope.uploaded)
	if _, err := s.repo.DeleteProduct(ctx, productID); err != nil {
		s.logg.Error(ctx, "compensating product delete failed", err)
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "removed_files", len(scope.uploaded)), "partially created product rolled back")
}

// UpdateProduct applies scalar changes, then the image, attribute and variant
// diffs. Steps already applied stay applied when a later one fails.
func (s *service) UpdateProduct(ctx context.Context, productID uint, input UpdateProductInput) (*ProductDTO, error) {
	ctx = s.logg.WithProductID(s.logg.WithOperation(ctx, string(OpUpdate)), productID)
	dto, err := s.updateProduct(ctx, productID, input)
	if err != nil {
		// Earlier steps may have been applied; drop any cached copy.
		s.cache.Invalidate(context.WithoutCancel(ctx), productID)
		return nil, wrapOp(OpUpdate, productID, err)
	}
	s.logg.Info(ctx, "product updated")
	return dto, nil
}

func (s *service) updateProduct(ctx context.Context, productID uint, input UpdateProductInput) (*ProductDTO, error) {
	existing, err := s.repo.GetAggregate(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	if err := validateUpdateInput(input); err != nil {
		return nil, err
	}
	if input.ExpectedVersion != nil && *input.ExpectedVersion != existing.Version {
		return nil, staleVersion(*input.ExpectedVersion, existing.Version)
	}
	if err := ensureOwned(existing, input); err != nil {
		return nil, err
	}

	fields := scalarChanges(input)
	if input.CategoryID != nil || input.SubCategoryID != nil {
		subID := input.SubCategoryID
		if subID == nil {
			subID = existing.SubCategoryID
		}
		resolvedCat, resolvedSub, err := s.resolveTaxonomy(ctx, input.CategoryID, subID)
		if err != nil {
			return nil, err
		}
		fields["cat_id"] = nullableID(resolvedCat)
		fields["subcat_id"] = nullableID(resolvedSub)
	}
	if input.Slug != nil {
		slug, err := s.uniqueSlug(ctx, *input.Slug, productID)
		if err != nil {
			return nil, err
		}
		fields["slug"] = slug
	}

	// Without expected_version the last writer wins.
	ok, err := s.repo.UpdateProductFields(ctx, productID, input.ExpectedVersion, fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
	}
	if !ok {
		if input.ExpectedVersion == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product was modified concurrently")
	}

	scope := newRemoteScope(s.remote)
	defer scope.Close(ctx, s.logg)

	removedImages := idSet(input.DeletedImageIDs)
	offset := nextDisplayOrder(existing.Images, removedImages)
	if err := s.images.Attach(ctx, scope, productID, nil, input.NewImages, offset); err != nil {
		return nil, err
	}

	if err := s.deleteImages(ctx, scope, existing, removedImages); err != nil {
		return nil, err
	}

	if input.UpdatedAttributes != nil {
		if err := s.replaceAttributes(ctx, productID, *input.UpdatedAttributes); err != nil {
			return nil, err
		}
	}

	hasVariants := existing.HasVariants
	if input.HasVariants != nil {
		hasVariants = *input.HasVariants
	}
	if hasVariants {
		if err := s.applyVariantDiff(ctx, scope, existing, input, removedImages); err != nil {
			return nil, err
		}
	} else {
		if len(input.NewVariants) > 0 || len(input.UpdatedVariants) > 0 || len(input.DeletedVariantIDs) > 0 {
			s.logg.Warn(ctx, "variant changes ignored for product without variants")
		}
		if len(existing.Variants) > 0 {
			if err := s.deleteVariants(ctx, scope, existing, variantIDs(existing.Variants)); err != nil {
				return nil, err
			}
		}
	}

	return s.load(ctx, productID)
}

func (s *service) deleteImages(ctx context.Context, scope *remoteScope, existing *models.Product, ids map[uint]struct{}) error {
	if len(ids) == 0 {
		return nil
	}
	var doomed []models.ProductImage
	for _, img := range allImages(existing) {
		if _, ok := ids[img.ID]; ok {
			doomed = append(doomed, img)
		}
	}
	s.images.Remove(ctx, scope, imageNames(doomed))
	if err := s.repo.DeleteImages(ctx, setKeys(ids)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete images")
	}
	return nil
}

// replaceAttributes swaps every attribute binding for attrs in one transaction.
func (s *service) replaceAttributes(ctx context.Context, productID uint, attrs []AttributeInput) error {
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).DeleteProductAttributes(ctx, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: clear product attributes")
		}
		return s.binder.withTx(tx).BindAttributes(ctx, productID, attrs)
	})
}

// applyVariantDiff deletes, then updates, then creates variants.
// removedImages are the image ids this update already deleted.
func (s *service) applyVariantDiff(ctx context.Context, scope *remoteScope, existing *models.Product, input UpdateProductInput, removedImages map[uint]struct{}) error {
	if err := s.deleteVariants(ctx, scope, existing, input.DeletedVariantIDs); err != nil {
		return err
	}

	current := make(map[uint]models.ProductVariant, len(existing.Variants))
	for _, v := range existing.Variants {
		current[v.ID] = v
	}
	for _, upd := range input.UpdatedVariants {
		if err := s.updateVariant(ctx, scope, existing.ID, current[upd.ID], upd, removedImages); err != nil {
			return err
		}
	}

	_, err := s.binder.BindVariants(ctx, scope, existing.ID, input.NewVariants)
	return err
}

func (s *service) updateVariant(ctx context.Context, scope *remoteScope, productID uint, current models.ProductVariant, upd VariantUpdateInput, removedImages map[uint]struct{}) error {
	if upd.SKU != nil {
		if err := s.binder.ensureSKUAvailable(ctx, strings.TrimSpace(*upd.SKU), upd.ID); err != nil {
			return err
		}
	}
	if upd.AttributeValueIDs != nil {
		if err := s.binder.validateValueIDs(ctx, *upd.AttributeValueIDs); err != nil {
			return err
		}
	}

	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.UpdateVariantFields(ctx, productID, upd.ID, variantChanges(upd)); err != nil {
			return err
		}
		if upd.AttributeValueIDs != nil {
			return txRepo.ReplaceVariantAttributeValues(ctx, upd.ID, *upd.AttributeValueIDs)
		}
		return nil
	}); err != nil {
		if upd.SKU != nil && db.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("sku %q already exists", strings.TrimSpace(*upd.SKU))).
				WithDetails(map[string]any{"variant_id": upd.ID})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("db: update variant %d", upd.ID))
	}

	variantID := upd.ID
	return s.images.Attach(ctx, scope, productID, &variantID, upd.NewImages, nextDisplayOrder(current.Images, removedImages))
}

// deleteVariants removes remote images best-effort, then the variant rows.
func (s *service) deleteVariants(ctx context.Context, scope *remoteScope, existing *models.Product, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	doomed := idSet(ids)
	var names []string
	for _, v := range existing.Variants {
		if _, ok := doomed[v.ID]; ok {
			names = append(names, imageNames(v.Images)...)
		}
	}
	s.images.Remove(ctx, scope, names)

	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).DeleteVariants(ctx, existing.ID, ids)
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete variants")
	}
	return nil
}

// DeleteProduct removes remote images best-effort and then the product row.
// A second delete of the same id reports not found.
func (s *service) DeleteProduct(ctx context.Context, productID uint) (*DeleteResult, error) {
	ctx = s.logg.WithProductID(s.logg.WithOperation(ctx, string(OpDelete)), productID)

	existing, err := s.repo.GetAggregate(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, wrapOp(OpDelete, productID, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product"))
	}
	snapshot := NewProductDTO(existing, s.urlFor)

	images, err := s.repo.ListImagesByProduct(ctx, productID)
	if err != nil {
		return nil, wrapOp(OpDelete, productID, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list images"))
	}

	scope := newRemoteScope(s.remote)
	defer scope.Close(ctx, s.logg)
	s.images.Remove(ctx, scope, imageNames(images))

	affected, err := s.repo.DeleteProduct(ctx, productID)
	if err != nil {
		return nil, wrapOp(OpDelete, productID, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete product"))
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	s.cache.Invalidate(ctx, productID)

	s.logg.Info(s.logg.WithField(ctx, "images", len(images)), "product deleted")
	return &DeleteResult{Success: true, DeletedProduct: snapshot}, nil
}

// GetProduct returns the fully populated aggregate, from cache when possible.
func (s *service) GetProduct(ctx context.Context, productID uint) (*ProductDTO, error) {
	if dto, ok := s.cache.Get(ctx, productID); ok {
		return dto, nil
	}
	return s.load(ctx, productID)
}

func (s *service) load(ctx context.Context, productID uint) (*ProductDTO, error) {
	product, err := s.repo.GetAggregate(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	dto := NewProductDTO(product, s.urlFor)
	s.cache.Set(ctx, dto)
	return dto, nil
}

func staleVersion(expected, actual int) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "product version is stale").
		WithDetails(map[string]any{"expected_version": expected, "current_version": actual})
}

func allImages(p *models.Product) []models.ProductImage {
	out := append([]models.ProductImage(nil), p.Images...)
	for _, v := range p.Variants {
		out = append(out, v.Images...)
	}
	return out
}

func variantIDs(variants []models.ProductVariant) []uint {
	ids := make([]uint, 0, len(variants))
	for _, v := range variants {
		ids = append(ids, v.ID)
	}
	return ids
}

func nullableID(id *uint) any {
	if id == nil {
		return nil
	}
	return *id
}

func idSet(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func setKeys(set map[uint]struct{}) []uint {
	out := make([]uint, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
