package consistency

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// RepairReport summarises one repair pass.
type RepairReport struct {
	Repaired             int64  `json:"repaired"`
	Realigned            int64  `json:"realigned"`
	DefaultSubCategoryID uint   `json:"default_subcategory_id,omitempty"`
	DefaultCategoryID    uint   `json:"default_category_id,omitempty"`
	ProductIDs           []uint `json:"product_ids"`
}

// Invalidator drops cached copies of products the repair touched.
type Invalidator interface {
	Invalidate(ctx context.Context, id uint)
}

// Service repairs products with broken taxonomy links.
type Service interface {
	RepairOrphanedProducts(ctx context.Context) (*RepairReport, error)
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	cache    Invalidator
	logg     *logger.Logger
}

// NewService builds the repair service. cache may be nil.
func NewService(repo *Repository, dbClient *db.Client, cache Invalidator, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("consistency repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, dbClient: dbClient, cache: cache, logg: logg}, nil
}

// RepairOrphanedProducts repoints products whose sub category is missing at
// the lowest-id sub category and realigns cat_id with the sub category's
// parent. Everything happens in one transaction.
func (s *service) RepairOrphanedProducts(ctx context.Context) (*RepairReport, error) {
	report := &RepairReport{ProductIDs: []uint{}}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		orphans, err := txRepo.OrphanedProductIDs(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list orphaned products")
		}
		if len(orphans) > 0 {
			def, err := txRepo.DefaultSubCategory(ctx)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeStateConflict, "no default subcategory available").
						WithDetails(map[string]any{"orphaned_products": len(orphans)})
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load default subcategory")
			}
			report.DefaultSubCategoryID = def.ID
			report.DefaultCategoryID = def.CategoryID

			n, err := txRepo.AssignSubCategory(ctx, orphans, def)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: assign default subcategory")
			}
			report.Repaired = n
			report.ProductIDs = append(report.ProductIDs, orphans...)
		}

		misaligned, err := txRepo.MisalignedProductIDs(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list misaligned products")
		}
		n, err := txRepo.AlignCategories(ctx, misaligned)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: align categories")
		}
		report.Realigned = n
		report.ProductIDs = append(report.ProductIDs, misaligned...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		for _, id := range report.ProductIDs {
			s.cache.Invalidate(ctx, id)
		}
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"repaired":               report.Repaired,
		"realigned":              report.Realigned,
		"default_subcategory_id": report.DefaultSubCategoryID,
	}), "category repair finished")
	return report, nil
}
