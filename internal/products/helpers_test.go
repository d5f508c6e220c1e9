package product

import (
	"context"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/media"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/storage/storagetest"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type harness struct {
	svc     *service
	conn    *gorm.DB
	store   *storagetest.Store
	staging *media.Staging
	intents *media.Repository
	catalog catalogFixture
}

type catalogFixture struct {
	category models.Category
	shoes    models.SubCategory
	boots    models.SubCategory
	color    models.Attribute
	red      models.AttributeValue
	blue     models.AttributeValue
	size     models.Attribute
	small    models.AttributeValue
	large    models.AttributeValue
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "product-test", Output: io.Discard})

	intents := media.NewRepository(conn)
	staging, err := media.NewStaging(afero.NewMemMapFs(), "/staging")
	require.NoError(t, err)
	mediaSvc, err := media.NewService(intents, staging, logg)
	require.NoError(t, err)

	store := storagetest.NewStore()
	svc, err := NewService(Deps{
		Repo:    NewRepository(conn),
		Intents: intents,
		Media:   mediaSvc,
		Remote:  store,
		DB:      db.FromConn(conn),
		Catalog: config.CatalogConfig{DefaultQuantityLimit: 10},
		URLFor:  config.MediaStoreConfig{PublicBaseURL: "https://cdn.example.com/products"}.URLFor,
		Logger:  logg,
	})
	require.NoError(t, err)

	return &harness{
		svc:     svc.(*service),
		conn:    conn,
		store:   store,
		staging: staging,
		intents: intents,
		catalog: seedCatalog(t, conn),
	}
}

func seedCatalog(t *testing.T, conn *gorm.DB) catalogFixture {
	t.Helper()
	var f catalogFixture
	f.category = models.Category{Name: "Footwear", Slug: "footwear"}
	require.NoError(t, conn.Create(&f.category).Error)
	f.shoes = models.SubCategory{CategoryID: f.category.ID, Name: "Shoes", Slug: "shoes"}
	require.NoError(t, conn.Create(&f.shoes).Error)
	f.boots = models.SubCategory{CategoryID: f.category.ID, Name: "Boots", Slug: "boots"}
	require.NoError(t, conn.Create(&f.boots).Error)

	f.color = models.Attribute{Name: "Color", Slug: "color"}
	require.NoError(t, conn.Create(&f.color).Error)
	f.red = models.AttributeValue{AttributeID: f.color.ID, Value: "Red", Slug: "red"}
	require.NoError(t, conn.Create(&f.red).Error)
	f.blue = models.AttributeValue{AttributeID: f.color.ID, Value: "Blue", Slug: "blue"}
	require.NoError(t, conn.Create(&f.blue).Error)

	f.size = models.Attribute{Name: "Size", Slug: "size"}
	require.NoError(t, conn.Create(&f.size).Error)
	f.small = models.AttributeValue{AttributeID: f.size.ID, Value: "S", Slug: "s"}
	require.NoError(t, conn.Create(&f.small).Error)
	f.large = models.AttributeValue{AttributeID: f.size.ID, Value: "L", Slug: "l"}
	require.NoError(t, conn.Create(&f.large).Error)
	return f
}

func pngFiles(names ...string) []FileInput {
	files := make([]FileInput, 0, len(names))
	for _, name := range names {
		files = append(files, FileInput{Name: name, Data: pngBytes})
	}
	return files
}

func (h *harness) baseInput(title string) CreateProductInput {
	sub := h.catalog.shoes.ID
	return CreateProductInput{
		Title:         title,
		PriceINR:      decimal.RequireFromString("1499.00"),
		PriceUSD:      decimal.RequireFromString("17.99"),
		SubCategoryID: &sub,
	}
}

func (h *harness) mustCreate(t *testing.T, input CreateProductInput) *ProductDTO {
	t.Helper()
	dto, err := h.svc.CreateProduct(context.Background(), input)
	require.NoError(t, err)
	return dto
}

func (h *harness) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := h.conn.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func (h *harness) intentStatus(t *testing.T, remoteName string) enums.MediaIntentStatus {
	t.Helper()
	row, err := h.intents.FindByRemoteName(context.Background(), remoteName)
	require.NoError(t, err)
	return row.Status
}

func variantValueIDs(v VariantDTO) []uint {
	ids := make([]uint, 0, len(v.AttributeValues))
	for _, av := range v.AttributeValues {
		ids = append(ids, av.AttributeValueID)
	}
	return ids
}

func ptr[T any](v T) *T {
	return &v
}
