package product

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/media"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/storage"
)

// remoteScope owns the media session of one orchestrated call. The session is
// opened on first use and released by Close.
type remoteScope struct {
	opener   storage.Opener
	session  storage.Session
	uploaded []string
}

func newRemoteScope(opener storage.Opener) *remoteScope {
	return &remoteScope{opener: opener}
}

func (r *remoteScope) Session(ctx context.Context) (storage.Session, error) {
	if r.session != nil {
		return r.session, nil
	}
	s, err := r.opener.Open(ctx)
	if err != nil {
		return nil, storage.TransferError("connect", "", err)
	}
	r.session = s
	return s, nil
}

func (r *remoteScope) Close(ctx context.Context, logg *logger.Logger) {
	storage.CloseQuietly(r.session, func(err error) {
		logg.WarnErr(ctx, "closing remote media session failed", err)
	})
	r.session = nil
}

// imageAttacher runs the stage, upload and record flow for an image batch.
type imageAttacher struct {
	repo     *Repository
	intents  *media.Repository
	media    media.Service
	dbClient *db.Client
	logg     *logger.Logger
}

// Attach uploads files in order starting at batch position offset. Position 0
// becomes the main thumbnail image. Each image row is written in the same
// transaction that commits its upload intent.
func (a *imageAttacher) Attach(ctx context.Context, scope *remoteScope, productID uint, variantID *uint, files []FileInput, offset int) error {
	if len(files) == 0 {
		return nil
	}
	session, err := scope.Session(ctx)
	if err != nil {
		return err
	}

	for i, file := range files {
		position := offset + i
		res, err := a.media.Transfer(ctx, session, media.TransferRequest{
			ProductID: productID,
			VariantID: variantID,
			Position:  position,
			FileName:  file.Name,
			Data:      file.Data,
		})
		if err != nil {
			return err
		}
		scope.uploaded = append(scope.uploaded, res.RemoteName)

		image := &models.ProductImage{
			ProductID:        productID,
			ProductVariantID: variantID,
			FileName:         res.RemoteName,
			ImageType:        enums.ImageTypeForPosition(position),
			DisplayOrder:     position,
			IsThumbnail:      position == 0,
		}
		if err := a.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
			if err := a.repo.WithTx(tx).CreateImage(ctx, image); err != nil {
				return err
			}
			return a.intents.WithTx(tx).MarkCommitted(ctx, res.RemoteName)
		}); err != nil {
			a.media.Delete(ctx, session, []string{res.RemoteName})
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("db: insert image %q", res.RemoteName))
		}
	}
	return nil
}

// Remove deletes remote files best-effort. An unreachable store is logged and
// the caller proceeds with its database changes.
func (a *imageAttacher) Remove(ctx context.Context, scope *remoteScope, names []string) {
	if len(names) == 0 {
		return
	}
	session, err := scope.Session(ctx)
	if err != nil {
		a.logg.WarnErr(a.logg.WithField(ctx, "remote_names", names), "remote media store unavailable; leaving files behind", err)
		if markErr := a.intents.MarkAborted(ctx, names); markErr != nil {
			a.logg.WarnErr(ctx, "marking upload intents aborted failed", markErr)
		}
		return
	}
	a.media.Delete(ctx, session, names)
}

func imageNames(images []models.ProductImage) []string {
	names := make([]string, 0, len(images))
	for _, img := range images {
		names = append(names, img.FileName)
	}
	return names
}

// nextDisplayOrder continues a batch after the images that remain.
func nextDisplayOrder(images []models.ProductImage, removed map[uint]struct{}) int {
	next := 0
	for _, img := range images {
		if _, gone := removed[img.ID]; gone {
			continue
		}
		if img.DisplayOrder+1 > next {
			next = img.DisplayOrder + 1
		}
	}
	return next
}
