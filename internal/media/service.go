package media

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/storage"
)

type intentRepository interface {
	CreateIntent(ctx context.Context, intent *models.MediaUploadIntent) error
	MarkAborted(ctx context.Context, remoteNames []string) error
}

// Service moves image bytes from a request to the remote media store.
type Service interface {
	// Transfer validates, stages and uploads one image. The staged copy is
	// removed before returning on every path.
	Transfer(ctx context.Context, session storage.Session, req TransferRequest) (*TransferResult, error)
	// Delete removes remote files best-effort. Failures are logged and swallowed.
	Delete(ctx context.Context, session storage.Session, remoteNames []string)
}

// TransferRequest describes one image at a batch position.
type TransferRequest struct {
	ProductID uint
	VariantID *uint
	Position  int
	FileName  string
	Data      []byte
}

type TransferResult struct {
	RemoteName  string
	ContentType string
}

type service struct {
	intents intentRepository
	staging *Staging
	logg    *logger.Logger
	now     func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewService constructs the media transfer service.
func NewService(intents intentRepository, staging *Staging, logg *logger.Logger) (Service, error) {
	if intents == nil {
		return nil, fmt.Errorf("intent repository required")
	}
	if staging == nil {
		return nil, fmt.Errorf("staging area required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		intents: intents,
		staging: staging,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (s *service) Transfer(ctx context.Context, session storage.Session, req TransferRequest) (*TransferResult, error) {
	if session == nil {
		return nil, fmt.Errorf("remote session required")
	}
	contentType, err := DetectImageType(req.FileName, req.Data)
	if err != nil {
		return nil, err
	}

	remoteName := storage.RemoteName(s.stamp(), req.Position, req.FileName)
	staged, err := s.staging.Stage(req.Data, req.FileName)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "staging image failed")
	}
	defer func() {
		if rmErr := s.staging.Remove(staged); rmErr != nil {
			s.logg.WarnErr(s.logg.WithField(ctx, "staged_path", staged), "removing staged image failed", rmErr)
		}
	}()

	intent := &models.MediaUploadIntent{
		ProductID:        &req.ProductID,
		ProductVariantID: req.VariantID,
		RemoteName:       remoteName,
	}
	if err := s.intents.CreateIntent(ctx, intent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recording upload intent failed")
	}

	f, err := s.staging.Open(staged)
	if err != nil {
		s.abort(ctx, remoteName)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "opening staged image failed")
	}
	uploadErr := session.Upload(ctx, f, remoteName)
	_ = f.Close()
	if uploadErr != nil {
		s.abort(ctx, remoteName)
		var typed *pkgerrors.Error
		if errors.As(uploadErr, &typed) {
			return nil, uploadErr
		}
		return nil, storage.TransferError("upload", remoteName, uploadErr)
	}

	return &TransferResult{RemoteName: remoteName, ContentType: contentType}, nil
}

// stamp returns strictly increasing millisecond timestamps so two batches
// started in the same millisecond never share a remote name.
func (s *service) stamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().Truncate(time.Millisecond)
	if !now.After(s.last) {
		now = s.last.Add(time.Millisecond)
	}
	s.last = now
	return now
}

func (s *service) abort(ctx context.Context, remoteName string) {
	if err := s.intents.MarkAborted(ctx, []string{remoteName}); err != nil {
		s.logg.WarnErr(s.logg.WithField(ctx, "remote_name", remoteName), "marking upload intent aborted failed", err)
	}
}

func (s *service) Delete(ctx context.Context, session storage.Session, remoteNames []string) {
	if len(remoteNames) == 0 {
		return
	}
	if session == nil {
		s.logg.Warn(s.logg.WithField(ctx, "remote_names", remoteNames), "no remote session; skipping media delete")
		return
	}
	for _, name := range remoteNames {
		if err := session.Delete(ctx, name); err != nil {
			entryCtx := s.logg.WithField(ctx, "remote_name", name)
			if errors.Is(err, storage.ErrNotFound) {
				s.logg.Warn(entryCtx, "remote image already absent")
				continue
			}
			s.logg.WarnErr(entryCtx, "remote image delete failed", err)
		}
	}
	if err := s.intents.MarkAborted(ctx, remoteNames); err != nil {
		s.logg.WarnErr(ctx, "marking upload intents aborted failed", err)
	}
}
