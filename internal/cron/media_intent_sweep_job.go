package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/storage"
)

const (
	defaultIntentRetention = 24 * time.Hour
	defaultSweepBatch      = 200
)

type MediaIntentSweepJobParams struct {
	Logger    *logger.Logger
	Intents   intentSweepRepo
	Remote    storage.Opener
	Retention time.Duration
	BatchSize int
}

type intentSweepRepo interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.MediaUploadIntent, error)
	MarkAborted(ctx context.Context, remoteNames []string) error
}

// NewMediaIntentSweepJob removes remote files whose upload intent never
// reached an image row.
func NewMediaIntentSweepJob(params MediaIntentSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Intents == nil {
		return nil, fmt.Errorf("intent repository required")
	}
	if params.Remote == nil {
		return nil, fmt.Errorf("remote media store required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultIntentRetention
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &mediaIntentSweepJob{
		logg:      params.Logger,
		intents:   params.Intents,
		remote:    params.Remote,
		retention: retention,
		batch:     batch,
		now:       time.Now,
	}, nil
}

type mediaIntentSweepJob struct {
	logg      *logger.Logger
	intents   intentSweepRepo
	remote    storage.Opener
	retention time.Duration
	batch     int
	now       func() time.Time
}

func (j *mediaIntentSweepJob) Name() string { return "media-intent-sweep" }

func (j *mediaIntentSweepJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	rows, err := j.intents.ListStalePending(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query stale intents: %w", err)
	}
	if len(rows) == 0 {
		j.logg.Info(j.logg.WithField(ctx, "cutoff", cutoff), "no stale upload intents")
		return nil
	}

	session, err := j.remote.Open(ctx)
	if err != nil {
		return storage.TransferError("connect", "", err)
	}
	defer storage.CloseQuietly(session, func(err error) {
		j.logg.WarnErr(ctx, "closing media session failed", err)
	})

	swept := make([]string, 0, len(rows))
	var errs error
	for _, row := range rows {
		err := session.Delete(ctx, row.RemoteName)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			// left pending so the next cycle retries it
			errs = multierr.Append(errs, fmt.Errorf("delete %s: %w", row.RemoteName, err))
			j.logg.WarnErr(j.logg.WithField(ctx, "remote_name", row.RemoteName), "sweeping orphaned image failed", err)
			continue
		}
		swept = append(swept, row.RemoteName)
	}
	if err := j.intents.MarkAborted(ctx, swept); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("mark intents aborted: %w", err))
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"retention":  j.retention.String(),
		"candidates": len(rows),
		"swept":      len(swept),
		"failed":     len(rows) - len(swept),
	})
	j.logg.Info(logCtx, "media intent sweep complete")
	return errs
}
