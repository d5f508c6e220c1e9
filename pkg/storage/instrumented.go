package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// Instrument wraps an Opener so every session reports transfer metrics.
func Instrument(next Opener, driver string, m *metrics.MediaTransferMetrics) Opener {
	if m == nil {
		return next
	}
	return &instrumentedOpener{next: next, driver: driver, metrics: m}
}

type instrumentedOpener struct {
	next    Opener
	driver  string
	metrics *metrics.MediaTransferMetrics
}

func (o *instrumentedOpener) Open(ctx context.Context) (Session, error) {
	s, err := o.next.Open(ctx)
	if err != nil {
		o.metrics.Observe(o.driver, "open", "error", 0)
		return nil, err
	}
	return &instrumentedSession{next: s, driver: o.driver, metrics: o.metrics}, nil
}

type instrumentedSession struct {
	next    Session
	driver  string
	metrics *metrics.MediaTransferMetrics
}

func (s *instrumentedSession) Upload(ctx context.Context, r io.Reader, remoteName string) error {
	start := time.Now()
	err := s.next.Upload(ctx, r, remoteName)
	s.metrics.Observe(s.driver, "upload", outcome(err), time.Since(start))
	return err
}

func (s *instrumentedSession) Delete(ctx context.Context, remoteName string) error {
	start := time.Now()
	err := s.next.Delete(ctx, remoteName)
	s.metrics.Observe(s.driver, "delete", outcome(err), time.Since(start))
	return err
}

func (s *instrumentedSession) Close() error {
	return s.next.Close()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
