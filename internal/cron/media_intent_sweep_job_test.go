package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/media"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/storage/storagetest"
)

func TestMediaIntentSweepRemovesOrphans(t *testing.T) {
	conn := dbtest.Open(t)
	intents := media.NewRepository(conn)
	store := storagetest.NewStore()
	ctx := context.Background()

	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	seed := func(name string, status enums.MediaIntentStatus, age time.Duration) {
		t.Helper()
		row := &models.MediaUploadIntent{RemoteName: name, Status: status}
		if err := intents.CreateIntent(ctx, row); err != nil {
			t.Fatalf("seed intent: %v", err)
		}
		if err := conn.Model(row).UpdateColumn("created_at", now.Add(-age)).Error; err != nil {
			t.Fatalf("backdate intent: %v", err)
		}
	}
	seed("1-0-stale.png", enums.MediaIntentPending, 48*time.Hour)
	seed("1-1-missing.png", enums.MediaIntentPending, 30*time.Hour)
	seed("2-0-fresh.png", enums.MediaIntentPending, time.Hour)
	seed("3-0-kept.png", enums.MediaIntentCommitted, 72*time.Hour)
	store.Put("1-0-stale.png", []byte("x"))
	store.Put("2-0-fresh.png", []byte("x"))
	store.Put("3-0-kept.png", []byte("x"))

	job := newSweepJob(t, intents, store)
	job.now = func() time.Time { return now }
	if err := job.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if store.Has("1-0-stale.png") {
		t.Fatal("expected stale orphan to be deleted remotely")
	}
	if !store.Has("2-0-fresh.png") || !store.Has("3-0-kept.png") {
		t.Fatalf("unexpected deletions, remaining %v", store.Files())
	}
	for name, want := range map[string]enums.MediaIntentStatus{
		"1-0-stale.png":   enums.MediaIntentAborted,
		"1-1-missing.png": enums.MediaIntentAborted,
		"2-0-fresh.png":   enums.MediaIntentPending,
		"3-0-kept.png":    enums.MediaIntentCommitted,
	} {
		row, err := intents.FindByRemoteName(ctx, name)
		if err != nil {
			t.Fatalf("find %s: %v", name, err)
		}
		if row.Status != want {
			t.Fatalf("%s: expected %s got %s", name, want, row.Status)
		}
	}
	if !store.Balanced() {
		t.Fatal("expected session to be closed")
	}
}

func TestMediaIntentSweepRetriesFailedDeletes(t *testing.T) {
	conn := dbtest.Open(t)
	intents := media.NewRepository(conn)
	store := storagetest.NewStore()
	store.FailDelete = func(string) error { return errors.New("permission denied") }
	ctx := context.Background()

	if err := intents.CreateIntent(ctx, &models.MediaUploadIntent{RemoteName: "9-0-a.png"}); err != nil {
		t.Fatalf("seed intent: %v", err)
	}
	store.Put("9-0-a.png", []byte("x"))

	job := newSweepJob(t, intents, store)
	job.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	if err := job.Run(ctx); err == nil {
		t.Fatal("expected failed delete to be reported")
	}
	row, err := intents.FindByRemoteName(ctx, "9-0-a.png")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if row.Status != enums.MediaIntentPending {
		t.Fatalf("expected failed delete to stay pending, got %s", row.Status)
	}
}

func TestMediaIntentSweepSurfacesUnreachableStore(t *testing.T) {
	conn := dbtest.Open(t)
	intents := media.NewRepository(conn)
	store := storagetest.NewStore()
	store.FailOpen = errors.New("dial tcp: connection refused")
	ctx := context.Background()

	if err := intents.CreateIntent(ctx, &models.MediaUploadIntent{RemoteName: "9-0-a.png"}); err != nil {
		t.Fatalf("seed intent: %v", err)
	}
	job := newSweepJob(t, intents, store)
	job.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	if err := job.Run(ctx); err == nil {
		t.Fatal("expected connect failure")
	}
}

func TestMediaIntentSweepReportsEveryFailedDelete(t *testing.T) {
	conn := dbtest.Open(t)
	intents := media.NewRepository(conn)
	store := storagetest.NewStore()
	store.FailDelete = func(name string) error {
		if name == "7-1-ok.png" {
			return nil
		}
		return errors.New("connection lost")
	}
	ctx := context.Background()

	for _, name := range []string{"7-0-a.png", "7-1-ok.png", "7-2-b.png"} {
		if err := intents.CreateIntent(ctx, &models.MediaUploadIntent{RemoteName: name}); err != nil {
			t.Fatalf("seed intent: %v", err)
		}
		store.Put(name, []byte("x"))
	}

	job := newSweepJob(t, intents, store)
	job.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	err := job.Run(ctx)
	if err == nil {
		t.Fatal("expected unreachable deletes to fail the run")
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 combined errors, got %d: %v", got, err)
	}

	for name, want := range map[string]enums.MediaIntentStatus{
		"7-0-a.png":  enums.MediaIntentPending,
		"7-1-ok.png": enums.MediaIntentAborted,
		"7-2-b.png":  enums.MediaIntentPending,
	} {
		row, err := intents.FindByRemoteName(ctx, name)
		if err != nil {
			t.Fatalf("find %s: %v", name, err)
		}
		if row.Status != want {
			t.Fatalf("%s: expected %s got %s", name, want, row.Status)
		}
	}
	if !store.Balanced() {
		t.Fatal("expected session to be closed")
	}
}

func TestMediaIntentSweepSkipsConnectWhenIdle(t *testing.T) {
	store := storagetest.NewStore()
	store.FailOpen = errors.New("should not dial")
	job := newSweepJob(t, media.NewRepository(dbtest.Open(t)), store)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("expected idle sweep to succeed, got %v", err)
	}
}

func newSweepJob(t *testing.T, intents *media.Repository, store *storagetest.Store) *mediaIntentSweepJob {
	t.Helper()
	jobIface, err := NewMediaIntentSweepJob(MediaIntentSweepJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Intents: intents,
		Remote:  store,
	})
	if err != nil {
		t.Fatalf("NewMediaIntentSweepJob: %v", err)
	}
	job, ok := jobIface.(*mediaIntentSweepJob)
	if !ok {
		t.Fatalf("expected mediaIntentSweepJob, got %T", jobIface)
	}
	return job
}
