package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

const createPattern = "/api/admin/v1/products"

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", pkgredis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	str, _ := value.(string)
	f.data[key] = str
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestIdempotencyPassesThroughWithoutHeader(t *testing.T) {
	store := newFakeStore()
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})
	mw := Idempotency(store, time.Hour, 1<<20, nil)

	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, createPattern, createPattern, strings.NewReader(`{"title":"x"}`))
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected both requests to reach the handler, got %d", calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("nothing should be stored without a key")
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, 1<<20, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":1}}`))
	})

	req := requestWithPattern(http.MethodPost, createPattern, createPattern, strings.NewReader(`{"title":"x"}`))
	req.Header.Set("Idempotency-Key", "abc")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected first response 201 got %d", resp.Code)
	}

	replay := requestWithPattern(http.MethodPost, createPattern, createPattern, strings.NewReader(`{"title":"x"}`))
	replay.Header.Set("Idempotency-Key", "abc")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, replay)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected replay status 201 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if rec.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay marker header")
	}
	if strings.TrimSpace(rec.Body.String()) != `{"data":{"id":1}}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyDoesNotStoreServerErrors(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, 1<<20, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, createPattern, createPattern, strings.NewReader(`{"title":"x"}`))
		req.Header.Set("Idempotency-Key", "retry-me")
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected failed transfer to be retryable, handler ran %d times", calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("expected reservation released after a 5xx, got %v", store.data)
	}
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, 1<<20, nil)

	var inner *httptest.ResponseRecorder
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// a second request arrives while the first is still running
		dup := requestWithPattern(http.MethodPost, createPattern, createPattern, strings.NewReader(`{"title":"x"}`))
		dup.Header.Set("Idempotency-Key", "slow")
		inner = httptest.NewRecorder()
		Idempotency(store, time.Hour, 1<<20, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("duplicate must not reach the handler")
		})).ServeHTTP(inner, dup)
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, createPattern, createPattern, strings.NewReader(`{"title":"x"}`))
	req.Header.Set("Idempotency-Key", "slow")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected first request 201 got %d", resp.Code)
	}
	if inner == nil || inner.Code != http.StatusConflict {
		t.Fatalf("expected in-flight duplicate to get 409, got %+v", inner)
	}
}

func TestIdempotencyMatchesMultipartAcrossBoundaries(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, 1<<20, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	for _, boundary := range []string{"boundary-one", "boundary-two"} {
		body := &bytes.Buffer{}
		mpw := multipart.NewWriter(body)
		if err := mpw.SetBoundary(boundary); err != nil {
			t.Fatalf("set boundary: %v", err)
		}
		_ = mpw.WriteField("payload", `{"title":"Shoe"}`)
		part, _ := mpw.CreateFormFile("images", "front.png")
		_, _ = part.Write([]byte("png-bytes"))
		_ = mpw.Close()

		req := requestWithPattern(http.MethodPost, createPattern, createPattern, body)
		req.Header.Set("Content-Type", mpw.FormDataContentType())
		req.Header.Set("Idempotency-Key", "upload-1")
		rec := httptest.NewRecorder()
		mw(handler).ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201 for boundary %s, got %d", boundary, rec.Code)
		}
	}
	if calls != 1 {
		t.Fatalf("expected re-encoded retry to replay, handler ran %d times", calls)
	}
}

func TestIdempotencyRejectsOversizedBody(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, 8, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("oversized body must not reach the handler")
	})

	req := requestWithPattern(http.MethodPost, createPattern, createPattern, strings.NewReader(`{"title":"too long"}`))
	req.Header.Set("Idempotency-Key", "big")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestIdempotencyDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, time.Hour, 1<<20, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, createPattern, createPattern, strings.NewReader(`{"title":"x"}`))
	req.Header.Set("Idempotency-Key", "xyz")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	replay := requestWithPattern(http.MethodPost, createPattern, createPattern, strings.NewReader(`{"title":"y"}`))
	replay.Header.Set("Idempotency-Key", "xyz")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, replay)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}
