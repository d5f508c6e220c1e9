package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	idempotencyHeader     = "Idempotency-Key"
	replayedHeader        = "Idempotent-Replayed"
	maxIdempotencyKeyLen  = 128
	defaultIdempotencyTTL = 24 * time.Hour
)

type replayState string

const (
	replayPending replayState = "pending"
	replayDone    replayState = "done"
)

// storedResponse is what a key maps to in redis. A pending entry reserves the
// key while the first request is still running.
type storedResponse struct {
	State       replayState `json:"state"`
	Fingerprint string      `json:"fingerprint"`
	Status      int         `json:"status,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Body        []byte      `json:"body,omitempty"`
}

// Idempotency makes a create safe to retry. The first request carrying an
// Idempotency-Key reserves the key, runs, and stores its response; a retry
// with the same key and the same request replays that response. A 5xx
// releases the key so the client can try again. Requests without the header,
// or with no store configured, pass straight through.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, maxBody int64, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := validators.SanitizeString(r.Header.Get(idempotencyHeader), maxIdempotencyKeyLen)
			if store == nil || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			body, err := readBounded(r.Body, maxBody)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint, err := fingerprintRequest(r.Header.Get("Content-Type"), body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed request body"))
				return
			}

			key := store.IdempotencyKey(r.Method+"|"+routePattern(r), clientKey)
			reserved, err := reserve(ctx, store, key, fingerprint, ttl)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replay(ctx, logg, w, store, key, fingerprint)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			settled := false
			defer func() {
				if !settled {
					release(ctx, logg, store, key)
				}
			}()

			next.ServeHTTP(capture, r)

			status := capture.statusOrOK()
			if status >= http.StatusInternalServerError {
				return
			}
			settled = true
			done := storedResponse{
				State:       replayDone,
				Fingerprint: fingerprint,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			}
			payload, err := json.Marshal(done)
			if err == nil {
				err = store.Set(context.WithoutCancel(ctx), key, string(payload), ttl)
			}
			if err != nil && logg != nil {
				logg.WarnErr(logg.WithField(ctx, "idempotency_key", clientKey), "storing idempotent response failed", err)
			}
		})
	}
}

func reserve(ctx context.Context, store pkgredis.IdempotencyStore, key, fingerprint string, ttl time.Duration) (bool, error) {
	payload, err := json.Marshal(storedResponse{State: replayPending, Fingerprint: fingerprint})
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, string(payload), ttl)
}

func release(ctx context.Context, logg *logger.Logger, store pkgredis.IdempotencyStore, key string) {
	if err := store.Del(context.WithoutCancel(ctx), key); err != nil && logg != nil {
		logg.WarnErr(ctx, "releasing idempotency key failed", err)
	}
}

func replay(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, store pkgredis.IdempotencyStore, key, fingerprint string) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, pkgredis.Nil) {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key was released; retry the request"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case stored.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request"))
	case stored.State != replayDone:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

func readBounded(body io.Reader, limit int64) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if limit > 0 {
		body = io.LimitReader(body, limit+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request body too large").
			WithDetails(map[string]any{"max_bytes": limit})
	}
	return data, nil
}

// fingerprintRequest hashes the request content. Multipart bodies are hashed
// part by part so a retry encoded with a fresh boundary still matches.
func fingerprintRequest(contentType string, body []byte) (string, error) {
	h := sha256.New()
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		h.Write(body)
		return hex.EncodeToString(h.Sum(nil)), nil
	}

	mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		h.Write([]byte(part.FormName() + "\x00" + part.FileName() + "\x00"))
		if _, err := io.Copy(h, part); err != nil {
			return "", err
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// responseCapture tees the response so it can be stored for replay.
type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
