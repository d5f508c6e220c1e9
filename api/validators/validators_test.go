package validators

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type variantPayload struct {
	SKU   string `json:"sku" validate:"required"`
	Stock int    `json:"stock_count" validate:"gte=0"`
}

type productPayload struct {
	Title    string           `json:"title" validate:"required"`
	Variants []variantPayload `json:"variants" validate:"dive"`
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  abc\r\n\x00def  ", 0); got != "abcdef" {
		t.Fatalf("expected control characters removed, got %q", got)
	}
	if got := SanitizeString("héllo", 2); got != "h" {
		t.Fatalf("expected cut on a rune boundary, got %q", got)
	}
	if got := SanitizeString("   ", 10); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestDecodeJSONReportsNestedFieldPaths(t *testing.T) {
	var dest productPayload
	err := DecodeJSON(`{"title":"Shoe","variants":[{"sku":"A"},{"stock_count":-1}]}`, &dest)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	if details["variants[1].sku"] != "is required" {
		t.Fatalf("missing sku detail: %v", details)
	}
	if details["variants[1].stock_count"] != "must be at least 0" {
		t.Fatalf("missing stock detail: %v", details)
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var dest productPayload
	if err := DecodeJSON(`{"title":"Shoe","colour":"red"}`, &dest); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestParseIDParam(t *testing.T) {
	cases := map[string]struct {
		raw     string
		want    uint
		wantErr bool
	}{
		"numeric":  {raw: "42", want: 42},
		"padded":   {raw: " 7 ", want: 7},
		"zero":     {raw: "0", wantErr: true},
		"negative": {raw: "-3", wantErr: true},
		"word":     {raw: "shoe", wantErr: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("productId", tc.raw)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			got, err := ParseIDParam(req, "productId")
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.raw)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("expected %d, got %d (%v)", tc.want, got, err)
			}
		})
	}
}

func TestParseMultipartCollectsFiles(t *testing.T) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	_ = mw.WriteField("payload", `{"title":"Shoe","variants":[{"sku":"A"},{"sku":"B"}]}`)
	writeFile(t, mw, "images", "front.png", "one")
	writeFile(t, mw, "images", "back.png", "two")
	writeFile(t, mw, "variant_images[1]", "b.png", "three")
	writeFile(t, mw, "variant_images[0]", "a.png", "four")
	writeFile(t, mw, "other[0]", "x.png", "five")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	form, err := ParseMultipart(httptest.NewRecorder(), req, 1<<20)
	if err != nil {
		t.Fatalf("parse multipart: %v", err)
	}
	defer form.Cleanup()

	var payload productPayload
	if err := form.DecodePayload(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Title != "Shoe" || len(payload.Variants) != 2 {
		t.Fatalf("unexpected payload %+v", payload)
	}

	images, err := form.Files("images")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(images) != 2 || images[0].Name != "front.png" || string(images[1].Data) != "two" {
		t.Fatalf("unexpected images %+v", images)
	}

	indexed, err := form.IndexedFiles("variant_images")
	if err != nil {
		t.Fatalf("indexed files: %v", err)
	}
	if len(indexed) != 2 || indexed[0][0].Name != "a.png" || indexed[1][0].Name != "b.png" {
		t.Fatalf("unexpected indexed files %+v", indexed)
	}
}

func TestParseMultipartRejectsBadIndex(t *testing.T) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	writeFile(t, mw, "variant_images[first]", "a.png", "x")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	form, err := ParseMultipart(httptest.NewRecorder(), req, 1<<20)
	if err != nil {
		t.Fatalf("parse multipart: %v", err)
	}
	defer form.Cleanup()

	if _, err := form.IndexedFiles("variant_images"); err == nil {
		t.Fatal("expected non-numeric index to be rejected")
	}
}

func TestParseMultipartRequiresPayload(t *testing.T) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	writeFile(t, mw, "images", "a.png", "x")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	form, err := ParseMultipart(httptest.NewRecorder(), req, 1<<20)
	if err != nil {
		t.Fatalf("parse multipart: %v", err)
	}
	defer form.Cleanup()

	var payload productPayload
	err = form.DecodePayload(&payload)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseMultipartEnforcesLimit(t *testing.T) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	writeFile(t, mw, "images", "big.png", strings.Repeat("x", 4096))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	_, err := ParseMultipart(httptest.NewRecorder(), req, 512)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func writeFile(t *testing.T, mw *multipart.Writer, field, name, content string) {
	t.Helper()
	part, err := mw.CreateFormFile(field, name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
}
