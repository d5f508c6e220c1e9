package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// ParseIDParam reads a positive numeric route parameter.
func ParseIDParam(r *http.Request, key string) (uint, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" is required").WithDetails(map[string]any{"field": key})
	}
	return parseID(raw, key)
}

func parseID(raw, field string) (uint, error) {
	id, err := cast.ToUintE(raw)
	if err != nil || id == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, field+" must be a positive integer").WithDetails(map[string]any{"field": field, "value": raw})
	}
	return id, nil
}
