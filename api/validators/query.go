package validators

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
)

// ParseQueryInt64 reads an optional integer query parameter bounded to
// [min, max]. Missing values yield def.
func ParseQueryInt64(r *http.Request, key string, def, min, max int64) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, pkgerrors.Field(key, fmt.Sprintf("%s must be a whole number", key))
	}
	if value < min || value > max {
		return 0, pkgerrors.Field(key, fmt.Sprintf("%s must be between %d and %d", key, min, max))
	}
	return value, nil
}

func ParseQueryInt(r *http.Request, key string, def, min, max int) (int, error) {
	value, err := ParseQueryInt64(r, key, int64(def), int64(min), int64(max))
	return int(value), err
}

// RequireQueryInt64 is ParseQueryInt64 for parameters that must be present.
func RequireQueryInt64(r *http.Request, key string, min, max int64) (int64, error) {
	if strings.TrimSpace(r.URL.Query().Get(key)) == "" {
		return 0, pkgerrors.Field(key, key+" is required")
	}
	return ParseQueryInt64(r, key, 0, min, max)
}
