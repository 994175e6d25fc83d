package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/ghanadude-checkout/api/responses"
	pkgAuth "github.com/angelmondragon/ghanadude-checkout/pkg/auth"
	"github.com/angelmondragon/ghanadude-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
	"github.com/angelmondragon/ghanadude-checkout/pkg/logger"
)

// DeviceIDHeader identifies anonymous shoppers.
const DeviceIDHeader = "X-Device-Id"

// Owner resolves who the cart belongs to. A bearer token wins over the device
// header; a request carrying neither is rejected.
// Without a JWT secret only guests (device ids) are served.
func Owner(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	verifier, verifierErr := pkgAuth.NewVerifier(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var owner string

			if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" {
				token := raw
				if strings.HasPrefix(strings.ToLower(token), "bearer ") {
					token = strings.TrimSpace(token[7:])
				}
				if token == "" {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
					return
				}

				if verifierErr != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, verifierErr, "sign-in is not available"))
					return
				}
				claims, err := verifier.Verify(token)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}
				owner = claims.Owner()
			} else {
				owner = pkgAuth.DeviceOwner(r.Header.Get(DeviceIDHeader))
			}

			if owner == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in or send a device id"))
				return
			}

			ctx := WithOwner(r.Context(), owner)
			if logg != nil {
				ctx = logg.WithOwner(ctx, owner)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
