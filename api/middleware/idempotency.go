package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/ghanadude-checkout/api/responses"
	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
	"github.com/angelmondragon/ghanadude-checkout/pkg/logger"
	pkgredis "github.com/angelmondragon/ghanadude-checkout/pkg/redis"
)

const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotentReplayedHeader  = "Idempotent-Replayed"
	defaultIdempotencyTTL     = 7 * 24 * time.Hour
	idempotencyReservationTTL = 2 * time.Minute
	maxIdempotencyKeyLength   = 128
	maxIdempotentBodyBytes    = 64 << 10
)

// storedResponse is what a key maps to in redis. A record without a status
// is a reservation held by a request that has not finished yet.
type storedResponse struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

func (s storedResponse) inFlight() bool { return s.Status == 0 }

// Idempotency makes the wrapped route safe to retry. Each request must carry
// an Idempotency-Key; a repeat with the same key and body from the same owner
// gets the first response back instead of running the handler again. The
// key is reserved while the first request runs and dropped again when it
// ends in a 5xx, so a failed attempt can be retried. A nil store disables
// the check entirely.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			switch {
			case clientKey == "":
				responses.WriteError(ctx, logg, w, pkgerrors.Field("Idempotency-Key", "Idempotency-Key header required"))
				return
			case len(clientKey) > maxIdempotencyKeyLength:
				responses.WriteError(ctx, logg, w, pkgerrors.Field("Idempotency-Key", "Idempotency-Key is too long"))
				return
			}

			if r.Body == nil {
				r.Body = http.NoBody
			}
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIdempotentBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "request body too large"))
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "could not read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := fingerprintBody(body)
			key := store.IdempotencyKey(strings.Join([]string{OwnerFromContext(ctx), r.Method, r.URL.Path}, "|"), clientKey)

			prior, err := loadStoredResponse(ctx, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store unavailable"))
				return
			}
			if prior != nil {
				replayOrReject(ctx, logg, w, prior, fingerprint)
				return
			}

			reservation, _ := json.Marshal(storedResponse{Fingerprint: fingerprint})
			won, err := store.SetNX(ctx, key, string(reservation), idempotencyReservationTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store unavailable"))
				return
			}
			if !won {
				responses.WriteError(ctx, logg, w, errInFlight)
				return
			}

			var captured bytes.Buffer
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&captured)
			next.ServeHTTP(ww, r)

			// the shopper may have hung up; the outcome is still recorded
			finishCtx := context.WithoutCancel(ctx)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				if err := store.Del(finishCtx, key); err != nil {
					logg.Error(finishCtx, "idempotency.release.failed", err)
				}
				return
			}

			payload, err := json.Marshal(storedResponse{
				Fingerprint: fingerprint,
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        captured.Bytes(),
			})
			if err == nil {
				err = store.Set(finishCtx, key, string(payload), ttl)
			}
			if err != nil {
				logg.Error(finishCtx, "idempotency.persist.failed", err)
			}
		})
	}
}

var errInFlight = pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress")

func loadStoredResponse(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func replayOrReject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, prior *storedResponse, fingerprint string) {
	switch {
	case prior.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case prior.inFlight():
		responses.WriteError(ctx, logg, w, errInFlight)
	default:
		if prior.ContentType != "" {
			w.Header().Set("Content-Type", prior.ContentType)
		}
		w.Header().Set(IdempotentReplayedHeader, "true")
		w.WriteHeader(prior.Status)
		_, _ = w.Write(prior.Body)
	}
}

func fingerprintBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
