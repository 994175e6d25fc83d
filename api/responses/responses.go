package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	zlog "github.com/rs/zerolog/log"

	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
	"github.com/angelmondragon/ghanadude-checkout/pkg/logger"
	"github.com/angelmondragon/ghanadude-checkout/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// PublicError converts err into the payload shape clients see, along with the
// HTTP status it maps to.
func PublicError(err error) (types.APIError, int) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case pkgerrors.CodeValidation,
		pkgerrors.CodeForbidden,
		pkgerrors.CodeUnauthorized,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeConflict,
		pkgerrors.CodeStateConflict,
		pkgerrors.CodeIdempotency,
		pkgerrors.CodeRateLimit,
		pkgerrors.CodeStock,
		pkgerrors.CodePayment,
		pkgerrors.CodeDependency:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	apiErr := types.APIError{
		Code:      string(typed.Code()),
		Message:   msg,
		Retryable: meta.Retryable,
	}
	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			apiErr.Details = details
		}
	}
	return apiErr, meta.HTTPStatus
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	apiErr, status := PublicError(err)
	logRejection(ctx, logg, err, status)
	writeJSON(w, status, types.ErrorEnvelope{Error: apiErr})
}

func logRejection(ctx context.Context, logg *logger.Logger, err error, status int) {
	if logg == nil {
		return
	}
	fields := pkgerrors.Dump(err).Fields()
	fields["http_status"] = status
	if field := pkgerrors.FieldOf(err); field != "" {
		fields["field"] = field
	}
	ctx = logg.WithFields(ctx, fields)
	if status >= http.StatusInternalServerError {
		logg.Error(ctx, "request.error", err)
		return
	}
	logg.Warn(ctx, "request.rejected")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zlog.Error().Err(err).Int("status", status).Msg("failed to encode response")
	}
}
