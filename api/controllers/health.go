package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/ghanadude-checkout/api/responses"
	"github.com/angelmondragon/ghanadude-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/ghanadude-checkout/pkg/errors"
	"github.com/angelmondragon/ghanadude-checkout/pkg/logger"
)

const readinessTimeout = 3 * time.Second

// Pinger is anything readiness can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessCheck names a dependency probed by HealthReady. Nil pingers are skipped.
type ReadinessCheck struct {
	Name   string
	Pinger Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Ghanadude-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Ghanadude-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		report := map[string]string{}
		failed := map[string]string{}
		for _, check := range checks {
			if check.Pinger == nil {
				continue
			}
			if err := check.Pinger.Ping(ctx); err != nil {
				failed[check.Name] = err.Error()
				continue
			}
			report[check.Name] = "up"
		}

		if len(failed) > 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(failed))
			return
		}
		report["status"] = "ready"
		responses.WriteSuccess(w, report)
	}
}
