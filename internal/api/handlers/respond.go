package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/onnwee/coin-tracker/internal/apierr"
	"github.com/onnwee/coin-tracker/internal/logger"
	"github.com/onnwee/coin-tracker/internal/market"
	"github.com/onnwee/coin-tracker/internal/middleware"
	"github.com/onnwee/coin-tracker/internal/utils"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}

func writeAPIError(w http.ResponseWriter, r *http.Request, err *apierr.Error) {
	apierr.WriteErrorWithContext(w, r, err)
}

// markSimulated flags the response when any payload in it was substituted.
// Must run before the body is written.
func markSimulated(w http.ResponseWriter, notes *market.FallbackNotes) bool {
	if !notes.Used() {
		return false
	}
	w.Header().Set(middleware.SimulatedHeader, "true")
	return true
}

// writeUpstreamError maps a market failure onto the structured error body.
// A caller that went away gets nothing.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, id string, err error) {
	if market.IsCancelled(err) {
		logger.ForComponent(r.Context(), "http").Debug("request abandoned", "path", r.URL.Path)
		return
	}
	var me *market.Error
	if !errors.As(err, &me) {
		logger.ErrorContext(r.Context(), "unexpected market error", "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.SystemInternal(""))
		return
	}
	retry := r.URL.RequestURI()
	switch me.Kind {
	case market.KindNotFound:
		apierr.WriteErrorWithContext(w, r, apierr.CoinNotFound(id))
	case market.KindRateLimited:
		apierr.WriteErrorWithContext(w, r, apierr.UpstreamRateLimited(me.Message, me.RetryAfter).WithRetry(retry))
	default:
		apierr.WriteErrorWithContext(w, r, apierr.UpstreamUnavailable(me.Message).WithRetry(retry))
	}
}

// coinID normalises and validates a path or query coin id.
func coinID(raw string) (string, *apierr.Error) {
	id := utils.NormalizeCoinID(raw)
	if !utils.IsValidCoinID(id) {
		return "", apierr.CoinInvalidID(middleware.SanitizeString(raw, 64))
	}
	return id, nil
}

// chartParams reads days and metric from the query string.
func chartParams(r *http.Request) (int, market.Metric, *apierr.Error) {
	q := r.URL.Query()
	days, err := market.ParseDays(q.Get("days"))
	if err != nil {
		return 0, "", apierr.ValidationInvalidValue("days", err.Error())
	}
	metric, err := market.ParseMetric(q.Get("metric"))
	if err != nil {
		return 0, "", apierr.ValidationInvalidValue("metric", err.Error())
	}
	return days, metric, nil
}

// positiveInt parses an optional positive integer query value.
func positiveInt(r *http.Request, name string, def, max int) (int, *apierr.Error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apierr.ValidationInvalidValue(name, name+" must be a positive integer")
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}
