package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/onnwee/coin-tracker/internal/apierr"
	"github.com/onnwee/coin-tracker/internal/logger"
	"github.com/onnwee/coin-tracker/internal/market"
	"github.com/onnwee/coin-tracker/internal/middleware"
)

// CacheAdmin is the part of market.Service the admin endpoints drive.
type CacheAdmin interface {
	StatusReporter
	Invalidate(key string)
	InvalidateCoin(id string)
	Purge()
}

// CacheAdminHandler handles cache administration endpoints.
type CacheAdminHandler struct {
	svc CacheAdmin
}

// NewCacheAdminHandler creates a new cache admin handler.
func NewCacheAdminHandler(svc CacheAdmin) *CacheAdminHandler {
	return &CacheAdminHandler{svc: svc}
}

// invalidateRequest selects what to drop. An empty body drops everything.
type invalidateRequest struct {
	Key  string `json:"key,omitempty"`
	Coin string `json:"coin,omitempty"`
}

// InvalidateCache drops one key, one coin's detail entry, or the whole cache.
// POST /api/admin/cache/invalidate
func (h *CacheAdminHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := middleware.DecodeJSON(r, &req, true); err != nil {
		var syntax *json.SyntaxError
		if errors.As(err, &syntax) || errors.Is(err, io.ErrUnexpectedEOF) {
			writeAPIError(w, r, apierr.ValidationInvalidJSON())
			return
		}
		writeAPIError(w, r, apierr.ValidationInvalidFormat(err.Error()))
		return
	}
	log := logger.ForComponent(r.Context(), "admin")

	scope := "all"
	switch {
	case req.Key != "":
		h.svc.Invalidate(middleware.SanitizeString(req.Key, 256))
		scope = "key"
	case req.Coin != "":
		id, aerr := coinID(req.Coin)
		if aerr != nil {
			writeAPIError(w, r, aerr)
			return
		}
		h.svc.InvalidateCoin(id)
		scope = "coin"
	default:
		h.svc.Purge()
	}
	log.Info("cache invalidated", "scope", scope, "key", req.Key, "coin", req.Coin)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"scope":   scope,
		"message": "Cache invalidated successfully",
	})
}

// GetCacheStats returns current cache statistics.
// GET /api/admin/cache/stats
func (h *CacheAdminHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	st := h.svc.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"hits":       st.Cache.Hits,
		"misses":     st.Cache.Misses,
		"keysAdded":  st.Cache.KeysAdded,
		"evictions":  st.Cache.Evictions,
		"items":      st.Cache.Items,
		"queueDepth": st.QueueDepth,
		"breaker":    st.Breaker,
	})
}

var _ CacheAdmin = (*market.Service)(nil)
