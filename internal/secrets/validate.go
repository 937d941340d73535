package secrets

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/onnwee/coin-tracker/internal/config"
	"github.com/onnwee/coin-tracker/internal/errorreporting"
)

// minAdminTokenLen keeps the admin bearer token out of guessing range.
const minAdminTokenLen = 16

// ValidationError lists configuration values that prevent startup.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, fmt.Sprintf("invalid environment variables: %s", strings.Join(e.Invalid, ", ")))
	}
	return strings.Join(parts, "; ")
}

// ValidateRequired checks that every named value is non-empty.
func ValidateRequired(values map[string]string) error {
	var missing []string
	for key, value := range values {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &ValidationError{Missing: missing}
}

// ValidateConfig checks the secrets and connection strings a configuration
// needs before the server starts.
func ValidateConfig(cfg *config.Config) error {
	verr := &ValidationError{}
	if cfg.WatchlistBackend == "postgres" {
		var missing *ValidationError
		if errors.As(ValidateRequired(map[string]string{"WATCHLIST_DSN": cfg.WatchlistDSN}), &missing) {
			verr.Missing = append(verr.Missing, missing.Missing...)
		}
	}
	if cfg.SentryDSN != "" && errorreporting.ValidateDSN(cfg.SentryDSN) != nil {
		verr.Invalid = append(verr.Invalid, "SENTRY_DSN (not an http(s) URL)")
	}
	if cfg.AdminAPIToken != "" && len(cfg.AdminAPIToken) < minAdminTokenLen {
		verr.Invalid = append(verr.Invalid, fmt.Sprintf("ADMIN_API_TOKEN (shorter than %d characters)", minAdminTokenLen))
	}
	if strings.ContainsAny(cfg.CoinGeckoAPIKey, " \t\r\n") {
		verr.Invalid = append(verr.Invalid, "COINGECKO_API_KEY (contains whitespace)")
	}
	if len(verr.Missing) == 0 && len(verr.Invalid) == 0 {
		return nil
	}
	return verr
}

// Summary returns slog attributes describing the configured secrets with
// their values masked, for the startup log line.
func Summary(cfg *config.Config) []any {
	return []any{
		"coingecko_api_key", Mask(cfg.CoinGeckoAPIKey),
		"watchlist_dsn", MaskDSN(cfg.WatchlistDSN),
		"sentry_dsn", MaskURL(cfg.SentryDSN),
		"admin_token_set", cfg.AdminAPIToken != "",
	}
}
