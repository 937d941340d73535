// Package watchlist persists the user's list of watched coin ids.
package watchlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/onnwee/coin-tracker/internal/utils"
)

// Key is the settings key the list is stored under.
const Key = "watchlist"

// ErrInvalidID is returned for ids that are not CoinGecko coin ids.
var ErrInvalidID = errors.New("invalid coin id")

// Store keeps an ordered, duplicate-free list of coin ids.
type Store interface {
	List(ctx context.Context) ([]string, error)
	// Add appends id unless already present. Adding twice is not an error.
	Add(ctx context.Context, id string) error
	// Remove drops id. Removing a missing id is not an error.
	Remove(ctx context.Context, id string) error
	Contains(ctx context.Context, id string) (bool, error)
}

func normalize(id string) (string, error) {
	id = utils.NormalizeCoinID(id)
	if !utils.IsValidCoinID(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return id, nil
}

func withID(ids []string, id string) ([]string, bool) {
	if utils.ContainsString(ids, id) {
		return ids, false
	}
	return append(ids, id), true
}

func withoutID(ids []string, id string) ([]string, bool) {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out, len(out) != len(ids)
}

// clean drops invalid entries and repeats from a persisted list.
func clean(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range utils.UniqueStrings(ids) {
		if utils.IsValidCoinID(id) {
			out = append(out, id)
		}
	}
	return out
}
