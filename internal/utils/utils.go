package utils

import (
	"strings"
)

func ContainsString(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}

// UniqueStrings drops repeated values, keeping first-seen order.
func UniqueStrings(input []string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, val := range input {
		if !seen[val] {
			result = append(result, val)
			seen[val] = true
		}
	}
	return result
}

// NormalizeCoinID lowercases and trims a CoinGecko coin id ("Bitcoin " -> "bitcoin").
func NormalizeCoinID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// IsValidCoinID reports whether id looks like a CoinGecko coin id: lowercase
// letters, digits and dashes, at most 64 characters.
func IsValidCoinID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, c := range id {
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-') {
			return false
		}
	}
	return true
}

// TitleCase upper-cases the first letter of s ("dogecoin" -> "Dogecoin").
func TitleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
