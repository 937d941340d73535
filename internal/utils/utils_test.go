package utils

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func TestUniqueStrings(t *testing.T) {
	got := UniqueStrings([]string{"bitcoin", "ethereum", "bitcoin", "solana", "ethereum"})
	want := []string{"bitcoin", "ethereum", "solana"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("UniqueStrings = %v, want %v", got, want)
	}
}

func TestIsValidCoinID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"bitcoin", true},
		{"avalanche-2", true},
		{"usd-coin", true},
		{"", false},
		{"Bitcoin", false},
		{"../etc/passwd", false},
		{"bit coin", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := IsValidCoinID(tt.id); got != tt.want {
				t.Errorf("IsValidCoinID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestNormalizeAndTitle(t *testing.T) {
	if got := NormalizeCoinID("  Ethereum "); got != "ethereum" {
		t.Errorf("NormalizeCoinID = %q", got)
	}
	if got := TitleCase("dogecoin"); got != "Dogecoin" {
		t.Errorf("TitleCase = %q", got)
	}
	if got := TitleCase(""); got != "" {
		t.Errorf("TitleCase(empty) = %q", got)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	os.Setenv("UTILS_TEST_INT", "42")
	os.Setenv("UTILS_TEST_BAD_INT", "x")
	os.Setenv("UTILS_TEST_BOOL", "yes")
	t.Cleanup(func() {
		os.Unsetenv("UTILS_TEST_INT")
		os.Unsetenv("UTILS_TEST_BAD_INT")
		os.Unsetenv("UTILS_TEST_BOOL")
	})
	if v := GetEnvAsInt("UTILS_TEST_INT", 1); v != 42 {
		t.Errorf("GetEnvAsInt = %d", v)
	}
	if v := GetEnvAsInt("UTILS_TEST_BAD_INT", 7); v != 7 {
		t.Errorf("GetEnvAsInt fallback = %d", v)
	}
	if !GetEnvAsBool("UTILS_TEST_BOOL", false) {
		t.Error("GetEnvAsBool expected true")
	}
}

func TestGetEnvAsSliceAndMillis(t *testing.T) {
	t.Setenv("UTILS_TEST_LIST", " a , ,b,")
	t.Setenv("UTILS_TEST_BLANK", " , ")
	t.Setenv("UTILS_TEST_MS", "250")

	if got := GetEnvAsSlice("UTILS_TEST_LIST", nil, ","); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("GetEnvAsSlice = %q", got)
	}
	if got := GetEnvAsSlice("UTILS_TEST_BLANK", []string{"x"}, ","); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("GetEnvAsSlice default = %q", got)
	}
	if got := GetEnvAsMillis("UTILS_TEST_MS", 10); got != 250*time.Millisecond {
		t.Errorf("GetEnvAsMillis = %v", got)
	}
	if got := GetEnv("UTILS_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("GetEnv = %q", got)
	}
}
