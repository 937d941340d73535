package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the trimmed value of name, or def when unset or blank.
func GetEnv(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

// GetEnvAsBool accepts 1/true/yes and 0/false/no; anything else yields def.
func GetEnvAsBool(name string, def bool) bool {
	switch strings.ToLower(GetEnv(name, "")) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return def
}

func GetEnvAsInt(name string, def int) int {
	if v, err := strconv.Atoi(GetEnv(name, "")); err == nil {
		return v
	}
	return def
}

func GetEnvAsFloat(name string, def float64) float64 {
	if v, err := strconv.ParseFloat(GetEnv(name, ""), 64); err == nil {
		return v
	}
	return def
}

// GetEnvAsMillis reads an integer number of milliseconds ("QUEUE_DELAY_MS=1200").
func GetEnvAsMillis(name string, defMS int) time.Duration {
	return time.Duration(GetEnvAsInt(name, defMS)) * time.Millisecond
}

// GetEnvAsSlice splits name on sep, trimming items and dropping empty ones.
// def is returned when nothing usable remains.
func GetEnvAsSlice(name string, def []string, sep string) []string {
	var out []string
	for _, item := range strings.Split(GetEnv(name, ""), sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
