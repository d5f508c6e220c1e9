// Package env reads process settings that must be known before config.Load,
// such as the log format.
package env

import (
	"os"
	"strings"
)

const prefix = "STOREFRONT_"

// Get returns STOREFRONT_<key>, then <key>, then fallback.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(prefix + key)); val != "" {
		return val
	}
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}
