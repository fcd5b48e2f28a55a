// Package env reads process variables that are consulted before config.Load runs.
package env

import (
	"os"
	"strings"
)

// First returns the first of keys holding a non-blank value, trimmed.
func First(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

// Or returns the value of key, or fallback when it is unset or blank.
func Or(key, fallback string) string {
	if v := First(key); v != "" {
		return v
	}
	return fallback
}
