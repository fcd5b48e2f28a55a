// Package instance names the running process in logs.
package instance

import "github.com/angelmondragon/tracebridge-backend/pkg/env"

// ID returns the platform supplied instance name. DYNO wins over WORKER_ID
// and HOSTNAME; fallback is used when none is set.
func ID(fallback string) string {
	if id := env.First("DYNO", "WORKER_ID", "HOSTNAME"); id != "" {
		return id
	}
	return fallback
}
