package instance

import "os"

// GetID identifies the running process for log correlation. Dyno-style
// platforms set DYNO, container deployments set WORKER_ID, and local runs
// fall back to the hostname.
func GetID() string {
	if id := os.Getenv("DYNO"); id != "" {
		return id
	}
	if id := os.Getenv("WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
