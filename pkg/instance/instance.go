package instance

import "os"

// GetID identifies the running process in logs. Cloud Run revisions win over
// an explicit WORKER_ID, then the hostname.
func GetID() string {
	for _, key := range []string{"K_REVISION", "WORKER_ID", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
