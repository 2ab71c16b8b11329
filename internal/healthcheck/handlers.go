package healthcheck

import (
	"encoding/json"
	"net/http"
	"time"
)

// Report statuses.
const (
	StatusOK       = "ok"
	StatusStale    = "stale"
	StatusStarting = "starting"
)

// Report is the body of /healthz and /readyz. Only StatusOK maps to 200.
type Report struct {
	Status string `json:"status"`
	Snapshot
}

// HealthHandler reports whether the status poller has attempted a query
// within twice the poll interval. A stopped Docker engine does not fail it.
func HealthHandler(tracker *Tracker, pollInterval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if tracker == nil {
			respond(w, Report{Status: StatusStarting})
			return
		}
		report := Report{Status: StatusStale, Snapshot: tracker.Snapshot()}
		if tracker.Healthy(time.Now().UTC(), pollInterval) {
			report.Status = StatusOK
		}
		respond(w, report)
	}
}

// ReadyHandler reports ready once the first poll has completed.
func ReadyHandler(tracker *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		report := Report{Status: StatusStarting}
		if tracker != nil {
			report.Snapshot = tracker.Snapshot()
			if tracker.Ready() {
				report.Status = StatusOK
			}
		}
		respond(w, report)
	}
}

func respond(w http.ResponseWriter, report Report) {
	code := http.StatusServiceUnavailable
	if report.Status == StatusOK {
		code = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}
