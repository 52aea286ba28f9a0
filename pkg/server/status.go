package server

import (
	"net/http"
	"time"

	"github.com/solarbot/solarbot/pkg/poller"
)

type statusResponse struct {
	Ready   bool             `json:"ready"`
	Uptime  string           `json:"uptime"`
	Latest  *poller.Snapshot `json:"latest,omitempty"`
	Age     string           `json:"age,omitempty"`
	Version string           `json:"version"`
}

// handleStatus returns the latest sample with its derived metrics, the peak
// and the alert latches. Before the first cycle completes it answers 503.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	res := statusResponse{
		Uptime:  time.Since(s.startedAt).Round(time.Second).String(),
		Version: s.serverName,
	}

	snap, ok := s.poller.Snapshot()
	if !ok {
		writeJSON(w, res, http.StatusServiceUnavailable)
		return
	}
	res.Ready = true
	res.Latest = &snap
	res.Age = time.Since(snap.UpdatedAt).Round(time.Second).String()
	writeJSON(w, res, http.StatusOK)
}
