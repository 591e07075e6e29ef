package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "vhomebridge",
	Subsystem: "api",
	Name:      "http_requests_total",
	Help:      "HTTP requests served by the admin API, by method and status.",
}, []string{"method", "status"})

func init() { prometheus.MustRegister(httpRequestsTotal) }

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	Bridge        *BridgeMetrics `json:"bridge,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// BridgeMetrics contains coordinator statistics.
type BridgeMetrics struct {
	Online        bool   `json:"online"`
	Phase         string `json:"phase"`
	Devices       int    `json:"devices"`
	Listeners     int    `json:"listeners"`
	DroppedEvents uint64 `json:"dropped_events"`
}

// handleMetrics returns a JSON summary for dashboards that do not scrape
// Prometheus.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}
	if s.hub != nil {
		metrics.WebSocket.ConnectedClients = s.hub.ClientCount()
	}

	// Bridge stats are omitted once the coordinator has stopped.
	if status, err := s.bridge.Status(r.Context()); err == nil {
		metrics.Bridge = &BridgeMetrics{
			Online:        status.Online,
			Phase:         status.Connection.Phase.String(),
			Devices:       status.Devices,
			Listeners:     status.Listeners,
			DroppedEvents: status.Dropped,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
