// Package metrics provides request and upstream counters for the stats
// endpoint.
package metrics

import (
	"sync"
	"time"
)

// Metrics holds the serving counters. All methods are safe for concurrent
// use.
type Metrics struct {
	mu sync.Mutex

	startTime        time.Time
	requestCount     int64
	errorCount       int64
	imagesTranscoded int64
	upstreamFailures int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Uptime           time.Duration `json:"uptime"`
	RequestCount     int64         `json:"request_count"`
	ErrorCount       int64         `json:"error_count"`
	ImagesTranscoded int64         `json:"images_transcoded"`
	UpstreamFailures int64         `json:"upstream_failures"`
}

// NewMetrics creates a Metrics instance with the clock started.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordRequest counts one served request; failed requests also count as
// errors.
func (m *Metrics) RecordRequest(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestCount++
	if !success {
		m.errorCount++
	}
}

// RecordImageTranscode counts one started image conversion.
func (m *Metrics) RecordImageTranscode() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imagesTranscoded++
}

// RecordUpstreamFailure counts one failed upstream fetch.
func (m *Metrics) RecordUpstreamFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upstreamFailures++
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Uptime:           time.Since(m.startTime),
		RequestCount:     m.requestCount,
		ErrorCount:       m.errorCount,
		ImagesTranscoded: m.imagesTranscoded,
		UpstreamFailures: m.upstreamFailures,
	}
}

// Reset zeroes the counters and restarts the clock.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.startTime = time.Now()
	m.requestCount = 0
	m.errorCount = 0
	m.imagesTranscoded = 0
	m.upstreamFailures = 0
}
