package metrics

import (
	"DriverWatch/pkg/alert"
	"sync/atomic"
	"time"
)

// Metrics holds process-wide counters. Nothing here feeds back into an
// analysis result.
type Metrics struct {
	startedAt time.Time

	totalFrames   atomic.Int64
	totalErrors   atomic.Int64
	totalLatency  atomic.Int64
	lastFrameTime atomic.Int64

	fatigue     atomic.Int64
	distracted  atomic.Int64
	attentive   atomic.Int64
	noFace      atomic.Int64
	streamConns atomic.Int64
}

type Snapshot struct {
	TotalFrames     int64            `json:"total_frames"`
	TotalErrors     int64            `json:"total_errors"`
	AvgLatencyMs    float64          `json:"avg_latency_ms"`
	LastFrameTime   int64            `json:"last_frame_time"`
	StatusCounts    map[string]int64 `json:"status_counts"`
	StreamClients   int64            `json:"stream_clients"`
	SystemUptimeSec int64            `json:"system_uptime_sec"`
}

func New() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

func (m *Metrics) RecordAnalysis(status alert.Status, latency time.Duration) {
	m.totalFrames.Add(1)
	m.totalLatency.Add(latency.Milliseconds())
	m.lastFrameTime.Store(time.Now().Unix())

	switch status {
	case alert.FatigueDetected:
		m.fatigue.Add(1)
	case alert.Distracted:
		m.distracted.Add(1)
	case alert.Attentive:
		m.attentive.Add(1)
	case alert.NoFaceDetected:
		m.noFace.Add(1)
	}
}

func (m *Metrics) IncrementErrors() {
	m.totalErrors.Add(1)
}

func (m *Metrics) StreamOpened() {
	m.streamConns.Add(1)
}

func (m *Metrics) StreamClosed() {
	m.streamConns.Add(-1)
}

func (m *Metrics) Snapshot() Snapshot {
	frames := m.totalFrames.Load()
	var avg float64
	if frames > 0 {
		avg = float64(m.totalLatency.Load()) / float64(frames)
	}

	return Snapshot{
		TotalFrames:   frames,
		TotalErrors:   m.totalErrors.Load(),
		AvgLatencyMs:  avg,
		LastFrameTime: m.lastFrameTime.Load(),
		StatusCounts: map[string]int64{
			string(alert.FatigueDetected): m.fatigue.Load(),
			string(alert.Distracted):      m.distracted.Load(),
			string(alert.Attentive):       m.attentive.Load(),
			string(alert.NoFaceDetected):  m.noFace.Load(),
		},
		StreamClients:   m.streamConns.Load(),
		SystemUptimeSec: int64(time.Since(m.startedAt).Seconds()),
	}
}
