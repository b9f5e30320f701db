package metrics

import (
	"DriverWatch/pkg/alert"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot(t *testing.T) {
	m := New()

	m.RecordAnalysis(alert.Attentive, 10*time.Millisecond)
	m.RecordAnalysis(alert.FatigueDetected, 30*time.Millisecond)
	m.RecordAnalysis(alert.FatigueDetected, 20*time.Millisecond)
	m.IncrementErrors()

	s := m.Snapshot()
	assert.Equal(t, int64(3), s.TotalFrames)
	assert.Equal(t, int64(1), s.TotalErrors)
	assert.InDelta(t, 20.0, s.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(2), s.StatusCounts["fatigue_detected"])
	assert.Equal(t, int64(1), s.StatusCounts["attentive"])
	assert.Equal(t, int64(0), s.StatusCounts["no_face_detected"])
}

func TestConcurrentRecording(t *testing.T) {
	m := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordAnalysis(alert.Distracted, time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), m.Snapshot().StatusCounts["distracted"])
}
