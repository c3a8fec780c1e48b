package webhook

import (
	"sort"
	"sync"
	"time"
)

// MetricsTracker keeps per-outcome delivery statistics for the health endpoint
type MetricsTracker struct {
	metrics map[string]*DeliveryMetrics
	mu      sync.RWMutex
}

// NewMetricsTracker creates a new metrics tracker
func NewMetricsTracker() *MetricsTracker {
	return &MetricsTracker{
		metrics: make(map[string]*DeliveryMetrics),
	}
}

// Track records a delivery
func (mt *MetricsTracker) Track(outcome string, durationMs float64) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	m, exists := mt.metrics[outcome]
	if !exists {
		m = &DeliveryMetrics{Outcome: outcome}
		mt.metrics[outcome] = m
	}

	m.Count++

	// Running average
	m.AverageResponseTime = (m.AverageResponseTime*float64(m.Count-1) + durationMs) / float64(m.Count)
	m.LastDeliveryAt = time.Now().UnixMilli()
}

// GetMetrics returns all metrics sorted by outcome
func (mt *MetricsTracker) GetMetrics() []DeliveryMetrics {
	mt.mu.RLock()
	defer mt.mu.RUnlock()

	result := make([]DeliveryMetrics, 0, len(mt.metrics))
	for _, m := range mt.metrics {
		result = append(result, *m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Outcome < result[j].Outcome })
	return result
}

// GetMetricsForOutcome returns a copy of the metrics for one outcome
func (mt *MetricsTracker) GetMetricsForOutcome(outcome string) *DeliveryMetrics {
	mt.mu.RLock()
	defer mt.mu.RUnlock()

	m, exists := mt.metrics[outcome]
	if !exists {
		return nil
	}

	result := *m
	return &result
}

// Total returns the number of deliveries across outcomes
func (mt *MetricsTracker) Total() int64 {
	mt.mu.RLock()
	defer mt.mu.RUnlock()

	var total int64
	for _, m := range mt.metrics {
		total += m.Count
	}
	return total
}
