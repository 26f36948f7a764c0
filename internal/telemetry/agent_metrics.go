package telemetry

import (
	"sync"
	"time"
)

// DefaultSampleWindow is the number of recent executions kept per agent.
const DefaultSampleWindow = 100

// ExecutionSample records one agent task execution.
type ExecutionSample struct {
	Duration  time.Duration
	Success   bool
	Timestamp time.Time
}

// AgentStats is the aggregate view over an agent's recent executions.
type AgentStats struct {
	AgentID              string        `json:"agentId"`
	TotalExecutions      int           `json:"totalExecutions"`
	SuccessCount         int           `json:"successCount"`
	AverageExecutionTime time.Duration `json:"averageExecutionTime"`
	MinExecutionTime     time.Duration `json:"minExecutionTime"`
	MaxExecutionTime     time.Duration `json:"maxExecutionTime"`
}

// AgentMetrics keeps a rolling window of execution samples per agent.
// Aggregates are computed over the window only, so long-running processes
// reflect recent behavior rather than lifetime averages.
type AgentMetrics struct {
	mu      sync.RWMutex
	window  int
	buffers map[string]*CircularBuffer[ExecutionSample]
}

// NewAgentMetrics creates metrics with the given per-agent sample window.
func NewAgentMetrics(window int) *AgentMetrics {
	if window <= 0 {
		window = DefaultSampleWindow
	}
	return &AgentMetrics{
		window:  window,
		buffers: make(map[string]*CircularBuffer[ExecutionSample]),
	}
}

// Record stores one execution for the given agent.
func (m *AgentMetrics) Record(agentID string, duration time.Duration, success bool) {
	m.mu.Lock()
	buf, ok := m.buffers[agentID]
	if !ok {
		buf = NewCircularBuffer[ExecutionSample](m.window)
		m.buffers[agentID] = buf
	}
	m.mu.Unlock()

	buf.Add(ExecutionSample{
		Duration:  duration,
		Success:   success,
		Timestamp: time.Now(),
	})
}

// Stats aggregates the recent window for every known agent.
func (m *AgentMetrics) Stats() map[string]AgentStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]AgentStats, len(m.buffers))
	for agentID, buf := range m.buffers {
		samples := buf.Items()
		if len(samples) == 0 {
			continue
		}

		stats := AgentStats{
			AgentID:          agentID,
			TotalExecutions:  len(samples),
			MinExecutionTime: samples[0].Duration,
			MaxExecutionTime: samples[0].Duration,
		}
		var total time.Duration
		for _, s := range samples {
			total += s.Duration
			if s.Success {
				stats.SuccessCount++
			}
			if s.Duration < stats.MinExecutionTime {
				stats.MinExecutionTime = s.Duration
			}
			if s.Duration > stats.MaxExecutionTime {
				stats.MaxExecutionTime = s.Duration
			}
		}
		stats.AverageExecutionTime = total / time.Duration(len(samples))
		out[agentID] = stats
	}
	return out
}

// Reset drops all recorded samples.
func (m *AgentMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffers = make(map[string]*CircularBuffer[ExecutionSample])
}
