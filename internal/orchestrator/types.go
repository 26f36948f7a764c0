// Package orchestrator coordinates the retrieval strategies: it fans a
// query out to independent agent tasks with per-task timeouts, collects
// every outcome, and synthesizes a cited answer from whatever succeeded.
package orchestrator

import (
	"sync"
	"time"

	"github.com/jacc-ai/jacc-core/internal/search"
)

// TaskType identifies a registered agent task handler.
type TaskType string

const (
	TaskVectorSearch     TaskType = "vector-search"
	TaskKeywordSearch    TaskType = "keyword-search"
	TaskAIEnhancedSearch TaskType = "ai-enhanced-search"
	TaskQueryExpansion   TaskType = "query-expansion-analysis"
)

// Priority is advisory scheduling metadata carried on tasks.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// TaskStatus is the settled outcome of a task.
type TaskStatus string

const (
	StatusSuccess TaskStatus = "success"
	StatusError   TaskStatus = "error"
	StatusTimeout TaskStatus = "timeout"
)

// TaskPayload is the input every task type consumes.
type TaskPayload struct {
	Query      string
	UserID     string
	Namespaces []string
	MaxResults int
}

// AgentTask is one independently schedulable unit of retrieval work.
type AgentTask struct {
	ID       string
	Type     TaskType
	Priority Priority
	Timeout  time.Duration
	Payload  TaskPayload
}

// TaskData is the tagged result union: exactly one field is populated,
// selected by the producing task's type.
type TaskData struct {
	Results   []search.SearchResult         // vector-search, keyword-search
	Enhanced  []search.EnhancedSearchResult // ai-enhanced-search
	Expansion *search.EnhancedQuery         // query-expansion-analysis
}

// Flatten maps the union into the canonical result shape. Expansion data
// carries no retrievable chunks and flattens to nothing.
func (d *TaskData) Flatten() []search.SearchResult {
	if d == nil {
		return nil
	}
	if len(d.Results) > 0 {
		return d.Results
	}
	out := make([]search.SearchResult, 0, len(d.Enhanced))
	for _, e := range d.Enhanced {
		out = append(out, e.SearchResult)
	}
	return out
}

// ResultMeta carries execution metadata for one settled task.
type ResultMeta struct {
	ExecutionTime time.Duration `json:"executionTime"`
	Confidence    float64       `json:"confidence"`
	Model         string        `json:"model,omitempty"`
}

// AgentResult is the settled outcome of one AgentTask. Exactly one is
// produced per dispatched task, failures included.
type AgentResult struct {
	TaskID   string     `json:"taskId"`
	AgentID  string     `json:"agentId"`
	Status   TaskStatus `json:"status"`
	Data     *TaskData  `json:"-"`
	Error    string     `json:"error,omitempty"`
	Metadata ResultMeta `json:"metadata"`
}

// Format preferences for the synthesized answer.
const (
	FormatDetailed = "detailed"
	FormatConcise  = "concise"
	FormatBullet   = "bullet"
)

// WorkflowContext is the per-request state threaded through one query's
// orchestration. The scratch map lets tasks share intermediate values
// within a single query; it is never reused across queries.
type WorkflowContext struct {
	UserID     string
	SessionID  string
	Query      string
	Namespaces []string
	Format     string
	MaxResults int

	mu      sync.Mutex
	scratch map[string]any
}

// Set stores a scratch value.
func (w *WorkflowContext) Set(key string, value any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.scratch == nil {
		w.scratch = make(map[string]any)
	}
	w.scratch[key] = value
}

// Get reads a scratch value.
func (w *WorkflowContext) Get(key string) (any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.scratch[key]
	return v, ok
}

// Attribution is one source citation, built independently of the LLM so
// citations never depend on the model echoing them correctly.
type Attribution struct {
	DocumentName string  `json:"documentName"`
	Relevance    float64 `json:"relevance"`
	Link         string  `json:"link,omitempty"`
}

// SynthesizedAnswer is the final orchestration output.
type SynthesizedAnswer struct {
	Response           string        `json:"response"`
	Sources            []Attribution `json:"sources"`
	Confidence         float64       `json:"confidence"`
	SearchResultsCount int           `json:"searchResultsCount"`
}
