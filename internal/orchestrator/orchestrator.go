package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jacc-ai/jacc-core/internal/cache"
	"github.com/jacc-ai/jacc-core/internal/search"
	"github.com/jacc-ai/jacc-core/internal/telemetry"
)

// TaskTimeouts sets the per-task-type execution deadlines.
type TaskTimeouts struct {
	Vector     time.Duration
	Keyword    time.Duration
	AIEnhanced time.Duration
	Expansion  time.Duration
}

// DefaultTaskTimeouts returns the standard deadlines. Keyword search is
// local storage work and gets the tightest budget; the AI-enhanced
// pipeline makes several LLM calls and gets the widest.
func DefaultTaskTimeouts() TaskTimeouts {
	return TaskTimeouts{
		Vector:     10 * time.Second,
		Keyword:    8 * time.Second,
		AIEnhanced: 20 * time.Second,
		Expansion:  15 * time.Second,
	}
}

// taskHandler executes one task type's work.
type taskHandler func(ctx context.Context, task AgentTask) (*TaskData, error)

// Orchestrator is the primary entry point of the retrieval core. One
// query fans out into four isolated agent tasks; whatever settles
// successfully feeds synthesis.
type Orchestrator struct {
	keyword     *search.KeywordEngine
	vector      *search.VectorEngine
	aiEnhanced  *search.AIEnhancedEngine
	enhancer    *search.QueryEnhancer
	synthesizer *Synthesizer
	responses   *cache.ResponseCache
	metrics     *telemetry.AgentMetrics
	timeouts    TaskTimeouts
	handlers    map[TaskType]taskHandler
	logger      *slog.Logger
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithResponseCache enables answer memoization.
func WithResponseCache(c *cache.ResponseCache) Option {
	return func(o *Orchestrator) { o.responses = c }
}

// WithMetrics sets the per-agent metrics collector.
func WithMetrics(m *telemetry.AgentMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTaskTimeouts overrides the per-task deadlines.
func WithTaskTimeouts(t TaskTimeouts) Option {
	return func(o *Orchestrator) { o.timeouts = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator. All four engines and the synthesizer are
// required; cache and metrics are optional.
func New(
	keyword *search.KeywordEngine,
	vector *search.VectorEngine,
	aiEnhanced *search.AIEnhancedEngine,
	enhancer *search.QueryEnhancer,
	synthesizer *Synthesizer,
	opts ...Option,
) (*Orchestrator, error) {
	if keyword == nil || vector == nil || aiEnhanced == nil || enhancer == nil || synthesizer == nil {
		return nil, search.ErrNilDependency
	}

	o := &Orchestrator{
		keyword:     keyword,
		vector:      vector,
		aiEnhanced:  aiEnhanced,
		enhancer:    enhancer,
		synthesizer: synthesizer,
		metrics:     telemetry.NewAgentMetrics(telemetry.DefaultSampleWindow),
		timeouts:    DefaultTaskTimeouts(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.handlers = map[TaskType]taskHandler{
		TaskVectorSearch: func(ctx context.Context, task AgentTask) (*TaskData, error) {
			results := o.vector.Search(ctx, task.Payload.Query, search.DefaultVectorTopK, task.Payload.Namespaces)
			return &TaskData{Results: results}, ctx.Err()
		},
		TaskKeywordSearch: func(ctx context.Context, task AgentTask) (*TaskData, error) {
			results := o.keyword.Search(ctx, task.Payload.Query)
			return &TaskData{Results: results}, ctx.Err()
		},
		TaskAIEnhancedSearch: func(ctx context.Context, task AgentTask) (*TaskData, error) {
			enhanced := o.aiEnhanced.Search(ctx, task.Payload.Query, task.Payload.Namespaces)
			return &TaskData{Enhanced: enhanced}, ctx.Err()
		},
		TaskQueryExpansion: func(ctx context.Context, task AgentTask) (*TaskData, error) {
			expansion := o.enhancer.Enhance(ctx, task.Payload.Query, task.Payload.UserID)
			return &TaskData{Expansion: &expansion}, ctx.Err()
		},
	}
	return o, nil
}

// OrchestrateSearch answers a query end to end. The only propagating
// error is a failed synthesis completion; every retrieval failure
// degrades to partial or empty results instead.
func (o *Orchestrator) OrchestrateSearch(ctx context.Context, wctx *WorkflowContext) (SynthesizedAnswer, error) {
	answer, _, err := o.OrchestrateSearchDetailed(ctx, wctx)
	return answer, err
}

// OrchestrateSearchDetailed additionally returns the settled per-task
// results for introspection.
func (o *Orchestrator) OrchestrateSearchDetailed(ctx context.Context, wctx *WorkflowContext) (SynthesizedAnswer, []AgentResult, error) {
	start := time.Now()

	if o.responses != nil {
		if raw, ok := o.responses.Get(wctx.Query); ok {
			var cached SynthesizedAnswer
			if err := json.Unmarshal(raw, &cached); err == nil {
				o.logger.Debug("cache hit", slog.String("query", wctx.Query))
				return cached, nil, nil
			}
		}
	}

	tasks := o.buildTasks(wctx)
	results := make([]AgentResult, len(tasks))

	// allSettled join: every branch returns nil so one failing task can
	// never cancel its siblings.
	g, gctx := errgroup.WithContext(ctx)
	for i, task := range tasks {
		g.Go(func() error {
			results[i] = o.runTask(gctx, task)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		o.metrics.Record(r.AgentID, r.Metadata.ExecutionTime, r.Status == StatusSuccess)
		if r.Status != StatusSuccess {
			o.logger.Warn("agent task settled without success",
				slog.String("agent", r.AgentID),
				slog.String("status", string(r.Status)),
				slog.String("error", r.Error))
		}
	}

	merged := mergeResults(results)
	if len(merged) == 0 {
		// Total retrieval failure or a genuinely unanswerable query;
		// either way an empty answer, not an error.
		return EmptyAnswer(), results, nil
	}

	answer, err := o.synthesizer.Synthesize(ctx, merged, wctx.Query, wctx.Format, wctx.MaxResults)
	if err != nil {
		return SynthesizedAnswer{}, results, err
	}

	if o.responses != nil {
		if raw, err := json.Marshal(answer); err == nil {
			o.responses.Set(wctx.Query, raw)
		}
	}

	o.logger.Info("search orchestrated",
		slog.String("query", wctx.Query),
		slog.Int("results", answer.SearchResultsCount),
		slog.Float64("confidence", answer.Confidence),
		slog.Duration("took", time.Since(start)))
	return answer, results, nil
}

// GetPerformanceStats exposes the rolling per-agent execution metrics.
func (o *Orchestrator) GetPerformanceStats() map[string]telemetry.AgentStats {
	return o.metrics.Stats()
}

// CacheStats exposes response cache statistics, nil without a cache.
func (o *Orchestrator) CacheStats() *cache.Stats {
	if o.responses == nil {
		return nil
	}
	stats := o.responses.GetStats()
	return &stats
}

func (o *Orchestrator) buildTasks(wctx *WorkflowContext) []AgentTask {
	payload := TaskPayload{
		Query:      wctx.Query,
		UserID:     wctx.UserID,
		Namespaces: wctx.Namespaces,
		MaxResults: wctx.MaxResults,
	}
	return []AgentTask{
		{ID: uuid.NewString(), Type: TaskVectorSearch, Priority: PriorityHigh, Timeout: o.timeouts.Vector, Payload: payload},
		{ID: uuid.NewString(), Type: TaskKeywordSearch, Priority: PriorityHigh, Timeout: o.timeouts.Keyword, Payload: payload},
		{ID: uuid.NewString(), Type: TaskAIEnhancedSearch, Priority: PriorityMedium, Timeout: o.timeouts.AIEnhanced, Payload: payload},
		{ID: uuid.NewString(), Type: TaskQueryExpansion, Priority: PriorityLow, Timeout: o.timeouts.Expansion, Payload: payload},
	}
}

type taskOutcome struct {
	data *TaskData
	err  error
}

// runTask executes one task under its own deadline and always settles to
// exactly one AgentResult. The handler runs in a separate goroutine so a
// hung handler is abandoned at the deadline instead of blocking the
// collect join.
func (o *Orchestrator) runTask(ctx context.Context, task AgentTask) AgentResult {
	start := time.Now()
	agentID := string(task.Type) + "-agent"

	taskCtx, cancel := context.WithTimeout(ctx, task.Timeout)
	defer cancel()

	done := make(chan taskOutcome, 1)
	go func() {
		data, err := o.execute(taskCtx, task)
		done <- taskOutcome{data: data, err: err}
	}()

	select {
	case out := <-done:
		elapsed := time.Since(start)
		if out.err != nil {
			return AgentResult{
				TaskID:   task.ID,
				AgentID:  agentID,
				Status:   StatusError,
				Error:    out.err.Error(),
				Metadata: ResultMeta{ExecutionTime: elapsed},
			}
		}
		return AgentResult{
			TaskID:  task.ID,
			AgentID: agentID,
			Status:  StatusSuccess,
			Data:    out.data,
			Metadata: ResultMeta{
				ExecutionTime: elapsed,
				Confidence:    taskConfidence(out.data),
			},
		}
	case <-taskCtx.Done():
		status := StatusTimeout
		if ctx.Err() != nil {
			status = StatusError
		}
		return AgentResult{
			TaskID:   task.ID,
			AgentID:  agentID,
			Status:   status,
			Error:    taskCtx.Err().Error(),
			Metadata: ResultMeta{ExecutionTime: time.Since(start)},
		}
	}
}

// execute dispatches a task to its registered handler. The registry is
// fixed and exhaustive; an unknown type is a programming defect and
// panics rather than settling as a runtime failure.
func (o *Orchestrator) execute(ctx context.Context, task AgentTask) (*TaskData, error) {
	handler, ok := o.handlers[task.Type]
	if !ok {
		panic(fmt.Sprintf("no handler registered for task type %q", task.Type))
	}
	return handler(ctx, task)
}

// taskConfidence scores a settled task's data. Array-shaped data scores
// by item quality; expansion data reports the classifier's own
// confidence.
func taskConfidence(data *TaskData) float64 {
	if data == nil {
		return 0
	}

	if data.Expansion != nil {
		if c := data.Expansion.Intent.Confidence; c > 0 {
			return c
		}
		return 0.7
	}

	items := data.Flatten()
	if len(items) == 0 {
		return 0.2
	}
	var sum float64
	for _, item := range items {
		score := item.Score
		if score == 0 {
			score = 0.5
		}
		sum += score
	}
	return min(sum/float64(len(items))+0.1, 1.0)
}

// mergeResults flattens successful task data into one candidate list,
// deduplicated by chunk id keeping the best score.
func mergeResults(results []AgentResult) []search.SearchResult {
	byID := make(map[string]int)
	var merged []search.SearchResult
	for _, r := range results {
		if r.Status != StatusSuccess || r.Data == nil {
			continue
		}
		for _, item := range r.Data.Flatten() {
			if idx, ok := byID[item.ID]; ok {
				if item.Score > merged[idx].Score {
					merged[idx] = item
				}
				continue
			}
			byID[item.ID] = len(merged)
			merged = append(merged, item)
		}
	}
	return merged
}
