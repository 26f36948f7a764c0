package orchestrator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowContext_ScratchSetGet(t *testing.T) {
	wctx := &WorkflowContext{Query: "clearent support hours"}

	// Missing keys report absence, not a zero value hit
	_, ok := wctx.Get("expansion")
	assert.False(t, ok)

	wctx.Set("expansion", "clearent customer service hours")
	got, ok := wctx.Get("expansion")
	require.True(t, ok)
	assert.Equal(t, "clearent customer service hours", got)

	// Overwrites take the latest value
	wctx.Set("expansion", "clearent helpdesk hours")
	got, _ = wctx.Get("expansion")
	assert.Equal(t, "clearent helpdesk hours", got)
}

func TestWorkflowContext_ScratchConcurrentTasks(t *testing.T) {
	// The scratch map is shared by tasks running in parallel; concurrent
	// writers and readers must not race or lose writes.
	wctx := &WorkflowContext{}

	var wg sync.WaitGroup
	for _, key := range []string{"vector", "keyword", "ai-enhanced", "expansion"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wctx.Set(key, key+"-result")
			_, _ = wctx.Get("expansion")
		}()
	}
	wg.Wait()

	for _, key := range []string{"vector", "keyword", "ai-enhanced", "expansion"} {
		got, ok := wctx.Get(key)
		require.True(t, ok)
		assert.Equal(t, key+"-result", got)
	}
}
