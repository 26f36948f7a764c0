package errors

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker("embeddings")

	assert.Equal(t, "embeddings", cb.Name())
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_OpensAtFailureThreshold(t *testing.T) {
	cb := NewCircuitBreaker("completions", WithMaxFailures(3), WithResetTimeout(time.Hour))

	// Given failures below the threshold the circuit stays closed
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())

	// When the threshold is reached the circuit opens
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("completions", WithMaxFailures(3))

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()

	assert.Equal(t, 0, cb.Failures())
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker("completions", WithMaxFailures(1), WithResetTimeout(10*time.Millisecond))

	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, StateHalfOpen, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_Execute(t *testing.T) {
	cb := NewCircuitBreaker("completions", WithMaxFailures(2), WithResetTimeout(time.Hour))
	boom := stderrors.New("provider down")

	// Failures through Execute trip the breaker
	require.Error(t, cb.Execute(func() error { return boom }))
	require.Error(t, cb.Execute(func() error { return boom }))
	require.Equal(t, StateOpen, cb.State())

	// Once open, the function is not invoked at all
	calls := 0
	err := cb.Execute(func() error {
		calls++
		return nil
	})
	assert.True(t, stderrors.Is(err, ErrCircuitOpen))
	assert.Equal(t, 0, calls)
}

func TestCircuitBreaker_HalfOpenProbeSuccessCloses(t *testing.T) {
	cb := NewCircuitBreaker("completions", WithMaxFailures(1), WithResetTimeout(10*time.Millisecond))

	require.Error(t, cb.Execute(func() error { return stderrors.New("down") }))
	time.Sleep(20 * time.Millisecond)

	// When the half-open probe succeeds the circuit closes again
	err := cb.Execute(func() error { return nil })

	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("completions", WithMaxFailures(1), WithResetTimeout(10*time.Millisecond))
	boom := stderrors.New("still down")

	require.Error(t, cb.Execute(func() error { return boom }))
	time.Sleep(20 * time.Millisecond)

	// When the half-open probe fails the circuit reopens
	err := cb.Execute(func() error { return boom })

	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestExecuteWithResult_ClosedPassesThrough(t *testing.T) {
	cb := NewCircuitBreaker("completions")

	got, err := ExecuteWithResult(cb, func() (string, error) {
		return "ok", nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecuteWithResult_OpenUsesFallback(t *testing.T) {
	cb := NewCircuitBreaker("completions", WithMaxFailures(1), WithResetTimeout(time.Hour))
	cb.RecordFailure()

	calls := 0
	got, err := ExecuteWithResult(cb, func() (string, error) {
		calls++
		return "live", nil
	}, func() (string, error) {
		return "cached", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "cached", got)
	assert.Equal(t, 0, calls)
}

func TestExecuteWithResult_OpenWithNilFallback(t *testing.T) {
	cb := NewCircuitBreaker("completions", WithMaxFailures(1), WithResetTimeout(time.Hour))
	cb.RecordFailure()

	got, err := ExecuteWithResult(cb, func() (int, error) {
		return 7, nil
	}, nil)

	assert.True(t, stderrors.Is(err, ErrCircuitOpen))
	assert.Equal(t, 0, got)
}

func TestExecuteWithResult_HalfOpenProbeFailureUsesFallback(t *testing.T) {
	cb := NewCircuitBreaker("completions", WithMaxFailures(1), WithResetTimeout(10*time.Millisecond))
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	got, err := ExecuteWithResult(cb, func() (string, error) {
		return "", stderrors.New("still down")
	}, func() (string, error) {
		return "fallback", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "fallback", got)
	assert.Equal(t, StateOpen, cb.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}
