package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestExecute_StaysClosedOnSuccess(t *testing.T) {
	cb := New("test")

	for i := 0; i < 10; i++ {
		err := cb.Execute(context.Background(), func(context.Context) error { return nil })
		require.NoError(t, err)
	}

	assert.True(t, cb.IsClosed())
	assert.Equal(t, 10, cb.Counts().TotalSuccesses)
}

func TestExecute_OpensAfterThreshold(t *testing.T) {
	cb := New("test", WithFailureThreshold(3))
	fail := func(context.Context) error { return errBoom }

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), fail)
	}

	assert.True(t, cb.IsOpen())

	err := cb.Execute(context.Background(), fail)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestExecute_SuccessResetsFailureCount(t *testing.T) {
	cb := New("test", WithFailureThreshold(3))

	_ = cb.Execute(context.Background(), func(context.Context) error { return errBoom })
	_ = cb.Execute(context.Background(), func(context.Context) error { return errBoom })
	_ = cb.Execute(context.Background(), func(context.Context) error { return nil })
	_ = cb.Execute(context.Background(), func(context.Context) error { return errBoom })

	assert.True(t, cb.IsClosed())
}

func TestExecute_HalfOpenRecovery(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithTimeout(10*time.Millisecond),
		WithMaxHalfOpenRequests(2),
	)

	_ = cb.Execute(context.Background(), func(context.Context) error { return errBoom })
	require.True(t, cb.IsOpen())

	time.Sleep(20 * time.Millisecond)

	// Two successes in half-open close the circuit
	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
	assert.True(t, cb.IsClosed())
}

func TestExecute_HalfOpenFailureReopens(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithTimeout(10*time.Millisecond),
	)

	_ = cb.Execute(context.Background(), func(context.Context) error { return errBoom })
	require.True(t, cb.IsOpen())

	time.Sleep(20 * time.Millisecond)

	_ = cb.Execute(context.Background(), func(context.Context) error { return errBoom })
	assert.True(t, cb.IsOpen())
}

func TestExecute_IsFailurePredicate(t *testing.T) {
	benign := errors.New("not found")
	cb := New("test",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, benign) }),
	)

	// Benign errors do not trip the breaker
	for i := 0; i < 5; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error { return benign })
	}
	assert.True(t, cb.IsClosed())

	_ = cb.Execute(context.Background(), func(context.Context) error { return errBoom })
	assert.True(t, cb.IsOpen())
}

func TestExecuteWithFallback(t *testing.T) {
	cb := New("test", WithFailureThreshold(1))

	_ = cb.Execute(context.Background(), func(context.Context) error { return errBoom })
	require.True(t, cb.IsOpen())

	fallbackCalled := false
	err := cb.ExecuteWithFallback(context.Background(),
		func(context.Context) error { return nil },
		func(err error) error {
			fallbackCalled = true
			return nil
		})

	require.NoError(t, err)
	assert.True(t, fallbackCalled)
}

func TestOnStateChange(t *testing.T) {
	type transition struct{ from, to State }
	var transitions []transition

	cb := New("test",
		WithFailureThreshold(1),
		WithTimeout(10*time.Millisecond),
		WithOnStateChange(func(name string, from, to State) {
			assert.Equal(t, "test", name)
			transitions = append(transitions, transition{from, to})
		}),
	)

	_ = cb.Execute(context.Background(), func(context.Context) error { return errBoom })
	time.Sleep(20 * time.Millisecond)
	_ = cb.Execute(context.Background(), func(context.Context) error { return nil })

	require.Len(t, transitions, 2)
	assert.Equal(t, transition{StateClosed, StateOpen}, transitions[0])
	assert.Equal(t, transition{StateOpen, StateHalfOpen}, transitions[1])
}

func TestReset(t *testing.T) {
	cb := New("test", WithFailureThreshold(1))

	_ = cb.Execute(context.Background(), func(context.Context) error { return errBoom })
	require.True(t, cb.IsOpen())

	cb.Reset()
	assert.True(t, cb.IsClosed())
	assert.Equal(t, Counts{}, cb.Counts())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
