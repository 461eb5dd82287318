package utils

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Circuit Breaker Tests

func testBreaker(minRequests uint32, timeout time.Duration) *CircuitBreaker {
	return NewCircuitBreaker("test", BreakerSettings{
		MinRequests:  minRequests,
		MaxProbes:    1,
		Interval:     time.Minute,
		Timeout:      timeout,
		FailureRatio: 0.6,
	})
}

func fail(context.Context) error    { return errors.New("failure") }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_NewCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker("paystack", BreakerSettings{})

	d := DefaultBreakerSettings()
	assert.Equal(t, "paystack", cb.Name())
	assert.Equal(t, d.MinRequests, cb.minRequests)
	assert.Equal(t, d.MaxProbes, cb.maxProbes)
	assert.Equal(t, d.Interval, cb.interval)
	assert.Equal(t, d.Timeout, cb.timeout)
	assert.Equal(t, d.FailureRatio, cb.failureRatio)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_ExecuteSuccess(t *testing.T) {
	cb := testBreaker(5, time.Minute)

	err := cb.Execute(context.Background(), succeed)

	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(1), cb.counts.Requests)
	assert.Equal(t, uint32(1), cb.counts.TotalSuccesses)
	assert.Equal(t, uint32(0), cb.counts.TotalFailures)
}

func TestCircuitBreaker_ExecuteFailurePassesErrorThrough(t *testing.T) {
	cb := testBreaker(5, time.Minute)
	expected := errors.New("gateway down")

	err := cb.Execute(context.Background(), func(context.Context) error { return expected })

	assert.ErrorIs(t, err, expected)
	assert.Equal(t, uint32(1), cb.counts.TotalFailures)
}

func TestCircuitBreaker_ClosedToOpen(t *testing.T) {
	cb := testBreaker(5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, cb.Execute(ctx, succeed))
	}
	for i := 0; i < 3; i++ {
		assert.Error(t, cb.Execute(ctx, fail))
	}

	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(ctx, func(context.Context) error {
		t.Fatal("request must not run while the circuit is open")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_OpenToHalfOpenToClosed(t *testing.T) {
	cb := testBreaker(2, 50*time.Millisecond)
	ctx := context.Background()

	cb.Execute(ctx, fail)
	cb.Execute(ctx, fail)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := testBreaker(2, 50*time.Millisecond)
	ctx := context.Background()

	cb.Execute(ctx, fail)
	cb.Execute(ctx, fail)
	time.Sleep(80 * time.Millisecond)

	assert.Error(t, cb.Execute(ctx, fail))
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	cb := testBreaker(2, 50*time.Millisecond)
	ctx := context.Background()

	cb.Execute(ctx, fail)
	cb.Execute(ctx, fail)
	time.Sleep(80 * time.Millisecond)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrTooManyRequests)
	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_CancelledCallIsNotAFailure(t *testing.T) {
	cb := testBreaker(1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(0), cb.counts.Requests)
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker("concurrent-test", BreakerSettings{MinRequests: 1000})
	ctx := context.Background()

	var wg sync.WaitGroup
	numGoroutines := 100
	successCount := 0
	mu := sync.Mutex{}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			err := cb.Execute(ctx, func(context.Context) error {
				time.Sleep(time.Millisecond)
				if id%10 == 0 {
					return errors.New("simulated failure")
				}
				return nil
			})

			if err == nil {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()

	assert.Equal(t, 90, successCount)
	assert.Equal(t, uint32(numGoroutines), cb.counts.Requests)
}

func TestCircuitBreaker_PanicRecovery(t *testing.T) {
	cb := testBreaker(5, time.Minute)
	ctx := context.Background()

	assert.Panics(t, func() {
		cb.Execute(ctx, func(context.Context) error {
			panic("test panic")
		})
	})

	assert.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, uint32(1), cb.counts.TotalFailures)
}

func TestCircuitBreaker_ReadyToTrip(t *testing.T) {
	cb := testBreaker(10, time.Minute)

	tests := []struct {
		name           string
		requests       uint32
		failures       uint32
		failureRatio   float64
		expectedResult bool
	}{
		{"Not enough requests", 5, 5, 0.5, false},
		{"High failure ratio", 10, 8, 0.6, true},
		{"Low failure ratio", 10, 3, 0.6, false},
		{"Exact failure ratio threshold", 10, 6, 0.6, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb.failureRatio = tt.failureRatio
			cb.counts.Requests = tt.requests
			cb.counts.TotalFailures = tt.failures

			assert.Equal(t, tt.expectedResult, cb.readyToTrip())
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}

// Random Tests

func TestGenerateDigits(t *testing.T) {
	for _, n := range []int{1, 7, 64} {
		code, err := GenerateDigits(n)
		require.NoError(t, err)
		assert.Len(t, code, n)
		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9', "unexpected character %q", c)
		}
	}
}

func TestGenerateDigits_InvalidLength(t *testing.T) {
	_, err := GenerateDigits(0)
	assert.Error(t, err)
}

func TestGenerateDigits_CoversAllDigits(t *testing.T) {
	seen := map[rune]bool{}
	for i := 0; i < 200 && len(seen) < 10; i++ {
		code, err := GenerateDigits(7)
		require.NoError(t, err)
		for _, c := range code {
			seen[c] = true
		}
	}
	assert.Len(t, seen, 10)
}

// Redis Client Tests

func TestRedisHealthCheck_Success(t *testing.T) {
	db, mock := redismock.NewClientMock()

	mock.ExpectPing().SetVal("PONG")

	err := RedisHealthCheck(context.Background(), db)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisHealthCheck_Failure(t *testing.T) {
	db, mock := redismock.NewClientMock()

	mock.ExpectPing().SetErr(errors.New("connection failed"))

	err := RedisHealthCheck(context.Background(), db)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis health check failed")
	assert.Contains(t, err.Error(), "connection failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func BenchmarkCircuitBreaker_Execute_Success(b *testing.B) {
	cb := NewCircuitBreaker("benchmark", BreakerSettings{})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cb.Execute(ctx, succeed)
	}
}

func BenchmarkGenerateDigits(b *testing.B) {
	for i := 0; i < b.N; i++ {
		GenerateDigits(7)
	}
}
