package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/polyscope/polyscope/pkg/types"
)

func newTestBreaker(t *testing.T, threshold int, cooldown time.Duration) *Breaker {
	t.Helper()
	b, err := NewBreaker(&BreakerConfig{
		Threshold: threshold,
		Cooldown:  cooldown,
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)
	return b
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	b := newTestBreaker(t, 3, time.Minute)

	b.RecordFailure(now)
	b.RecordFailure(now)
	assert.True(t, b.Allow(now), "below threshold stays closed")

	b.RecordFailure(now)
	assert.False(t, b.Allow(now), "threshold reached opens the circuit")
	assert.False(t, b.Allow(now.Add(59*time.Second)), "still inside cooldown")
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	b := newTestBreaker(t, 1, time.Minute)

	b.RecordFailure(now)
	require.False(t, b.Allow(now))

	after := now.Add(time.Minute)
	assert.True(t, b.Allow(after), "cooldown elapsed admits one probe")
	assert.False(t, b.Allow(after), "only one probe at a time")

	b.RecordSuccess()
	assert.True(t, b.Allow(after), "successful probe closes the circuit")
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	b := newTestBreaker(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		b.RecordFailure(now)
	}
	after := now.Add(time.Minute)
	require.True(t, b.Allow(after))

	b.RecordFailure(after)
	assert.False(t, b.Allow(after.Add(30*time.Second)), "failed probe restarts the cooldown")
	assert.True(t, b.Allow(after.Add(time.Minute)))
}

func TestBreakerSuccessResetsFailureRun(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	b := newTestBreaker(t, 3, time.Minute)

	b.RecordFailure(now)
	b.RecordFailure(now)
	b.RecordSuccess()
	b.RecordFailure(now)
	b.RecordFailure(now)
	assert.True(t, b.Allow(now), "non-consecutive failures never open the circuit")
}

func TestNewBreakerValidation(t *testing.T) {
	_, err := NewBreaker(nil)
	assert.Error(t, err)

	_, err = NewBreaker(&BreakerConfig{Threshold: 0, Cooldown: time.Minute, Logger: zap.NewNop()})
	assert.Error(t, err)

	_, err = NewBreaker(&BreakerConfig{Threshold: 3, Cooldown: 0, Logger: zap.NewNop()})
	assert.Error(t, err)

	_, err = NewBreaker(&BreakerConfig{Threshold: 3, Cooldown: time.Minute})
	assert.Error(t, err)
}

func TestClientRejectsWhileCircuitOpen(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(&Config{
		GammaURL: server.URL,
		ClobURL:  server.URL,
		Retry: RetryPolicy{
			MaxAttempts: 2,
			BaseDelay:   time.Millisecond,
			MaxDelay:    time.Millisecond,
		},
		BreakerThreshold: 1,
		BreakerCooldown:  time.Hour,
		Logger:           zap.NewNop(),
	})
	require.NoError(t, err)

	_, err = client.FetchBook(context.Background(), "token-1")
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load(), "exhausted retries open the circuit")

	_, err = client.FetchBook(context.Background(), "token-1")
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load(), "open circuit rejects without a request")

	var ue *types.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, types.ErrKindBreaker, ue.Kind)
	assert.False(t, types.IsRetryable(err))
}
