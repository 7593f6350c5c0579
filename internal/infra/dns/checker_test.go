package dns

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/brandsentry/internal/infra/ratelimit"
)

func fastLimiter() *ratelimit.Limiter {
	return ratelimit.New("dns", ratelimit.Config{MaxConcurrent: 5, Interval: time.Millisecond, MaxPerInterval: 100})
}

func answerFor(types ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := r.URL.Query().Get("type")
		for _, want := range types {
			if t == want {
				fmt.Fprintf(w, `{"Status":0,"Answer":[{"name":%q,"type":2,"data":"ns1.example."}]}`, r.URL.Query().Get("name"))
				return
			}
		}
		fmt.Fprint(w, `{"Status":3}`)
	}
}

func TestIsRegistered_PositiveOnLaterRecordType(t *testing.T) {
	srv := httptest.NewServer(answerFor("NS"))
	defer srv.Close()

	c := NewChecker(Config{Providers: []string{srv.URL}}, fastLimiter(), srv.Client(), nil)
	ok, err := c.IsRegistered(context.Background(), "acm.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsRegistered_FallbackProvider(t *testing.T) {
	var primaryHits atomic.Int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		primaryHits.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer primary.Close()
	fallback := httptest.NewServer(answerFor("A"))
	defer fallback.Close()

	c := NewChecker(Config{Providers: []string{primary.URL, fallback.URL}}, fastLimiter(), http.DefaultClient, nil)
	ok, err := c.IsRegistered(context.Background(), "acm.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), primaryHits.Load())
}

func TestIsRegistered_AllNegative(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"Status":0,"Answer":[]}`)
	}))
	defer srv.Close()

	c := NewChecker(Config{Providers: []string{srv.URL, srv.URL}}, fastLimiter(), nil, nil)
	ok, err := c.IsRegistered(context.Background(), "nothing-here.com")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(len(RecordTypes)*2), hits.Load())
}

func TestIsRegistered_TimeoutIsNegative(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := NewChecker(Config{Providers: []string{srv.URL}, Timeout: 10 * time.Millisecond}, fastLimiter(), nil, nil)
	ok, err := c.IsRegistered(context.Background(), "slow.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsRegistered_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(answerFor("A"))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewChecker(Config{Providers: []string{srv.URL}}, fastLimiter(), nil, nil)
	_, err := c.IsRegistered(ctx, "acm.com")
	assert.ErrorIs(t, err, context.Canceled)
}
