package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/embedsync/ai"
	"github.com/poiesic/embedsync/core"
	"github.com/poiesic/embedsync/rpc"
	"github.com/poiesic/embedsync/rpc/rpctest"
)

func newTestGateway(t *testing.T, srv *rpctest.Server, opts ...ai.ConfigOption) *Gateway {
	t.Helper()
	transport, err := rpc.NewHTTPTransport(srv.URL)
	require.NoError(t, err)

	base := []ai.ConfigOption{
		ai.WithHost(srv.URL),
		ai.WithComputeTimeout(2 * time.Second),
		ai.WithRetries(3, time.Millisecond),
		ai.WithWake(3, 2*time.Second, time.Millisecond),
		ai.WithProbeTimeout(time.Second),
	}
	return NewGateway(transport, ai.NewConfig(append(base, opts...)...))
}

func embedding(vec ...float32) map[string]any {
	return map[string]any{"embedding": vec}
}

func TestGateway_EmbedText(t *testing.T) {
	srv := rpctest.NewServer()
	defer srv.Close()

	var got string
	srv.Handle(FunctionEmbed, func(args []json.RawMessage) (any, error) {
		require.NoError(t, rpctest.DecodeArg(args, 0, &got))
		return embedding(0.1, 0.2, 0.3), nil
	})

	g := newTestGateway(t, srv)
	vec, err := g.EmbedText(context.Background(), "graph coloring")
	require.NoError(t, err)
	assert.Equal(t, core.Vector{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "graph coloring", got)
	assert.Equal(t, 1, srv.Calls(FunctionEmbed))
	assert.True(t, g.Awake())
}

func TestGateway_EmbedTextRetriesErrorField(t *testing.T) {
	srv := rpctest.NewServer()
	defer srv.Close()

	var n atomic.Int32
	srv.Handle(FunctionEmbed, func(args []json.RawMessage) (any, error) {
		if n.Add(1) == 1 {
			return map[string]any{"error": "model loading"}, nil
		}
		return embedding(1), nil
	})

	g := newTestGateway(t, srv)
	vec, err := g.EmbedText(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, core.Vector{1}, vec)
	assert.Equal(t, 2, srv.Calls(FunctionEmbed))
}

func TestGateway_EmbedTextRetriesStatusFailure(t *testing.T) {
	srv := rpctest.NewServer()
	defer srv.Close()

	var n atomic.Int32
	srv.Handle(FunctionEmbed, func(args []json.RawMessage) (any, error) {
		if n.Add(1) <= 2 {
			return nil, &rpctest.StatusFailure{Code: http.StatusServiceUnavailable}
		}
		return embedding(1, 2), nil
	})

	g := newTestGateway(t, srv)
	vec, err := g.EmbedText(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, core.Vector{1, 2}, vec)
	assert.Equal(t, 3, srv.Calls(FunctionEmbed))
}

func TestGateway_EmbedTextExhausted(t *testing.T) {
	srv := rpctest.NewServer()
	defer srv.Close()

	srv.Handle(FunctionEmbed, func(args []json.RawMessage) (any, error) {
		return map[string]any{"error": "quota exceeded"}, nil
	})

	g := newTestGateway(t, srv)
	_, err := g.EmbedText(context.Background(), "text")
	require.Error(t, err)

	var computeErr *ComputeError
	require.ErrorAs(t, err, &computeErr)
	assert.Equal(t, 4, computeErr.Attempts, "one call plus three retries")
	assert.ErrorIs(t, err, ai.ErrComputeFailed)
	assert.Contains(t, err.Error(), "quota exceeded")

	var fnErr *RemoteFunctionError
	require.ErrorAs(t, err, &fnErr)
	assert.Equal(t, FunctionEmbed, fnErr.Function)

	assert.Equal(t, 4, srv.Calls(FunctionEmbed))
	assert.False(t, g.Awake())
}

func TestGateway_EmbedTextEmptyVectorIsRetried(t *testing.T) {
	srv := rpctest.NewServer()
	defer srv.Close()

	srv.Handle(FunctionEmbed, func(args []json.RawMessage) (any, error) {
		return embedding(), nil
	})

	g := newTestGateway(t, srv, ai.WithRetries(1, time.Millisecond))
	_, err := g.EmbedText(context.Background(), "text")
	assert.ErrorIs(t, err, ai.ErrEmptyEmbedding)
	assert.Equal(t, 2, srv.Calls(FunctionEmbed))
}

func TestGateway_EmbedTextMalformedNotRetried(t *testing.T) {
	srv := rpctest.NewServer()
	defer srv.Close()

	srv.Handle(FunctionEmbed, func(args []json.RawMessage) (any, error) {
		return nil, &rpctest.RawStream{Body: "event: complete\n\n"}
	})

	g := newTestGateway(t, srv)
	_, err := g.EmbedText(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, rpc.IsMalformed(err))
	assert.ErrorIs(t, err, ai.ErrComputeFailed)
	assert.Equal(t, 1, srv.Calls(FunctionEmbed))
}

func TestGateway_EmbedTextUndecodablePayload(t *testing.T) {
	srv := rpctest.NewServer()
	defer srv.Close()

	srv.Handle(FunctionEmbed, func(args []json.RawMessage) (any, error) {
		return "not an object", nil
	})

	g := newTestGateway(t, srv)
	_, err := g.EmbedText(context.Background(), "text")
	assert.True(t, rpc.IsMalformed(err))
	assert.Equal(t, 1, srv.Calls(FunctionEmbed))
}

func TestGateway_EmbedTextCanceled(t *testing.T) {
	srv := rpctest.NewServer()
	defer srv.Close()

	srv.Handle(FunctionEmbed, func(args []json.RawMessage) (any, error) {
		return map[string]any{"error": "busy"}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := newTestGateway(t, srv)
	_, err := g.EmbedText(ctx, "text")
	assert.ErrorIs(t, err, context.Canceled)

	var computeErr *ComputeError
	assert.False(t, errors.As(err, &computeErr), "cancellation is not a compute failure")
}

func TestGateway_AttemptTimeoutEscalates(t *testing.T) {
	g := NewGateway(nil, ai.DefaultConfig())

	assert.Equal(t, 30*time.Second, g.attemptTimeout(0))
	assert.Equal(t, 45*time.Second, g.attemptTimeout(1))
	assert.Equal(t, 60*time.Second, g.attemptTimeout(2))
	assert.Equal(t, 75*time.Second, g.attemptTimeout(3))
}

func TestGateway_Alive(t *testing.T) {
	srv := rpctest.NewServer()
	defer srv.Close()

	g := newTestGateway(t, srv)
	assert.True(t, g.Alive(context.Background()))

	srv.SetHeadStatus(http.StatusServiceUnavailable)
	assert.False(t, g.Alive(context.Background()))
	assert.Equal(t, 2, srv.Probes())
}

func TestGateway_Wake(t *testing.T) {
	srv := rpctest.NewServer()
	defer srv.Close()

	var n atomic.Int32
	srv.Handle(FunctionEmbed, func(args []json.RawMessage) (any, error) {
		if n.Add(1) <= 2 {
			return nil, &rpctest.StatusFailure{Code: http.StatusBadGateway}
		}
		return embedding(1), nil
	})

	g := newTestGateway(t, srv)

	var statuses []string
	ok := g.Wake(context.Background(), func(s string) { statuses = append(statuses, s) })
	require.True(t, ok)
	assert.True(t, g.Awake())
	assert.Equal(t, 3, srv.Calls(FunctionEmbed))

	require.NotEmpty(t, statuses)
	assert.Equal(t, "Waking compute backend (attempt 1/3)", statuses[0])
	assert.Equal(t, "Compute backend is awake", statuses[len(statuses)-1])
}

func TestGateway_WakeErrorEventMeansAwake(t *testing.T) {
	srv := rpctest.NewServer()
	defer srv.Close()

	srv.Handle(FunctionEmbed, func(args []json.RawMessage) (any, error) {
		return nil, errors.New("input rejected")
	})

	g := newTestGateway(t, srv)
	assert.True(t, g.Wake(context.Background(), nil))
	assert.Equal(t, 1, srv.Calls(FunctionEmbed))
}

func TestGateway_WakeGivesUp(t *testing.T) {
	srv := rpctest.NewServer()
	defer srv.Close()

	srv.Handle(FunctionEmbed, func(args []json.RawMessage) (any, error) {
		return nil, &rpctest.StatusFailure{Code: http.StatusServiceUnavailable}
	})

	g := newTestGateway(t, srv)

	var statuses []string
	ok := g.Wake(context.Background(), func(s string) { statuses = append(statuses, s) })
	assert.False(t, ok)
	assert.Equal(t, 3, srv.Calls(FunctionEmbed))
	assert.Equal(t, "Compute backend is not responding", statuses[len(statuses)-1])
}

func TestGateway_WakeCoalesced(t *testing.T) {
	srv := rpctest.NewServer()
	defer srv.Close()

	srv.Handle(FunctionEmbed, func(args []json.RawMessage) (any, error) {
		time.Sleep(300 * time.Millisecond)
		return embedding(1), nil
	})

	g := newTestGateway(t, srv)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = g.Wake(context.Background(), nil)
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		assert.True(t, ok, "caller %d", i)
	}
	assert.Equal(t, 1, srv.Calls(FunctionEmbed))
}

func TestGateway_WakeSurvivesCanceledLeader(t *testing.T) {
	srv := rpctest.NewServer()
	defer srv.Close()

	started := make(chan struct{}, 1)
	srv.Handle(FunctionEmbed, func(args []json.RawMessage) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(300 * time.Millisecond)
		return embedding(1), nil
	})

	g := newTestGateway(t, srv)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leader := make(chan bool, 1)
	go func() { leader <- g.Wake(leaderCtx, nil) }()
	<-started

	follower := make(chan bool, 1)
	go func() { follower <- g.Wake(context.Background(), nil) }()

	cancelLeader()
	select {
	case ok := <-leader:
		assert.False(t, ok, "a canceled caller stops waiting")
	case <-time.After(time.Second):
		t.Fatal("canceled caller still blocked")
	}

	assert.True(t, <-follower, "the shared wake-up outlives the caller that started it")
	assert.True(t, g.Awake())
	assert.Equal(t, 1, srv.Calls(FunctionEmbed))
}
