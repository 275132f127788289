package gateway

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/interfaces"
	"github.com/ternarybob/consilium/internal/models"
)

// fakeProvider is a scriptable GenerationProvider for gateway tests
type fakeProvider struct {
	spec  models.ProviderSpec
	text  string
	err   error
	delay time.Duration
	calls atomic.Int64
}

func (f *fakeProvider) Spec() models.ProviderSpec { return f.spec }

func (f *fakeProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeProvider) Close() error { return nil }

func newFake(id string, priority int, text string, err error) *fakeProvider {
	return &fakeProvider{
		spec: models.ProviderSpec{ID: id, Priority: priority, Model: "test", Timeout: time.Second},
		text: text,
		err:  err,
	}
}

func newTestGateway(t *testing.T, chain ...interfaces.GenerationProvider) *Gateway {
	t.Helper()
	g, err := New(chain, nil, common.GatewayConfig{
		DefaultTimeout: time.Second,
		DownTimeout:    50 * time.Millisecond,
		Cooldown:       time.Minute,
	}, common.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g
}

func TestGenerate_FirstProviderSucceeds(t *testing.T) {
	p1 := newFake("p1", 0, "answer from p1", nil)
	p2 := newFake("p2", 1, "answer from p2", nil)
	g := newTestGateway(t, p1, p2)

	result, err := g.Generate(context.Background(), "system", "prompt")
	require.NoError(t, err)

	assert.Equal(t, "answer from p1", result.Text)
	assert.Equal(t, "p1", result.Provider)
	require.Len(t, result.Attempts, 1)
	assert.True(t, result.Attempts[0].Succeeded)

	// Lower-priority provider must not be touched once a higher one succeeds
	assert.Equal(t, int64(0), p2.calls.Load())
}

func TestGenerate_FallbackOnFailure(t *testing.T) {
	p1 := newFake("p1", 0, "", errors.New("connection refused"))
	p2 := newFake("p2", 1, "answer from p2", nil)
	p3 := newFake("p3", 2, "answer from p3", nil)
	g := newTestGateway(t, p1, p2, p3)

	result, err := g.Generate(context.Background(), "", "prompt")
	require.NoError(t, err)

	assert.Equal(t, "p2", result.Provider)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, "p1", result.Attempts[0].ProviderID)
	assert.False(t, result.Attempts[0].Succeeded)
	assert.Equal(t, "p2", result.Attempts[1].ProviderID)
	assert.True(t, result.Attempts[1].Succeeded)

	// No attempt beyond the first success
	assert.Equal(t, int64(0), p3.calls.Load())
}

func TestGenerate_AllProvidersFail(t *testing.T) {
	p1 := newFake("p1", 0, "", errors.New("boom 1"))
	p2 := newFake("p2", 1, "", errors.New("boom 2"))
	p3 := newFake("p3", 2, "", errors.New("boom 3"))
	g := newTestGateway(t, p1, p2, p3)

	result, err := g.Generate(context.Background(), "", "prompt")
	require.ErrorIs(t, err, models.ErrAllProvidersFailed)

	// One trail entry per configured provider, in priority order
	require.Len(t, result.Attempts, 3)
	assert.Equal(t, "p1", result.Attempts[0].ProviderID)
	assert.Equal(t, "p2", result.Attempts[1].ProviderID)
	assert.Equal(t, "p3", result.Attempts[2].ProviderID)
	for _, a := range result.Attempts {
		assert.False(t, a.Succeeded)
		assert.NotEmpty(t, a.Err)
	}
	assert.Empty(t, result.Text)
}

func TestGenerate_EmptyTextIsFailure(t *testing.T) {
	p1 := newFake("p1", 0, "", nil) // succeeds with empty output
	p2 := newFake("p2", 1, "real answer", nil)
	g := newTestGateway(t, p1, p2)

	result, err := g.Generate(context.Background(), "", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "p2", result.Provider)
	assert.Contains(t, result.Attempts[0].Err, "empty")
}

func TestGenerate_HealthTransitions(t *testing.T) {
	p1 := newFake("p1", 0, "", errors.New("transport error"))
	p2 := newFake("p2", 1, "ok", nil)
	g := newTestGateway(t, p1, p2)

	_, err := g.Generate(context.Background(), "", "prompt")
	require.NoError(t, err)

	health := g.Health()
	require.Len(t, health, 2)
	assert.Equal(t, "p1", health[0].ProviderID)
	assert.Equal(t, models.HealthDegraded, health[0].Status)
	assert.NotEmpty(t, health[0].LastError)
	assert.Equal(t, models.HealthHealthy, health[1].Status)
}

func TestGenerate_TimeoutMarksDownAndReducesNextTimeout(t *testing.T) {
	slow := &fakeProvider{
		spec:  models.ProviderSpec{ID: "slow", Priority: 0, Timeout: 100 * time.Millisecond},
		delay: time.Second,
		text:  "too late",
	}
	p2 := newFake("p2", 1, "fast answer", nil)
	g := newTestGateway(t, slow, p2)

	result, err := g.Generate(context.Background(), "", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "p2", result.Provider)

	assert.Equal(t, models.HealthDown, g.Health()[0].Status)

	// A Down provider gets the reduced probe budget on the next pass
	timeout := g.attemptTimeout(slow.Spec(), g.health["slow"])
	assert.Equal(t, 50*time.Millisecond, timeout)

	// And it is still attempted, so transient outages can self-heal
	start := time.Now()
	result, err = g.Generate(context.Background(), "", "prompt")
	require.NoError(t, err)
	assert.Equal(t, int64(2), slow.calls.Load())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestGenerate_CancellationStopsChain(t *testing.T) {
	p1 := &fakeProvider{
		spec:  models.ProviderSpec{ID: "p1", Priority: 0, Timeout: time.Second},
		delay: time.Second,
		text:  "slow",
	}
	p2 := newFake("p2", 1, "never reached", nil)
	g := newTestGateway(t, p1, p2)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := g.Generate(ctx, "", "prompt")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), p2.calls.Load())
}

func TestHealth_InitialStateUnknown(t *testing.T) {
	g := newTestGateway(t, newFake("p1", 0, "x", nil))

	health := g.Health()
	require.Len(t, health, 1)
	assert.Equal(t, models.HealthUnknown, health[0].Status)
}

func TestProber_SweepRecoversDownProvider(t *testing.T) {
	p1 := newFake("p1", 0, "", errors.New("down"))
	g, err := New([]interfaces.GenerationProvider{p1}, nil, common.GatewayConfig{
		DefaultTimeout: time.Second,
		ProbeTimeout:   time.Second,
	}, common.GetLogger())
	require.NoError(t, err)
	defer g.Close()

	_, err = g.Generate(context.Background(), "", "prompt")
	require.ErrorIs(t, err, models.ErrAllProvidersFailed)
	assert.Equal(t, models.HealthDegraded, g.Health()[0].Status)

	// Provider comes back; the sweep should mark it healthy again
	p1.err = nil
	p1.text = "ok"
	g.prober.sweep(context.Background())
	assert.Equal(t, models.HealthHealthy, g.Health()[0].Status)
}

func TestProber_SweepSkipsHealthy(t *testing.T) {
	p1 := newFake("p1", 0, "ok", nil)
	g := newTestGateway(t, p1)

	_, err := g.Generate(context.Background(), "", "prompt")
	require.NoError(t, err)
	calls := p1.calls.Load()

	g.prober.sweep(context.Background())
	assert.Equal(t, calls, p1.calls.Load(), "healthy provider must not be probed")
}
