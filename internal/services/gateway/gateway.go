package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/interfaces"
	"github.com/ternarybob/consilium/internal/models"
)

// Gateway executes generation against an ordered provider chain with
// automatic failover. The chain and its priority order are immutable after
// construction; per-provider health entries are the only mutable state and
// are guarded individually, so concurrent queries never contend on a global
// lock.
type Gateway struct {
	providers []interfaces.GenerationProvider // strictly ascending priority
	health    map[string]*healthEntry         // keyed by provider id, map itself immutable
	limiters  map[string]*rate.Limiter        // nil entry = unthrottled
	cfg       common.GatewayConfig
	logger    arbor.ILogger
	prober    *prober
}

// healthEntry holds the mutable health state for one provider
type healthEntry struct {
	mu          sync.Mutex
	status      models.HealthStatus
	lastAttempt time.Time
	lastError   string
}

func (e *healthEntry) snapshot() (models.HealthStatus, time.Time, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, e.lastAttempt, e.lastError
}

func (e *healthEntry) set(status models.HealthStatus, errMsg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = status
	e.lastAttempt = time.Now()
	e.lastError = errMsg
}

// New creates a gateway over the given provider chain. Providers must be
// supplied in priority order (providers.BuildChain guarantees this).
func New(chain []interfaces.GenerationProvider, configs []common.ProviderConfig, cfg common.GatewayConfig, logger arbor.ILogger) (*Gateway, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("gateway requires at least one provider")
	}

	g := &Gateway{
		providers: chain,
		health:    make(map[string]*healthEntry, len(chain)),
		limiters:  make(map[string]*rate.Limiter, len(chain)),
		cfg:       cfg,
		logger:    logger,
	}

	rateLimits := make(map[string]time.Duration, len(configs))
	for _, c := range configs {
		rateLimits[c.ID] = c.RateLimit
	}

	for _, p := range chain {
		id := p.Spec().ID
		g.health[id] = &healthEntry{status: models.HealthUnknown}
		if interval := rateLimits[id]; interval > 0 {
			g.limiters[id] = rate.NewLimiter(rate.Every(interval), 1)
		}
	}

	g.prober = newProber(g, logger)
	if cfg.ProbeSchedule != "" {
		if err := g.prober.start(cfg.ProbeSchedule); err != nil {
			return nil, fmt.Errorf("failed to start health prober: %w", err)
		}
	}
	if cfg.ProbeOnStartup {
		go g.prober.sweep(context.Background())
	}

	logger.Info().
		Int("providers", len(chain)).
		Str("first", chain[0].Spec().ID).
		Msg("Provider gateway initialized")

	return g, nil
}

// Generate iterates providers strictly in priority order and returns the
// first success. A provider's failure is recorded on its health entry and on
// the attempt trail, then the next provider is tried. When every provider
// fails the result carries the full trail and the error wraps
// models.ErrAllProvidersFailed. The gateway never fabricates a response.
func (g *Gateway) Generate(ctx context.Context, systemPrompt, prompt string) (*models.GenerationResult, error) {
	result := &models.GenerationResult{}

	for _, provider := range g.providers {
		spec := provider.Spec()
		entry := g.health[spec.ID]

		// Caller cancellation stops the chain immediately: no further attempts
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if limiter := g.limiters[spec.ID]; limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return result, err
			}
		}

		timeout := g.attemptTimeout(spec, entry)
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)

		start := time.Now()
		text, err := provider.Complete(attemptCtx, systemPrompt, prompt)
		elapsed := time.Since(start)
		cancel()

		if err == nil && text != "" {
			entry.set(models.HealthHealthy, "")
			result.Attempts = append(result.Attempts, models.Attempt{
				ProviderID: spec.ID,
				Elapsed:    elapsed,
				Succeeded:  true,
			})
			result.Text = text
			result.Provider = spec.ID

			g.logger.Debug().
				Str("provider", spec.ID).
				Dur("elapsed", elapsed).
				Int("attempts", len(result.Attempts)).
				Msg("Generation succeeded")
			return result, nil
		}

		if err == nil {
			err = &models.ProviderError{ProviderID: spec.ID, Kind: models.ProviderErrInvalidOutput,
				Cause: fmt.Errorf("provider returned empty text")}
		}

		// Caller-initiated cancellation is not a provider failure
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		status := models.HealthDegraded
		if errors.Is(err, context.DeadlineExceeded) {
			status = models.HealthDown
		}
		safeErr := sanitizeError(err)
		entry.set(status, safeErr)

		result.Attempts = append(result.Attempts, models.Attempt{
			ProviderID: spec.ID,
			Err:        safeErr,
			Elapsed:    elapsed,
		})

		g.logger.Warn().
			Str("provider", spec.ID).
			Str("status", string(status)).
			Dur("elapsed", elapsed).
			Err(err).
			Msg("Provider attempt failed, falling back")
	}

	g.logger.Error().
		Int("attempts", len(result.Attempts)).
		Msg("All providers failed")

	return result, fmt.Errorf("%w after %d attempts", models.ErrAllProvidersFailed, len(result.Attempts))
}

// attemptTimeout returns the per-attempt deadline for a provider. A provider
// marked Down gets the reduced timeout so a likely-dead endpoint cannot burn
// the latency budget, while still being attempted so transient outages
// self-heal.
func (g *Gateway) attemptTimeout(spec models.ProviderSpec, entry *healthEntry) time.Duration {
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = g.cfg.DefaultTimeout
	}

	status, _, _ := entry.snapshot()
	if status == models.HealthDown && g.cfg.DownTimeout > 0 && g.cfg.DownTimeout < timeout {
		return g.cfg.DownTimeout
	}
	return timeout
}

// Health returns a consistent point-in-time snapshot of every provider's
// health entry, in priority order
func (g *Gateway) Health() []models.ProviderHealth {
	out := make([]models.ProviderHealth, 0, len(g.providers))
	for _, p := range g.providers {
		spec := p.Spec()
		status, lastAttempt, lastErr := g.health[spec.ID].snapshot()
		out = append(out, models.ProviderHealth{
			ProviderID:  spec.ID,
			Priority:    spec.Priority,
			Status:      status,
			LastAttempt: lastAttempt,
			LastError:   lastErr,
		})
	}
	return out
}

// Close stops the prober and shuts down all providers
func (g *Gateway) Close() error {
	g.prober.stop()
	var firstErr error
	for _, p := range g.providers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// sanitizeError produces a display-safe error string: bounded length, no
// header or credential material that some SDK errors embed
func sanitizeError(err error) string {
	msg := err.Error()
	const maxLen = 300
	if len(msg) > maxLen {
		msg = msg[:maxLen] + "..."
	}
	return msg
}
