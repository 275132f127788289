package gateway

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/consilium/internal/models"
)

// probePrompt is deliberately tiny: the probe only needs to prove the
// endpoint answers, not produce useful text
const probePrompt = "Reply with the single word: ok"

// prober refreshes provider health out of band so that the first real query
// after an outage does not pay full discovery cost. Only providers that are
// Unknown, or Down past the cooldown window, are probed; Healthy providers
// are left alone to avoid burning quota.
type prober struct {
	gateway *Gateway
	cron    *cron.Cron
	logger  arbor.ILogger
}

func newProber(g *Gateway, logger arbor.ILogger) *prober {
	return &prober{gateway: g, logger: logger}
}

func (p *prober) start(schedule string) error {
	p.cron = cron.New()
	if _, err := p.cron.AddFunc(schedule, func() {
		p.sweep(context.Background())
	}); err != nil {
		return err
	}
	p.cron.Start()

	p.logger.Debug().Str("schedule", schedule).Msg("Provider health prober started")
	return nil
}

func (p *prober) stop() {
	if p.cron != nil {
		p.cron.Stop()
	}
}

// sweep probes each eligible provider sequentially. Sequential on purpose:
// a probe storm against a recovering local model server would be worse than
// a stale health entry.
func (p *prober) sweep(ctx context.Context) {
	g := p.gateway
	cooldown := g.cfg.Cooldown

	for _, provider := range g.providers {
		spec := provider.Spec()
		entry := g.health[spec.ID]

		status, lastAttempt, _ := entry.snapshot()
		switch status {
		case models.HealthHealthy:
			continue
		case models.HealthDown, models.HealthDegraded:
			if cooldown > 0 && time.Since(lastAttempt) < cooldown {
				continue
			}
		}

		timeout := g.cfg.ProbeTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		_, err := provider.Complete(probeCtx, "", probePrompt)
		cancel()

		if err != nil {
			entry.set(models.HealthDown, sanitizeError(err))
			p.logger.Debug().
				Str("provider", spec.ID).
				Err(err).
				Msg("Health probe failed")
			continue
		}

		entry.set(models.HealthHealthy, "")
		p.logger.Info().
			Str("provider", spec.ID).
			Msg("Health probe succeeded, provider marked healthy")
	}
}
