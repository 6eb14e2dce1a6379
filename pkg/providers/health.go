package providers

import (
	"context"
	"time"
)

// StartHealthChecker starts a background goroutine that periodically checks
// the provider's health. It runs until the provider is closed or ctx is
// cancelled, and backs off while the provider is unhealthy.
func (p *HTTPProvider) StartHealthChecker(ctx context.Context) {
	p.checkerOnce.Do(func() {
		p.healthMu.Lock()
		p.checkerStarted = true
		p.healthMu.Unlock()
		go p.runHealthChecker(ctx)
	})
}

func (p *HTTPProvider) runHealthChecker(ctx context.Context) {
	defer close(p.healthCheckStopped)

	interval := p.config.HealthCheckInterval
	if interval == 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("health checker started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopHealthCheck:
			return
		case <-ticker.C:
			p.performHealthCheck(ctx)

			if !p.IsHealthy() {
				health := p.GetHealth()
				ticker.Reset(calculateBackoff(health.ConsecutiveFailures, interval))
			} else {
				ticker.Reset(interval)
			}
		}
	}
}

func (p *HTTPProvider) performHealthCheck(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := p.healthCheckImpl(checkCtx)
	latency := time.Since(start)

	if err != nil {
		p.updateHealth(false, err)
		p.logger.Error("health check failed", "error", err, "latency", latency)
		return
	}
	p.updateHealth(true, nil)
	p.logger.Debug("health check passed", "latency", latency)
}

// healthCheckImpl issues a GET against the base URL.
func (p *HTTPProvider) healthCheckImpl(ctx context.Context) error {
	headers := make(map[string]string)
	if p.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + p.config.APIKey
	}

	resp, err := p.DoRequest(ctx, "GET", p.config.BaseURL, nil, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// calculateBackoff returns the next check interval: base * 2^failures,
// capped at 10x base and 5 minutes.
func calculateBackoff(consecutiveFailures int, baseInterval time.Duration) time.Duration {
	if consecutiveFailures <= 0 {
		return baseInterval
	}

	multiplier := 1 << uint(consecutiveFailures)
	if multiplier > 10 {
		multiplier = 10
	}

	backoff := baseInterval * time.Duration(multiplier)
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	return backoff
}

// HealthCheck performs a synchronous health check.
func (p *HTTPProvider) HealthCheck(ctx context.Context) error {
	return p.healthCheckImpl(ctx)
}

// SetRetryBackoff overrides the initial retry delay. Intended for tests.
func (p *HTTPProvider) SetRetryBackoff(d time.Duration) {
	p.retryBackoff = d
}
