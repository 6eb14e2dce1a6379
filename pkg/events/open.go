package events

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/darwin/pkg/config"
)

// Backend names accepted by Open.
const (
	BackendLog    = "log"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Open creates the emitter named by cfg.Backend.
func Open(ctx context.Context, cfg config.EventsConfig, logger *slog.Logger) (Emitter, error) {
	switch cfg.Backend {
	case BackendLog, "":
		return NewLogEmitter(logger), nil
	case BackendMemory:
		return NewMemoryEmitter(), nil
	case BackendRedis:
		return NewRedisEmitter(ctx, cfg.Redis, logger)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}
