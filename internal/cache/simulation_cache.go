package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"growth-screener/internal/montecarlo"
)

const (
	// PrefixSimulation keys a Monte Carlo result by symbol and input fingerprint.
	PrefixSimulation = "sim:%s:%s"

	DefaultSimulationTTL = time.Hour
)

// SimulationKey fingerprints the inputs that determine a simulation result.
// Workers and BatchSize are excluded; they do not change the output.
func SimulationKey(symbol string, closes []float64, cfg montecarlo.Config) string {
	h := sha256.New()
	buf := make([]byte, 8)
	writeUint := func(v uint64) {
		binary.LittleEndian.PutUint64(buf, v)
		h.Write(buf)
	}

	writeUint(uint64(len(closes)))
	for _, c := range closes {
		writeUint(math.Float64bits(c))
	}
	writeUint(uint64(cfg.HorizonDays))
	writeUint(uint64(cfg.PathCount))
	writeUint(uint64(cfg.Seed))
	writeUint(uint64(cfg.MinObservations))
	writeUint(uint64(len(cfg.Percentiles)))
	for _, p := range cfg.Percentiles {
		writeUint(math.Float64bits(p))
	}

	return fmt.Sprintf(PrefixSimulation, strings.ToUpper(symbol), hex.EncodeToString(h.Sum(nil)))
}

// SimulationCache memoises deterministic Monte Carlo results. A nil service
// disables caching.
type SimulationCache struct {
	svc    *CacheService
	ttl    time.Duration
	logger zerolog.Logger
}

// NewSimulationCache creates a simulation cache. ttl <= 0 selects
// DefaultSimulationTTL.
func NewSimulationCache(svc *CacheService, ttl time.Duration, logger zerolog.Logger) *SimulationCache {
	if ttl <= 0 {
		ttl = DefaultSimulationTTL
	}
	return &SimulationCache{
		svc:    svc,
		ttl:    ttl,
		logger: logger.With().Str("component", "simulation_cache").Logger(),
	}
}

// GetOrCompute returns the cached result for key, or runs compute and caches
// its result. Cache failures never fail the call. The bool reports a hit.
func (c *SimulationCache) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (*montecarlo.Result, error)) (*montecarlo.Result, bool, error) {
	if c == nil || c.svc == nil {
		res, err := compute(ctx)
		return res, false, err
	}

	var cached montecarlo.Result
	err := c.svc.GetJSON(ctx, key, &cached)
	switch {
	case err == nil:
		return &cached, true, nil
	case errors.Is(err, ErrCorruptEntry):
		c.logger.Warn().Err(err).Str("key", key).Msg("Discarding unreadable cache entry")
		_ = c.svc.Delete(ctx, key)
	case !errors.Is(err, ErrCacheMiss) && !errors.Is(err, ErrCacheUnavailable):
		c.logger.Debug().Err(err).Str("key", key).Msg("Cache lookup failed")
	}

	res, err := compute(ctx)
	if err != nil {
		return nil, false, err
	}

	if err := c.svc.SetJSON(ctx, key, res, c.ttl); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("Failed to cache simulation")
	}
	return res, false, nil
}
