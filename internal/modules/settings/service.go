package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/Larry-kang/GAS-Asset-Tracker/internal/cache"
	"github.com/rs/zerolog"
)

const (
	// PropertiesCacheKey holds the whole settings map in the two-tier cache
	PropertiesCacheKey = "GLOBAL_PROPERTIES_SET"
	propertiesTTL      = 30 * time.Minute
)

// Store is the durable side of settings
type Store interface {
	GetAll(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value string) error
}

// Service is the run-scoped settings accessor. The properties map is loaded
// once per run, from the cache when possible, and Set invalidates both the
// cached copy and the in-memory snapshot.
type Service struct {
	store    Store
	cache    *cache.Cache
	snapshot map[string]string
	log      zerolog.Logger
}

// NewService creates a settings service for one run
func NewService(store Store, c *cache.Cache, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		cache: c,
		log:   log.With().Str("service", "settings").Logger(),
	}
}

func (s *Service) properties(ctx context.Context) map[string]string {
	props, err := s.load(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load settings, using defaults")
		return map[string]string{}
	}
	return props
}

// load returns the properties map. A store failure is not cached, so the
// next read retries.
func (s *Service) load(ctx context.Context) (map[string]string, error) {
	if s.snapshot != nil {
		return s.snapshot, nil
	}

	var props map[string]string
	if s.cache != nil && s.cache.Get(ctx, PropertiesCacheKey, &props, false) && props != nil {
		s.snapshot = props
		return props, nil
	}

	props, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if props == nil {
		props = map[string]string{}
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, PropertiesCacheKey, props, propertiesTTL); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache settings")
		}
	}
	s.snapshot = props
	return props, nil
}

// Lookup returns the stored value for key and whether it is set. Unlike Get
// it reports a failure to read the settings instead of falling back.
func (s *Service) Lookup(ctx context.Context, key string) (string, bool, error) {
	props, err := s.load(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to read settings: %w", err)
	}
	v, ok := props[key]
	return v, ok && v != "", nil
}

// Get returns the value for key, or def when unset or empty
func (s *Service) Get(ctx context.Context, key, def string) string {
	if v, ok := s.properties(ctx)[key]; ok && v != "" {
		return v
	}
	return def
}

// GetFloat returns the numeric value for key, or def when unset or invalid
func (s *Service) GetFloat(ctx context.Context, key string, def float64) float64 {
	v, ok := s.properties(ctx)[key]
	if !ok || v == "" {
		return def
	}
	return parseFloat(s.log, key, v, def)
}

// GetBool returns the boolean value for key, or def when unset
func (s *Service) GetBool(ctx context.Context, key string, def bool) bool {
	v, ok := s.properties(ctx)[key]
	if !ok || v == "" {
		return def
	}
	return parseBool(v)
}

// All returns a copy of every setting
func (s *Service) All(ctx context.Context) map[string]string {
	props := s.properties(ctx)
	out := make(map[string]string, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

// Set writes key durably and invalidates the cached properties so the next
// read in this run observes the write.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if err := s.store.Set(ctx, key, value); err != nil {
		return err
	}
	s.snapshot = nil
	if s.cache != nil {
		s.cache.Remove(ctx, PropertiesCacheKey)
	}
	s.log.Info().Str("key", key).Msg("Setting updated")
	return nil
}
