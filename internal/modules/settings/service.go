package settings

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// cacheTTL bounds how stale a cached read may be: short enough that a single
// scoring cycle (hot tick ~10s) observes a consistent configuration snapshot,
// per SPEC_FULL.md §4.1 ("Reads are cached in-process for a short TTL <=5s").
const cacheTTL = 5 * time.Second

type cacheEntry struct {
	value     string
	fetchedAt time.Time
}

// Service wraps Repository with an in-process, process-wide TTL cache. It is
// the "explicit singleton passed into constructors" the teacher's design
// notes call for, so tests can build isolated copies instead of touching a
// shared global.
type Service struct {
	repo *Repository
	log  zerolog.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewService builds a cached settings service over repo.
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo:  repo,
		log:   log.With().Str("component", "settings_service").Logger(),
		cache: make(map[string]cacheEntry),
	}
}

func (s *Service) cachedGet(key string) (string, bool, bool) {
	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()
	if !ok || time.Since(entry.fetchedAt) > cacheTTL {
		return "", false, false
	}
	return entry.value, true, true
}

func (s *Service) store(key, value string) {
	s.mu.Lock()
	s.cache[key] = cacheEntry{value: value, fetchedAt: time.Now()}
	s.mu.Unlock()
}

func (s *Service) invalidate(key string) {
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
}

// GetFloat returns a cached, typed float setting, falling back to the
// caller's defaultValue when the key is unset, unparsable or unreadable.
func (s *Service) GetFloat(key string, defaultValue float64) float64 {
	if cached, found, _ := s.cachedGet(key); found {
		if f, ok := parseFloatOrDefault(cached, defaultValue); ok {
			return f
		}
	}
	v, err := s.repo.GetFloat(key, defaultValue)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("settings read failed, using default")
		return defaultValue
	}
	s.store(key, formatFloat(v))
	return v
}

// GetInt returns a cached, typed int setting.
func (s *Service) GetInt(key string, defaultValue int) int {
	if cached, found, _ := s.cachedGet(key); found {
		if i, ok := parseIntOrDefault(cached, defaultValue); ok {
			return i
		}
	}
	v, err := s.repo.GetInt(key, defaultValue)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("settings read failed, using default")
		return defaultValue
	}
	s.store(key, strconv.Itoa(v))
	return v
}

// GetBool returns a cached, typed bool setting.
func (s *Service) GetBool(key string, defaultValue bool) bool {
	if cached, found, _ := s.cachedGet(key); found {
		if b, ok := parseBoolOrDefault(cached, defaultValue); ok {
			return b
		}
	}
	v, err := s.repo.GetBool(key, defaultValue)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("settings read failed, using default")
		return defaultValue
	}
	s.store(key, strconv.FormatBool(v))
	return v
}

// GetString returns a cached string setting.
func (s *Service) GetString(key string, defaultValue string) string {
	if cached, found, _ := s.cachedGet(key); found {
		return cached
	}
	v, err := s.repo.Get(key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("settings read failed, using default")
		return defaultValue
	}
	if v == nil {
		return defaultValue
	}
	s.store(key, *v)
	return *v
}

// Set validates and persists a setting, invalidating its cache entry. Negative
// thresholds are rejected for keys known to require non-negative values; the
// reader then continues to observe the prior cached value (or default).
func (s *Service) Set(key, value string) error {
	if err := s.validate(key, value); err != nil {
		s.log.Warn().Err(err).Str("key", key).Str("value", value).Msg("rejected invalid setting")
		return err
	}
	if err := s.repo.Set(key, value, descriptionFor(key)); err != nil {
		return err
	}
	s.invalidate(key)
	return nil
}

// GetAll returns every known setting, typed, for the read-only settings echo
// endpoint (§4.13). Unset keys fall back to their documented default.
func (s *Service) GetAll() map[string]interface{} {
	out := make(map[string]interface{}, len(SettingDefaults))
	for key, def := range SettingDefaults {
		switch v := def.(type) {
		case string:
			out[key] = s.GetString(key, v)
		case bool:
			out[key] = s.GetBool(key, v)
		case int:
			out[key] = s.GetInt(key, v)
		case float64:
			out[key] = s.GetFloat(key, v)
		}
	}
	return out
}

func descriptionFor(key string) *string {
	if d, ok := SettingDescriptions[key]; ok {
		return &d
	}
	return nil
}

func formatFloat(f float64) string {
	return trimTrailingZeros(f)
}
