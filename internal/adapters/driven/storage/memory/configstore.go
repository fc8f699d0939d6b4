package memory

import (
	"slices"
	"sync"
	"time"

	"github.com/custodia-labs/webrage/internal/adapters/driven/config/configvalue"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps settings in a map for tests and --ephemeral runs that
// must not touch the disk. Save and Load do nothing.
type ConfigStore struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewConfigStore returns an empty store, optionally seeded with values.
func NewConfigStore(seed ...map[string]any) *ConfigStore {
	s := &ConfigStore{values: make(map[string]any)}
	for _, m := range seed {
		for k, v := range m {
			s.values[k] = v
		}
	}
	return s
}

func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	return val, ok
}

func (s *ConfigStore) value(key string) any {
	v, _ := s.Get(key)
	return v
}

func (s *ConfigStore) GetString(key string) string {
	return configvalue.String(s.value(key))
}

func (s *ConfigStore) GetInt(key string) int {
	return configvalue.Int(s.value(key))
}

func (s *ConfigStore) GetFloat(key string) float64 {
	return configvalue.Float(s.value(key))
}

func (s *ConfigStore) GetBool(key string) bool {
	return configvalue.Bool(s.value(key))
}

func (s *ConfigStore) GetDuration(key string) time.Duration {
	return configvalue.Duration(s.value(key))
}

// Set rejects keys the file store could not write as TOML tables, so
// ephemeral runs fail the same way persisted ones do.
func (s *ConfigStore) Set(key string, value any) error {
	if err := configvalue.ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}

// Keys returns every stored key in sorted order.
func (s *ConfigStore) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

func (s *ConfigStore) Save() error {
	return nil
}

func (s *ConfigStore) Load() error {
	return nil
}

func (s *ConfigStore) Path() string {
	return ":memory:"
}
