package config

import (
	"sync"

	"github.com/hypernets/sequencer/pkg/log"
	"go.uber.org/zap"
)

// BaseConfigManager guards one configuration section. Sections are read
// by value so a running sequence never sees a half applied change.
type BaseConfigManager[T any] struct {
	mu   sync.RWMutex
	conf *T

	// keys replaced at runtime (command line, GPS), not from the file
	overrides []string

	mgr *Manager
}

// C returns a copy of the section
func (a *BaseConfigManager[T]) C() T {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return *a.conf
}

type ConfigModifierFunc[T any] func(c *T)

// Set modifies the section in place
func (a *BaseConfigManager[T]) Set(setFunc ConfigModifierFunc[T]) {
	a.mu.Lock()
	defer a.mu.Unlock()

	setFunc(a.conf)
}

// Override is Set for values that do not come from the config file, the
// key is remembered so the saved run configuration can be told apart.
func (a *BaseConfigManager[T]) Override(key, source string, setFunc ConfigModifierFunc[T]) {
	a.mu.Lock()
	defer a.mu.Unlock()

	setFunc(a.conf)
	for _, k := range a.overrides {
		if k == key {
			return
		}
	}
	a.overrides = append(a.overrides, key)
	log.Info("configuration value overridden", zap.String("key", key), zap.String("source", source))
}

// Overrides lists the keys changed through Override
func (a *BaseConfigManager[T]) Overrides() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.overrides...)
}

// overridden is Overrides without locking, for callers holding lock()
func (a *BaseConfigManager[T]) overridden() []string {
	return a.overrides
}

func (a *BaseConfigManager[T]) lock() {
	a.mu.Lock()
}

func (a *BaseConfigManager[T]) unlock() {
	a.mu.Unlock()
}
