package config

import "sync/atomic"

// Holder provides atomic access to the current config and supports
// re-reading the YAML file at runtime. A failed reload keeps the
// previous config.
type Holder struct {
	current  atomic.Pointer[Config]
	yamlPath string
}

// NewHolder wraps an already-loaded config.
func NewHolder(cfg *Config, yamlPath string) *Holder {
	h := &Holder{yamlPath: yamlPath}
	h.current.Store(cfg)
	return h
}

// Get returns the current config. The returned pointer must be treated
// as read-only.
func (h *Holder) Get() *Config {
	return h.current.Load()
}

// Reload re-reads the YAML file and environment, swapping in the new
// config only if it validates.
func (h *Holder) Reload() error {
	cfg, err := LoadFrom(h.yamlPath)
	if err != nil {
		return err
	}
	h.current.Store(cfg)
	return nil
}
