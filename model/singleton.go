package model

import "sync"

// Global registry instance and initialization guard.
var (
	globalRegistry *Registry
	globalOnce     sync.Once
)

// Global returns the process-wide registry, creating a default one on
// first use.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewDefaultRegistry()
	})
	return globalRegistry
}

// InitGlobal installs a custom registry as the global instance. Only the
// first call to InitGlobal or Global has any effect.
func InitGlobal(r *Registry) {
	globalOnce.Do(func() {
		globalRegistry = r
	})
}

// ResetGlobal clears the global registry. Not thread-safe; test use only.
func ResetGlobal() {
	globalOnce = sync.Once{}
	globalRegistry = nil
}
