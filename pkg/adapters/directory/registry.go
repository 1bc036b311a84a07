package directory

import (
	"context"
	"sort"
	"sync"
)

// AdapterInfo describes a registered provider for the setup wizard.
type AdapterInfo struct {
	Provider    string   `json:"provider"`     // "google_workspace", "slack", "csv"
	DisplayName string   `json:"display_name"` // "Google Workspace"
	Description string   `json:"description"`
	ConfigKeys  []string `json:"config_keys"` // Settings the provider requires
}

// Registration pairs provider info with its connector factory.
type Registration struct {
	Info    AdapterInfo
	Factory func(ctx context.Context, config map[string]any, opts Options) (Connector, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
)

// Register is called by each provider package's init() function.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Provider] = reg
}

// RegisteredAdapters returns info for all registered providers, sorted by provider.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Provider < result[j].Provider })
	return result
}

// GetFactory returns the connector factory for a provider, or nil if unknown.
func GetFactory(provider string) func(ctx context.Context, config map[string]any, opts Options) (Connector, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[provider]; ok {
		return reg.Factory
	}
	return nil
}
