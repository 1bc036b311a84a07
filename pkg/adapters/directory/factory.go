package directory

import (
	"context"
	"fmt"
)

// ConnectorFactory creates connectors from the registry.
type ConnectorFactory interface {
	// NewConnector creates a connector for the given provider and settings.
	NewConnector(ctx context.Context, provider string, config map[string]any) (Connector, error)

	// ListProviders returns info for all registered providers.
	ListProviders() []AdapterInfo
}

type registryFactory struct {
	opts Options
}

// NewConnectorFactory returns a factory backed by the global registry.
func NewConnectorFactory(opts Options) ConnectorFactory {
	return &registryFactory{opts: opts}
}

func (f *registryFactory) NewConnector(ctx context.Context, provider string, config map[string]any) (Connector, error) {
	factory := GetFactory(provider)
	if factory == nil {
		return nil, fmt.Errorf("unsupported provider: %s (not compiled in)", provider)
	}
	return factory(ctx, config, f.opts)
}

func (f *registryFactory) ListProviders() []AdapterInfo {
	return RegisteredAdapters()
}

var _ ConnectorFactory = (*registryFactory)(nil)

// StringSetting reads a string entry from a connection config.
func StringSetting(config map[string]any, key string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return ""
}

// RequireSettings returns an error naming the first absent or blank key.
func RequireSettings(config map[string]any, keys ...string) error {
	for _, key := range keys {
		if StringSetting(config, key) == "" {
			return fmt.Errorf("missing required setting %q", key)
		}
	}
	return nil
}
