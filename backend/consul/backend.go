package consul

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/data"
)

// ConsulBackend stores every object as a single Consul KV pair below
// <prefix>/<namespace>/.
//
// Limitations:
// - Consul KV has a 512KB limit per value
// - Best suited for small block sizes and catalog storage
type ConsulBackend struct {
	mu     sync.RWMutex
	client *api.Client
	kv     *api.KV

	config *ConsulBackendConfig
}

// ConsulBackendConfig contains configuration options for the Consul backend
type ConsulBackendConfig struct {
	// Address of the Consul server (default: "127.0.0.1:8500")
	Address string `mapstructure:"address"`

	// Token for Consul ACL authentication (optional)
	Token string `mapstructure:"token"`

	// Datacenter to use (optional)
	Datacenter string `mapstructure:"datacenter"`

	// Prefix for all keys in Consul KV (default: "blockfile")
	Prefix string `mapstructure:"prefix"`

	// Namespace separates pools below the prefix
	Namespace string `mapstructure:"-"`
}

// NewConsulBackend creates a new Consul-backed object storage backend
func NewConsulBackend(config *ConsulBackendConfig) (*ConsulBackend, error) {
	if config == nil {
		config = &ConsulBackendConfig{}
	}

	// Set defaults
	if config.Address == "" {
		config.Address = "127.0.0.1:8500"
	}
	if config.Prefix == "" {
		config.Prefix = "blockfile"
	}

	clientConfig := api.DefaultConfig()
	clientConfig.Address = config.Address
	if config.Token != "" {
		clientConfig.Token = config.Token
	}
	if config.Datacenter != "" {
		clientConfig.Datacenter = config.Datacenter
	}

	client, err := api.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", data.ErrConfig, err)
	}

	return &ConsulBackend{
		client: client,
		kv:     client.KV(),
		config: config,
	}, nil
}

// Name returns the identifier name defined for this backend
func (*ConsulBackend) Name() string {
	return "consul"
}

// Namespace returns the namespace all keys are scoped to.
func (cb *ConsulBackend) Namespace() string {
	return cb.config.Namespace
}

// Open is part of the lifecycle behaviour and gets called when opening this backend
func (cb *ConsulBackend) Open(ctx context.Context) error {
	if _, err := cb.client.Status().Leader(); err != nil {
		return fmt.Errorf("%w: %w", data.ErrConnection, err)
	}
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend
func (cb *ConsulBackend) Close(ctx context.Context) error {
	// Nothing to clean up - Consul client is stateless
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend
func (cb *ConsulBackend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityObjectStorage,
			backend.CapabilityNamespace,
		},
		// Consul KV has a default limit of 512KB per value
		MaxObjectSize: 500 * 1024, // 500 KB
	}
}

// buildKey maps an object key onto its Consul KV key
func (cb *ConsulBackend) buildKey(key string) string {
	parts := make([]string, 0, 3)
	if prefix := strings.Trim(cb.config.Prefix, "/"); prefix != "" {
		parts = append(parts, prefix)
	}
	if cb.config.Namespace != "" {
		parts = append(parts, cb.config.Namespace)
	}

	return strings.Join(append(parts, strings.TrimPrefix(key, "/")), "/")
}
