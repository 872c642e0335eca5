package credential

import (
	"context"
	"fmt"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Resolver maps a target identifier and endpoint to a connection descriptor.
type Resolver interface {
	Resolve(ctx context.Context, targetID, endpoint string, port int) (ConnectionDescriptor, error)
}

// StaticCredential is one plaintext entry from configuration.
type StaticCredential struct {
	Identifier string `yaml:"identifier"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Host       string `yaml:"host,omitempty"`
	Port       int    `yaml:"port,omitempty"`
}

// StrategyConfig selects and configures exactly one strategy per run.
type StrategyConfig struct {
	Kind   StrategyKind `yaml:"kind"`
	Region string       `yaml:"region,omitempty"`
	// SecretPrefix is the naming convention joining the secret store to the
	// target's cloud resource id, e.g. "rds/" + identifier.
	SecretPrefix string `yaml:"secret_prefix,omitempty"`
	// Username is the configured database user for federated auth.
	Username string             `yaml:"username,omitempty"`
	Static   []StaticCredential `yaml:"static,omitempty"`
}

// NewResolver dispatches on the strategy tag and builds the resolver for
// this run. AWS-backed strategies load the default credential chain once.
func NewResolver(ctx context.Context, cfg StrategyConfig) (Resolver, error) {
	switch cfg.Kind {
	case StrategySecretStore:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return &secretStoreResolver{
			client: secretsmanager.NewFromConfig(awsCfg),
			prefix: cfg.SecretPrefix,
		}, nil
	case StrategyFederatedAuth:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return &federatedResolver{
			region:   cfg.Region,
			username: cfg.Username,
			creds:    awsCfg.Credentials,
		}, nil
	case StrategyStaticConfig:
		return NewStaticResolver(cfg.Static), nil
	default:
		return nil, fmt.Errorf("unknown credential strategy %q", cfg.Kind)
	}
}

// staticResolver serves descriptors straight from configuration, marked
// plaintext-sourced for audit.
type staticResolver struct {
	byID map[string]StaticCredential
}

// NewStaticResolver builds the static-config strategy from its entries.
func NewStaticResolver(entries []StaticCredential) Resolver {
	byID := make(map[string]StaticCredential, len(entries))
	for _, e := range entries {
		byID[e.Identifier] = e
	}
	return &staticResolver{byID: byID}
}

func (r *staticResolver) Resolve(_ context.Context, targetID, endpoint string, port int) (ConnectionDescriptor, error) {
	entry, ok := r.byID[targetID]
	if !ok {
		return ConnectionDescriptor{}, &Error{Kind: ErrNotFound, TargetID: targetID,
			Err: fmt.Errorf("no static credentials configured")}
	}
	desc := ConnectionDescriptor{
		Host:             entry.Host,
		Port:             entry.Port,
		Username:         entry.Username,
		Password:         entry.Password,
		PlaintextSourced: true,
	}
	if desc.Host == "" {
		desc.Host = endpoint
	}
	if desc.Port == 0 {
		desc.Port = port
	}
	return desc, nil
}

// runCache memoizes resolutions for the current run only. Nothing is ever
// persisted and the cache dies with the run.
type runCache struct {
	inner Resolver

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	desc ConnectionDescriptor
	err  error
}

// WithRunCache wraps a resolver so repeated lookups for the same target
// within one run hit the backend once.
func WithRunCache(inner Resolver) Resolver {
	return &runCache{inner: inner, entries: make(map[string]cacheEntry)}
}

func (c *runCache) Resolve(ctx context.Context, targetID, endpoint string, port int) (ConnectionDescriptor, error) {
	c.mu.Lock()
	if entry, ok := c.entries[targetID]; ok {
		c.mu.Unlock()
		return entry.desc, entry.err
	}
	c.mu.Unlock()

	desc, err := c.inner.Resolve(ctx, targetID, endpoint, port)

	c.mu.Lock()
	c.entries[targetID] = cacheEntry{desc: desc, err: err}
	c.mu.Unlock()
	return desc, err
}
