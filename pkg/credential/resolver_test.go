package credential

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticResolver(t *testing.T) {
	resolver := NewStaticResolver([]StaticCredential{
		{Identifier: "db-1", Username: "assessor", Password: "s3cret"},
		{Identifier: "db-2", Username: "assessor", Password: "other", Host: "override.internal", Port: 3307},
	})

	desc, err := resolver.Resolve(context.Background(), "db-1", "db-1.internal", 3306)
	require.NoError(t, err)
	assert.Equal(t, "assessor", desc.Username)
	assert.Equal(t, "db-1.internal", desc.Host, "endpoint fallback when entry has no host")
	assert.Equal(t, 3306, desc.Port)
	assert.True(t, desc.PlaintextSourced)
	assert.False(t, desc.TokenAuth)

	desc, err = resolver.Resolve(context.Background(), "db-2", "db-2.internal", 3306)
	require.NoError(t, err)
	assert.Equal(t, "override.internal", desc.Host, "explicit entry host wins")
	assert.Equal(t, 3307, desc.Port)
}

func TestStaticResolverNotFound(t *testing.T) {
	resolver := NewStaticResolver(nil)
	_, err := resolver.Resolve(context.Background(), "db-9", "db-9.internal", 3306)

	var credErr *Error
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, ErrNotFound, credErr.Kind)
	assert.Equal(t, "db-9", credErr.TargetID)
}

// countingResolver records how often the backend is consulted.
type countingResolver struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingResolver) Resolve(_ context.Context, targetID, endpoint string, port int) (ConnectionDescriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return ConnectionDescriptor{}, r.err
	}
	return ConnectionDescriptor{Host: endpoint, Port: port, Username: "u", Password: "p"}, nil
}

func TestRunCacheMemoizes(t *testing.T) {
	backend := &countingResolver{}
	cached := WithRunCache(backend)

	for i := 0; i < 5; i++ {
		_, err := cached.Resolve(context.Background(), "db-1", "db-1.internal", 3306)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, backend.calls)

	_, err := cached.Resolve(context.Background(), "db-2", "db-2.internal", 3306)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.calls)
}

func TestRunCacheMemoizesFailures(t *testing.T) {
	backend := &countingResolver{err: &Error{Kind: ErrNotFound, TargetID: "db-1"}}
	cached := WithRunCache(backend)

	_, first := cached.Resolve(context.Background(), "db-1", "db-1.internal", 3306)
	_, second := cached.Resolve(context.Background(), "db-1", "db-1.internal", 3306)

	require.Error(t, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.calls, "a failed resolution is not retried within a run")
}

func TestNewResolverUnknownStrategy(t *testing.T) {
	_, err := NewResolver(context.Background(), StrategyConfig{Kind: "vault"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault")
}

func TestDescriptorLogValueOmitsPassword(t *testing.T) {
	desc := ConnectionDescriptor{
		Host: "db-1.internal", Port: 3306,
		Username: "assessor", Password: "hunter2",
	}
	value := desc.LogValue()
	for _, attr := range value.Group() {
		assert.NotEqual(t, "password", attr.Key)
		assert.NotContains(t, attr.Value.String(), "hunter2")
	}
	// The descriptor implements slog.LogValuer so handlers never see the
	// secret field at all.
	var _ slog.LogValuer = desc
}
