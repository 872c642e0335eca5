package credential

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSecretsAPI serves canned list and get responses.
type fakeSecretsAPI struct {
	secrets map[string]string // name -> payload
	listErr error
	getErr  error
}

func (f *fakeSecretsAPI) ListSecrets(_ context.Context, params *secretsmanager.ListSecretsInput,
	_ ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := &secretsmanager.ListSecretsOutput{}
	var filter string
	if len(params.Filters) > 0 && len(params.Filters[0].Values) > 0 {
		filter = params.Filters[0].Values[0]
	}
	for name := range f.secrets {
		if filter == "" || name == filter {
			out.SecretList = append(out.SecretList, types.SecretListEntry{
				ARN:  aws.String("arn:aws:secretsmanager:::secret:" + name),
				Name: aws.String(name),
			})
		}
	}
	return out, nil
}

func (f *fakeSecretsAPI) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput,
	_ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for name, payload := range f.secrets {
		if aws.ToString(params.SecretId) == "arn:aws:secretsmanager:::secret:"+name {
			return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(payload)}, nil
		}
	}
	return nil, &types.ResourceNotFoundException{}
}

func TestSecretStoreResolve(t *testing.T) {
	resolver := &secretStoreResolver{
		prefix: "rds/",
		client: &fakeSecretsAPI{secrets: map[string]string{
			"rds/db-1": `{"username": "assessor", "password": "s3cret", "host": "db-1.cluster.internal", "port": 3306}`,
		}},
	}

	desc, err := resolver.Resolve(context.Background(), "db-1", "fallback.internal", 3306)
	require.NoError(t, err)
	assert.Equal(t, "assessor", desc.Username)
	assert.Equal(t, "s3cret", desc.Password)
	assert.Equal(t, "db-1.cluster.internal", desc.Host)
	assert.False(t, desc.PlaintextSourced)
}

func TestSecretStorePortAsString(t *testing.T) {
	resolver := &secretStoreResolver{
		prefix: "rds/",
		client: &fakeSecretsAPI{secrets: map[string]string{
			"rds/db-1": `{"username": "assessor", "password": "s3cret", "port": "3307"}`,
		}},
	}

	desc, err := resolver.Resolve(context.Background(), "db-1", "db-1.internal", 3306)
	require.NoError(t, err)
	assert.Equal(t, 3307, desc.Port)
	assert.Equal(t, "db-1.internal", desc.Host, "endpoint fallback when secret has no host")
}

func TestSecretStoreNotFound(t *testing.T) {
	resolver := &secretStoreResolver{
		prefix: "rds/",
		client: &fakeSecretsAPI{secrets: map[string]string{}},
	}

	_, err := resolver.Resolve(context.Background(), "db-9", "db-9.internal", 3306)
	var credErr *Error
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, ErrNotFound, credErr.Kind)
}

func TestSecretStoreAmbiguousMatch(t *testing.T) {
	api := &fakeSecretsAPI{secrets: map[string]string{
		"rds/db-1": `{"username": "a", "password": "b"}`,
	}}
	resolver := &secretStoreResolver{prefix: "rds/", client: &multiMatchAPI{inner: api}}

	_, err := resolver.Resolve(context.Background(), "db-1", "db-1.internal", 3306)
	var credErr *Error
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, ErrAmbiguousMatch, credErr.Kind)
}

// multiMatchAPI duplicates every list entry to simulate a naming convention
// that matches more than one secret.
type multiMatchAPI struct {
	inner *fakeSecretsAPI
}

func (m *multiMatchAPI) ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput,
	optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	out, err := m.inner.ListSecrets(ctx, params, optFns...)
	if err != nil {
		return nil, err
	}
	out.SecretList = append(out.SecretList, out.SecretList...)
	return out, nil
}

func (m *multiMatchAPI) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput,
	optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return m.inner.GetSecretValue(ctx, params, optFns...)
}

func TestSecretStoreMalformedPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `user=assessor password=x`},
		{"missing password", `{"username": "assessor"}`},
		{"missing username", `{"password": "x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &secretStoreResolver{
				prefix: "rds/",
				client: &fakeSecretsAPI{secrets: map[string]string{"rds/db-1": tt.payload}},
			}
			_, err := resolver.Resolve(context.Background(), "db-1", "db-1.internal", 3306)
			var credErr *Error
			require.ErrorAs(t, err, &credErr)
			assert.Equal(t, ErrMalformedSecret, credErr.Kind)
		})
	}
}

func TestSecretStoreBackendUnavailable(t *testing.T) {
	resolver := &secretStoreResolver{
		prefix: "rds/",
		client: &fakeSecretsAPI{listErr: errors.New("throttled")},
	}

	_, err := resolver.Resolve(context.Background(), "db-1", "db-1.internal", 3306)
	var credErr *Error
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, ErrBackendUnavailable, credErr.Kind)
}

func TestFederatedResolver(t *testing.T) {
	resolver := &federatedResolver{
		region:   "eu-west-1",
		username: "iam_assessor",
		buildToken: func(_ context.Context, endpoint, region, user string, _ aws.CredentialsProvider) (string, error) {
			assert.Equal(t, "db-1.internal:3306", endpoint)
			assert.Equal(t, "eu-west-1", region)
			assert.Equal(t, "iam_assessor", user)
			return "signed-token", nil
		},
	}

	desc, err := resolver.Resolve(context.Background(), "db-1", "db-1.internal", 3306)
	require.NoError(t, err)
	assert.Equal(t, "signed-token", desc.Password)
	assert.True(t, desc.TokenAuth)
	assert.Equal(t, "iam_assessor", desc.Username)
}

func TestFederatedResolverNoUsername(t *testing.T) {
	resolver := &federatedResolver{region: "eu-west-1"}
	_, err := resolver.Resolve(context.Background(), "db-1", "db-1.internal", 3306)

	var credErr *Error
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, ErrNotFound, credErr.Kind)
}

func TestFederatedResolverTokenFailure(t *testing.T) {
	resolver := &federatedResolver{
		region:   "eu-west-1",
		username: "iam_assessor",
		buildToken: func(context.Context, string, string, string, aws.CredentialsProvider) (string, error) {
			return "", errors.New("no credentials in chain")
		},
	}

	_, err := resolver.Resolve(context.Background(), "db-1", "db-1.internal", 3306)
	var credErr *Error
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, ErrBackendUnavailable, credErr.Kind)
}
