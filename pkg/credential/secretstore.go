package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// secretsAPI is the slice of the Secrets Manager client the resolver uses.
type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput,
		optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
}

// secretStoreResolver looks up one secret per target by naming convention:
// prefix + target identifier. The secret payload is the usual RDS JSON shape
// {"username": ..., "password": ..., "host": ..., "port": ...}.
type secretStoreResolver struct {
	client secretsAPI
	prefix string
}

// secretPayload mirrors the managed RDS secret JSON document.
type secretPayload struct {
	Username string          `json:"username"`
	Password string          `json:"password"`
	Host     string          `json:"host,omitempty"`
	Port     json.RawMessage `json:"port,omitempty"`
}

func (r *secretStoreResolver) Resolve(ctx context.Context, targetID, endpoint string, port int) (ConnectionDescriptor, error) {
	name := r.prefix + targetID

	// Resolve the naming convention to exactly one secret. More than one
	// match means the convention is ambiguous for this target and a human
	// has to pick; guessing would be worse than failing.
	list, err := r.client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{
		Filters: []types.Filter{{
			Key:    types.FilterNameStringTypeName,
			Values: []string{name},
		}},
	})
	if err != nil {
		return ConnectionDescriptor{}, &Error{Kind: ErrBackendUnavailable, TargetID: targetID, Err: err}
	}
	switch len(list.SecretList) {
	case 0:
		return ConnectionDescriptor{}, &Error{Kind: ErrNotFound, TargetID: targetID,
			Err: fmt.Errorf("no secret matches %q", name)}
	case 1:
	default:
		return ConnectionDescriptor{}, &Error{Kind: ErrAmbiguousMatch, TargetID: targetID,
			Err: fmt.Errorf("%d secrets match %q", len(list.SecretList), name)}
	}

	value, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: list.SecretList[0].ARN,
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return ConnectionDescriptor{}, &Error{Kind: ErrNotFound, TargetID: targetID, Err: err}
		}
		return ConnectionDescriptor{}, &Error{Kind: ErrBackendUnavailable, TargetID: targetID, Err: err}
	}
	if value.SecretString == nil {
		return ConnectionDescriptor{}, &Error{Kind: ErrMalformedSecret, TargetID: targetID,
			Err: fmt.Errorf("secret %q has no string payload", name)}
	}

	var payload secretPayload
	if err := json.Unmarshal([]byte(aws.ToString(value.SecretString)), &payload); err != nil {
		return ConnectionDescriptor{}, &Error{Kind: ErrMalformedSecret, TargetID: targetID, Err: err}
	}
	if payload.Username == "" || payload.Password == "" {
		return ConnectionDescriptor{}, &Error{Kind: ErrMalformedSecret, TargetID: targetID,
			Err: fmt.Errorf("secret %q is missing username or password", name)}
	}

	desc := ConnectionDescriptor{
		Host:     payload.Host,
		Port:     parseSecretPort(payload.Port),
		Username: payload.Username,
		Password: payload.Password,
	}
	if desc.Host == "" {
		desc.Host = endpoint
	}
	if desc.Port == 0 {
		desc.Port = port
	}
	return desc, nil
}

// parseSecretPort tolerates both numeric and quoted port values, which both
// occur in managed secrets.
func parseSecretPort(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var asInt int
	if err := json.Unmarshal(raw, &asInt); err == nil {
		return asInt
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if p, err := strconv.Atoi(asString); err == nil {
			return p
		}
	}
	return 0
}
