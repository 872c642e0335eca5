package credential

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"
)

// federatedResolver issues a short-lived IAM authentication token for the
// configured database user. The token stands in for the password and expires
// on its own; nothing is stored.
type federatedResolver struct {
	region   string
	username string
	creds    aws.CredentialsProvider

	// buildToken is swapped in tests; defaults to the SDK builder.
	buildToken func(ctx context.Context, endpoint, region, user string, creds aws.CredentialsProvider) (string, error)
}

func (r *federatedResolver) Resolve(ctx context.Context, targetID, endpoint string, port int) (ConnectionDescriptor, error) {
	if r.username == "" {
		return ConnectionDescriptor{}, &Error{Kind: ErrNotFound, TargetID: targetID,
			Err: fmt.Errorf("federated auth requires a configured database user")}
	}

	build := r.buildToken
	if build == nil {
		build = func(ctx context.Context, endpoint, region, user string, creds aws.CredentialsProvider) (string, error) {
			return auth.BuildAuthToken(ctx, endpoint, region, user, creds)
		}
	}
	addr := net.JoinHostPort(endpoint, strconv.Itoa(port))
	token, err := build(ctx, addr, r.region, r.username, r.creds)
	if err != nil {
		return ConnectionDescriptor{}, &Error{Kind: ErrBackendUnavailable, TargetID: targetID, Err: err}
	}

	return ConnectionDescriptor{
		Host:      endpoint,
		Port:      port,
		Username:  r.username,
		Password:  token,
		TokenAuth: true,
	}, nil
}
