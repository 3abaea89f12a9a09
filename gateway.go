package blockfile

import (
	"context"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/backend/aws"
	"github.com/mwantia/blockfile/backend/badger"
	"github.com/mwantia/blockfile/backend/consul"
	"github.com/mwantia/blockfile/backend/local"
	"github.com/mwantia/blockfile/backend/memory"
	"github.com/mwantia/blockfile/backend/nutsdb"
	"github.com/mwantia/blockfile/backend/postgres"
	"github.com/mwantia/blockfile/backend/s3"
	"github.com/mwantia/blockfile/backend/sqlite"
	"github.com/mwantia/blockfile/config"
	"github.com/mwantia/blockfile/data"
)

type pathOptions struct {
	Path string `mapstructure:"path"`
}

// openBackend creates the gateway configured for cluster. The pool selects
// the bucket, namespace or key prefix; the user supplies credentials.
func openBackend(ctx context.Context, cluster *config.ClusterConfig, user *config.UserConfig, pool string) (backend.ObjectStorageBackend, error) {
	var (
		store backend.ObjectStorageBackend
		err   error
	)

	switch cluster.Backend {
	case "memory":
		if err := decodeOptions(cluster.Options, &struct{}{}); err != nil {
			return nil, err
		}
		store = memory.NewMemoryBackend(pool)

	case "local":
		var opts pathOptions
		if err := decodeOptions(cluster.Options, &opts); err != nil {
			return nil, err
		}
		if opts.Path == "" {
			return nil, fmt.Errorf("%w: cluster '%s' requires option 'path'", data.ErrConfig, cluster.Name)
		}
		store = local.NewLocalBackend(opts.Path, pool)

	case "sqlite":
		opts := pathOptions{Path: ":memory:"}
		if err := decodeOptions(cluster.Options, &opts); err != nil {
			return nil, err
		}
		store, err = sqlite.NewSQLiteBackend(opts.Path, pool)

	case "postgres":
		var opts postgres.PostgresBackendConfig
		if err := decodeOptions(cluster.Options, &opts); err != nil {
			return nil, err
		}
		if user.Password != "" {
			opts.User = user.Name
			opts.Password = user.Password
		}
		store, err = postgres.NewPostgresBackend(ctx, &opts, pool)

	case "consul":
		var opts consul.ConsulBackendConfig
		if err := decodeOptions(cluster.Options, &opts); err != nil {
			return nil, err
		}
		if user.Token != "" {
			opts.Token = user.Token
		}
		opts.Namespace = pool
		store, err = consul.NewConsulBackend(&opts)

	case "s3":
		var opts s3.S3BackendConfig
		if err := decodeOptions(cluster.Options, &opts); err != nil {
			return nil, err
		}
		if user.AccessKey != "" {
			opts.AccessKey = user.AccessKey
			opts.SecretKey = user.SecretKey
			opts.SessionToken = user.Token
		}
		store, err = s3.NewS3Backend(&opts, pool)

	case "aws":
		var opts aws.AWSBackendConfig
		if err := decodeOptions(cluster.Options, &opts); err != nil {
			return nil, err
		}
		if user.AccessKey != "" {
			opts.AccessKeyID = user.AccessKey
			opts.SecretAccessKey = user.SecretKey
			opts.SessionToken = user.Token
		}
		store, err = aws.NewAWSBackend(ctx, &opts, pool)

	case "badger":
		var opts badger.BadgerBackendConfig
		if err := decodeOptions(cluster.Options, &opts); err != nil {
			return nil, err
		}
		store, err = badger.NewBadgerBackend(&opts, pool)

	case "nutsdb":
		var opts nutsdb.NutsDBBackendConfig
		if err := decodeOptions(cluster.Options, &opts); err != nil {
			return nil, err
		}
		store, err = nutsdb.NewNutsDBBackend(&opts, pool)

	default:
		return nil, fmt.Errorf("%w: unknown backend '%s' for cluster '%s'", data.ErrConfig, cluster.Backend, cluster.Name)
	}

	if err != nil {
		if errors.Is(err, data.ErrConfig) || errors.Is(err, data.ErrConnection) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: create backend for cluster '%s': %w", data.ErrConnection, cluster.Name, err)
	}

	return store, nil
}

// decodeOptions decodes a cluster option map into a backend configuration.
// Unknown keys are rejected.
func decodeOptions(options map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", data.ErrConfig, err)
	}

	if err := decoder.Decode(options); err != nil {
		return fmt.Errorf("%w: invalid backend options: %w", data.ErrConfig, err)
	}
	return nil
}
