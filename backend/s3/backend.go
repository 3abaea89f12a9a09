package s3

import (
	"context"
	"fmt"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/data"
)

// S3Backend maps a namespace onto an existing bucket of any S3 compatible
// store reachable through the minio client.
type S3Backend struct {
	mu sync.RWMutex

	client     *minio.Client
	bucketName string
}

// S3BackendConfig contains connection options decoded from a cluster definition.
type S3BackendConfig struct {
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	SessionToken string `mapstructure:"session_token"`
	Region       string `mapstructure:"region"`
	UseSSL       bool   `mapstructure:"use_ssl"`
}

func NewS3Backend(config *S3BackendConfig, bucketName string) (*S3Backend, error) {
	if config == nil || config.Endpoint == "" {
		return nil, fmt.Errorf("%w: s3 endpoint is required", data.ErrConfig)
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, config.SessionToken),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", data.ErrConfig, err)
	}

	return &S3Backend{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// Name returns the identifier name defined for this backend
func (*S3Backend) Name() string {
	return "s3"
}

// Namespace returns the bucket used as namespace.
func (sb *S3Backend) Namespace() string {
	return sb.bucketName
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *S3Backend) Open(ctx context.Context) error {
	exists, err := sb.client.BucketExists(ctx, sb.bucketName)
	if err != nil {
		return fmt.Errorf("%w: %w", data.ErrConnection, err)
	}

	if !exists {
		return fmt.Errorf("%w: bucket '%s' does not exist", data.ErrConnection, sb.bucketName)
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *S3Backend) Close(ctx context.Context) error {
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *S3Backend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityObjectStorage,
			backend.CapabilityNamespace,
			backend.CapabilityRangeRead,
		},
		MaxObjectSize: 5368709120, // 5 GiB single PUT limit
	}
}
