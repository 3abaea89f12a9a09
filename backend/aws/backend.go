package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/data"
)

// AWSBackend maps a namespace onto a bucket of Amazon S3 (or any endpoint
// speaking its API) through the official SDK.
type AWSBackend struct {
	client *s3.Client
	bucket string
	prefix string
}

// AWSBackendConfig contains connection options decoded from a cluster definition.
type AWSBackendConfig struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key"`
	SecretAccessKey string `mapstructure:"secret_key"`
	SessionToken    string `mapstructure:"session_token"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

func NewAWSBackend(ctx context.Context, config *AWSBackendConfig, bucket string) (*AWSBackend, error) {
	if config == nil || config.Region == "" {
		return nil, fmt.Errorf("%w: aws region is required", data.ErrConfig)
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(config.Region))

	// Use the default credential chain unless static credentials are given
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			config.AccessKeyID,
			config.SecretAccessKey,
			config.SessionToken,
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := config.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load AWS config: %w", data.ErrConfig, err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// Force path-style addressing for compatibility with MinIO/Localstack
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &AWSBackend{
		client: client,
		bucket: bucket,
		prefix: config.KeyPrefix,
	}, nil
}

// Name returns the identifier name defined for this backend
func (*AWSBackend) Name() string {
	return "aws"
}

// Namespace returns the bucket used as namespace.
func (ab *AWSBackend) Namespace() string {
	return ab.bucket
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (ab *AWSBackend) Open(ctx context.Context) error {
	_, err := ab.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(ab.bucket),
	})
	if err != nil {
		return fmt.Errorf("%w: bucket '%s': %w", data.ErrConnection, ab.bucket, err)
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (ab *AWSBackend) Close(ctx context.Context) error {
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (ab *AWSBackend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityObjectStorage,
			backend.CapabilityNamespace,
			backend.CapabilityRangeRead,
		},
		MaxObjectSize: 5368709120, // 5 GiB single PUT limit
	}
}

func (ab *AWSBackend) objectKey(key string) string {
	return ab.prefix + key
}
