// Package s3util reads document trees from S3-compatible object storage.
//
// It works against AWS S3 and MinIO alike: a custom endpoint, static
// credentials and path-style addressing are all driven by config.Source.
package s3util

import (
	"context"
	"crypto/tls"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/fpang/doc-ingest-pipeline/internal/config"
)

// ObjectAPI is the subset of the S3 API the pipeline uses. *s3.Client
// satisfies it.
type ObjectAPI interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// NewClient builds an S3 client for src. Static credentials are used when an
// access key is configured; otherwise the default AWS credential chain
// applies. The secret key must already be resolved.
func NewClient(ctx context.Context, src config.Source) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(src.Region),
	}
	if src.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(src.AccessKey, src.SecretKey, ""),
		))
	}
	if src.InsecureSkipVerify {
		// Self-signed certificates on dev/staging MinIO endpoints.
		httpClient := awshttp.NewBuildableClient().WithTransportOptions(func(tr *http.Transport) {
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		})
		opts = append(opts, awsconfig.WithHTTPClient(httpClient))
		log.Warn().Str("endpoint", src.Endpoint).Msg("TLS verification disabled for object storage")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load AWS config for object storage")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if src.Endpoint != "" {
			o.BaseEndpoint = aws.String(src.Endpoint)
		}
		o.UsePathStyle = src.PathStyle
	})
	log.Debug().Str("endpoint", src.Endpoint).Str("region", src.Region).Bool("pathStyle", src.PathStyle).Msg("S3 client created")
	return client, nil
}
