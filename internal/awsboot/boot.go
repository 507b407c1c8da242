// Package awsboot holds the bootstrap shared by the CLI and the stage Lambda.
//
// Both entrypoints need some subset of: AWS config, SSM secret resolution,
// the object-storage downloader, the store counter, the artifact directory
// and startup logging. Each entrypoint composes these helpers instead of
// wiring clients itself.
package awsboot

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/fpang/doc-ingest-pipeline/internal/config"
)

// ParameterGetter is the SSM call used to resolve secrets. *ssm.Client
// satisfies it.
type ParameterGetter interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadAWS loads the default AWS config for region. An empty region leaves
// the SDK's own resolution in place.
func LoadAWS(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.Wrap(err, "load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return cfg, nil
}

// ResolveSecret reads a SecureString parameter.
func ResolveSecret(ctx context.Context, getter ParameterGetter, name string) (string, error) {
	start := time.Now()
	out, err := getter.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", errors.Wrapf(err, "SSM GetParameter %s", name)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.Newf("SSM parameter %s has no value", name)
	}
	log.Debug().Str("param", name).Dur("elapsed", time.Since(start)).Msg("Secret loaded from SSM")
	return *out.Parameter.Value, nil
}

// NeedsSecrets reports whether cfg names any SSM parameter that
// ResolveSecrets would have to fetch.
func NeedsSecrets(cfg *config.Config) bool {
	return (cfg.Source.Enabled && cfg.Source.SecretKey == "" && cfg.Source.SecretKeyParam != "") ||
		(cfg.Verify.Enabled && cfg.Store.Password == "" && cfg.Store.PasswordParam != "")
}

// ResolveSecrets fills the object-storage secret key and the store password
// from SSM when only their parameter names are configured. Values set
// directly always win.
func ResolveSecrets(ctx context.Context, cfg *config.Config, getter ParameterGetter) error {
	if cfg.Source.Enabled && cfg.Source.SecretKey == "" && cfg.Source.SecretKeyParam != "" {
		v, err := ResolveSecret(ctx, getter, cfg.Source.SecretKeyParam)
		if err != nil {
			return errors.WithHint(err, "check source.secret_key_param and the caller's ssm:GetParameter permission")
		}
		cfg.Source.SecretKey = v
	}
	if cfg.Verify.Enabled && cfg.Store.Password == "" && cfg.Store.PasswordParam != "" {
		v, err := ResolveSecret(ctx, getter, cfg.Store.PasswordParam)
		if err != nil {
			return errors.WithHint(err, "check store.password_param and the caller's ssm:GetParameter permission")
		}
		cfg.Store.Password = v
	}
	return nil
}
