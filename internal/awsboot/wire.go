package awsboot

import (
	"context"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/cockroachdb/errors"

	"github.com/fpang/doc-ingest-pipeline/internal/artifact"
	"github.com/fpang/doc-ingest-pipeline/internal/config"
	"github.com/fpang/doc-ingest-pipeline/internal/logging"
	"github.com/fpang/doc-ingest-pipeline/internal/pipeline"
	"github.com/fpang/doc-ingest-pipeline/internal/s3util"
	"github.com/fpang/doc-ingest-pipeline/internal/store"
)

// Secrets resolves SSM-backed secrets in cfg. No AWS config is loaded when
// nothing needs resolving.
func Secrets(ctx context.Context, cfg *config.Config) error {
	if !NeedsSecrets(cfg) {
		return nil
	}
	awsCfg, err := LoadAWS(ctx, cfg.Source.Region)
	if err != nil {
		return err
	}
	return ResolveSecrets(ctx, cfg, ssm.NewFromConfig(awsCfg))
}

// Downloader returns the object-storage downloader, or nil when the source
// is disabled. No client is built in that case.
func Downloader(ctx context.Context, cfg *config.Config) (pipeline.Downloader, error) {
	if !cfg.Source.Enabled {
		return nil, nil
	}
	client, err := s3util.NewClient(ctx, cfg.Source)
	if err != nil {
		return nil, err
	}
	return s3util.NewDownloader(client), nil
}

// Counter returns the store counter for cfg.Store and a release func. The
// counter connects lazily, on its first query.
func Counter(ctx context.Context, cfg *config.Config) (pipeline.StoreCounter, func(), error) {
	var awsCfg aws.Config
	if cfg.Store.Backend == config.BackendDataAPI {
		var err error
		if awsCfg, err = LoadAWS(ctx, ""); err != nil {
			return nil, nil, err
		}
	}
	counter, err := store.New(cfg.Store, awsCfg)
	if err != nil {
		return nil, nil, errors.Mark(err, pipeline.ErrStoreUnavailable)
	}
	release := func() {}
	if c, ok := counter.(io.Closer); ok {
		release = func() { _ = c.Close() }
	}
	return counter, release, nil
}

// Artifacts returns the artifact directory, or nil when artifacts.dir is
// unset. The nil is an untyped interface so callers may compare against it.
func Artifacts(cfg *config.Config) (pipeline.ArtifactWriter, error) {
	if cfg.Artifacts.Dir == "" {
		return nil, nil
	}
	dir, err := artifact.NewDir(cfg.Artifacts.Dir)
	if err != nil {
		return nil, err
	}
	return dir, nil
}

// RequireArtifacts opens artifacts.dir, failing when it is unset.
func RequireArtifacts(cfg *config.Config) (*artifact.Dir, error) {
	if cfg.Artifacts.Dir == "" {
		return nil, errors.WithHint(
			errors.Wrap(config.ErrInvalidConfig, "artifacts.dir is required to run a single stage"),
			"pass --artifacts-dir or set DOCINGEST_ARTIFACTS_DIR, and use the same value for every stage",
		)
	}
	return artifact.NewDir(cfg.Artifacts.Dir)
}

// LogStartup emits the startup event for an entrypoint.
func LogStartup(name, version string, cfg *config.Config) {
	sl := logging.NewStartupLogger(name).
		RunTag(cfg.Ingest.RunTag).
		Version(version).
		Endpoint("service", cfg.Service.URL).
		Endpoint("documents", cfg.Documents.Path).
		Feature("sourceDownload", cfg.Source.Enabled).
		Feature("verify", cfg.Verify.Enabled).
		Feature("artifacts", cfg.Artifacts.Dir != "").
		Config("collection", cfg.Service.Collection).
		Config("batchSize", strconv.Itoa(cfg.Ingest.BatchSize)).
		Config("requestTimeout", cfg.Ingest.RequestTimeout.String()).
		Config("concurrency", strconv.Itoa(cfg.Ingest.Concurrency))
	if cfg.Source.Enabled {
		sl.Endpoint("sourceEndpoint", cfg.Source.Endpoint).
			Endpoint("sourceBucket", cfg.Source.Bucket).
			Config("sourcePrefix", cfg.Source.Prefix).
			SSMParam("sourceSecretKey", cfg.Source.SecretKeyParam)
	}
	if cfg.Verify.Enabled {
		sl.Config("storeBackend", cfg.Store.Backend).
			Config("storeTable", cfg.Store.Table)
		if cfg.Store.Backend == config.BackendDataAPI {
			sl.Endpoint("storeCluster", cfg.Store.ClusterARN)
		} else {
			sl.Endpoint("storeHost", cfg.Store.Host+":"+cfg.Store.Port)
		}
		sl.SSMParam("storePassword", cfg.Store.PasswordParam)
	}
	sl.Log()
}
