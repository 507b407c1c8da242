package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// DOCINGEST_INGEST_BATCH_SIZE for ingest.batch_size.
const EnvPrefix = "DOCINGEST"

// NewViper returns a viper instance with every option registered under its
// default and environment overrides enabled. Flags are bound by the caller.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	registerDefaults(v, Default())
	return v
}

func registerDefaults(v *viper.Viper, d Config) {
	v.SetDefault("source.enabled", d.Source.Enabled)
	v.SetDefault("source.endpoint", d.Source.Endpoint)
	v.SetDefault("source.region", d.Source.Region)
	v.SetDefault("source.bucket", d.Source.Bucket)
	v.SetDefault("source.prefix", d.Source.Prefix)
	v.SetDefault("source.access_key", d.Source.AccessKey)
	v.SetDefault("source.secret_key", d.Source.SecretKey)
	v.SetDefault("source.secret_key_param", d.Source.SecretKeyParam)
	v.SetDefault("source.path_style", d.Source.PathStyle)
	v.SetDefault("source.insecure_skip_verify", d.Source.InsecureSkipVerify)

	v.SetDefault("documents.path", d.Documents.Path)
	v.SetDefault("documents.extensions", d.Documents.Extensions)

	v.SetDefault("service.url", d.Service.URL)
	v.SetDefault("service.collection", d.Service.Collection)

	v.SetDefault("ingest.batch_size", d.Ingest.BatchSize)
	v.SetDefault("ingest.request_timeout", d.Ingest.RequestTimeout)
	v.SetDefault("ingest.concurrency", d.Ingest.Concurrency)
	v.SetDefault("ingest.requests_per_second", d.Ingest.RequestsPerSecond)
	v.SetDefault("ingest.run_tag", d.Ingest.RunTag)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.host", d.Store.Host)
	v.SetDefault("store.port", d.Store.Port)
	v.SetDefault("store.user", d.Store.User)
	v.SetDefault("store.password", d.Store.Password)
	v.SetDefault("store.password_param", d.Store.PasswordParam)
	v.SetDefault("store.name", d.Store.Name)
	v.SetDefault("store.sslmode", d.Store.SSLMode)
	v.SetDefault("store.cluster_arn", d.Store.ClusterARN)
	v.SetDefault("store.secret_arn", d.Store.SecretARN)
	v.SetDefault("store.table", d.Store.Table)
	v.SetDefault("store.tag_key", d.Store.TagKey)
	v.SetDefault("store.query_timeout", d.Store.QueryTimeout)

	v.SetDefault("verify.enabled", d.Verify.Enabled)
	v.SetDefault("artifacts.dir", d.Artifacts.Dir)
}

// Load reads the optional config file at path into v, decodes every setting
// strictly into a Config, normalizes it and validates it. Unknown keys and
// malformed values are reported as ErrInvalidConfig.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(ErrInvalidConfig, "read config file %s: %v", path, err)
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "decode options: %v", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
