package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrInvalidConfig marks every configuration problem detected before the
// pipeline starts.
var ErrInvalidConfig = errors.New("invalid configuration")

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Validate checks every option and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string
	problems = append(problems, c.validateSource()...)
	problems = append(problems, c.validateDocuments()...)
	problems = append(problems, c.validateService()...)
	problems = append(problems, c.validateIngest()...)
	if c.Verify.Enabled {
		problems = append(problems, c.validateStore()...)
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.WithHint(
		errors.Wrapf(ErrInvalidConfig, "%s", strings.Join(problems, "; ")),
		"options may be set in the config file, as DOCINGEST_* environment variables or as flags",
	)
}

func (c *Config) validateSource() []string {
	if !c.Source.Enabled {
		return nil
	}
	var p []string
	if c.Source.Endpoint != "" {
		if u, err := url.Parse(c.Source.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			p = append(p, fmt.Sprintf("source.endpoint %q is not an absolute URL", c.Source.Endpoint))
		}
	}
	if c.Source.Bucket == "" {
		p = append(p, "source.bucket is required when source.enabled is true")
	}
	if c.Source.AccessKey == "" {
		p = append(p, "source.access_key is required when source.enabled is true")
	}
	if c.Source.SecretKey == "" && c.Source.SecretKeyParam == "" {
		p = append(p, "source.secret_key or source.secret_key_param is required when source.enabled is true")
	}
	return p
}

func (c *Config) validateDocuments() []string {
	var p []string
	if c.Documents.Path == "" {
		p = append(p, "documents.path must be set")
	}
	if len(c.Documents.Extensions) == 0 {
		p = append(p, "documents.extensions must list at least one extension")
	}
	return p
}

func (c *Config) validateService() []string {
	var p []string
	u, err := url.Parse(c.Service.URL)
	if c.Service.URL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		p = append(p, fmt.Sprintf("service.url %q is not an absolute URL", c.Service.URL))
	}
	if strings.TrimSpace(c.Service.Collection) == "" {
		p = append(p, "service.collection must be set")
	}
	return p
}

func (c *Config) validateIngest() []string {
	var p []string
	if c.Ingest.BatchSize < 1 {
		p = append(p, fmt.Sprintf("ingest.batch_size must be a positive integer, got %d", c.Ingest.BatchSize))
	}
	if c.Ingest.RequestTimeout <= 0 {
		p = append(p, fmt.Sprintf("ingest.request_timeout must be positive, got %s", c.Ingest.RequestTimeout))
	}
	if c.Ingest.Concurrency < 1 {
		p = append(p, fmt.Sprintf("ingest.concurrency must be a positive integer, got %d", c.Ingest.Concurrency))
	}
	if c.Ingest.RequestsPerSecond < 0 {
		p = append(p, "ingest.requests_per_second must not be negative")
	}
	return p
}

func (c *Config) validateStore() []string {
	var p []string
	switch c.Store.Backend {
	case BackendPostgres:
		if c.Store.Host == "" {
			p = append(p, "store.host must be set")
		}
		if c.Store.Name == "" {
			p = append(p, "store.name must be set")
		}
	case BackendDataAPI:
		if c.Store.ClusterARN == "" || c.Store.SecretARN == "" {
			p = append(p, "store.cluster_arn and store.secret_arn are required for the dataapi backend")
		}
		if c.Store.Name == "" {
			p = append(p, "store.name must be set")
		}
	default:
		p = append(p, fmt.Sprintf("store.backend %q is not one of %s, %s", c.Store.Backend, BackendPostgres, BackendDataAPI))
	}
	if !identifierRe.MatchString(c.Store.Table) {
		p = append(p, fmt.Sprintf("store.table %q is not a valid identifier", c.Store.Table))
	}
	if !identifierRe.MatchString(c.Store.TagKey) {
		p = append(p, fmt.Sprintf("store.tag_key %q is not a valid identifier", c.Store.TagKey))
	}
	if c.Store.QueryTimeout <= 0 {
		p = append(p, "store.query_timeout must be positive")
	}
	return p
}

// IsIdentifier reports whether s may be interpolated into SQL as a table or
// JSON key name.
func IsIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}
