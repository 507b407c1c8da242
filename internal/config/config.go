package config

import "time"

// Config enumerates every option the pipeline recognises.
type Config struct {
	Source    Source    `mapstructure:"source"`
	Documents Documents `mapstructure:"documents"`
	Service   Service   `mapstructure:"service"`
	Ingest    Ingest    `mapstructure:"ingest"`
	Store     Store     `mapstructure:"store"`
	Verify    Verify    `mapstructure:"verify"`
	Artifacts Artifacts `mapstructure:"artifacts"`
}

// Source describes the remote object-storage location the gate pulls from.
type Source struct {
	Enabled            bool   `mapstructure:"enabled"`
	Endpoint           string `mapstructure:"endpoint"`
	Region             string `mapstructure:"region"`
	Bucket             string `mapstructure:"bucket"`
	Prefix             string `mapstructure:"prefix"`
	AccessKey          string `mapstructure:"access_key"`
	SecretKey          string `mapstructure:"secret_key"`
	SecretKeyParam     string `mapstructure:"secret_key_param"`
	PathStyle          bool   `mapstructure:"path_style"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`

	// Destination is the local directory downloads land in. It is always
	// documents.path and is filled in by Load.
	Destination string `mapstructure:"-"`
}

// Documents configures discovery.
type Documents struct {
	Path       string   `mapstructure:"path"`
	Extensions []string `mapstructure:"extensions"`
}

// Service addresses the document ingestion service.
type Service struct {
	URL        string `mapstructure:"url"`
	Collection string `mapstructure:"collection"`
}

// Ingest tunes the batch orchestrator.
type Ingest struct {
	BatchSize         int           `mapstructure:"batch_size"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	Concurrency       int           `mapstructure:"concurrency"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	RunTag            string        `mapstructure:"run_tag"`
}

// Store holds connection parameters for the chunk store.
type Store struct {
	Backend       string        `mapstructure:"backend"`
	Host          string        `mapstructure:"host"`
	Port          string        `mapstructure:"port"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	PasswordParam string        `mapstructure:"password_param"`
	Name          string        `mapstructure:"name"`
	SSLMode       string        `mapstructure:"sslmode"`
	ClusterARN    string        `mapstructure:"cluster_arn"`
	SecretARN     string        `mapstructure:"secret_arn"`
	Table         string        `mapstructure:"table"`
	TagKey        string        `mapstructure:"tag_key"`
	QueryTimeout  time.Duration `mapstructure:"query_timeout"`
}

// Verify toggles the reconciliation stage.
type Verify struct {
	Enabled bool `mapstructure:"enabled"`
}

// Artifacts controls where stage artifacts are written. Empty disables them.
type Artifacts struct {
	Dir string `mapstructure:"dir"`
}

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendDataAPI  = "dataapi"
)
