package config

import (
	"time"

	"github.com/google/uuid"
)

const (
	defaultRegion         = "us-east-1"
	defaultDocumentsPath  = "/tmp/documents"
	defaultServiceURL     = "http://vector-search-service:8000"
	defaultCollection     = "default"
	defaultBatchSize      = 10
	defaultRequestTimeout = 5 * time.Minute
	defaultConcurrency    = 1
	defaultStoreHost      = "localhost"
	defaultStorePort      = "5432"
	defaultStoreUser      = "raguser"
	defaultStoreName      = "ragdb"
	defaultSSLMode        = "disable"
	defaultTable          = "document_chunks"
	defaultTagKey         = "source"
	defaultQueryTimeout   = 30 * time.Second
)

var defaultExtensions = []string{".md", ".txt", ".html"}

// Default returns a Config populated with repository defaults. The run tag is
// left empty; Load generates one when nothing else supplies it.
func Default() Config {
	return Config{
		Source: Source{
			Region:    defaultRegion,
			PathStyle: true,
		},
		Documents: Documents{
			Path:       defaultDocumentsPath,
			Extensions: append([]string(nil), defaultExtensions...),
		},
		Service: Service{
			URL:        defaultServiceURL,
			Collection: defaultCollection,
		},
		Ingest: Ingest{
			BatchSize:      defaultBatchSize,
			RequestTimeout: defaultRequestTimeout,
			Concurrency:    defaultConcurrency,
		},
		Store: Store{
			Backend:      BackendPostgres,
			Host:         defaultStoreHost,
			Port:         defaultStorePort,
			User:         defaultStoreUser,
			Name:         defaultStoreName,
			SSLMode:      defaultSSLMode,
			Table:        defaultTable,
			TagKey:       defaultTagKey,
			QueryTimeout: defaultQueryTimeout,
		},
		Verify: Verify{Enabled: true},
	}
}

// NewRunTag returns a fresh tag identifying one pipeline run in the store.
func NewRunTag() string {
	return "run-" + uuid.NewString()
}
