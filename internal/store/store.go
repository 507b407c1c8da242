// Package store counts the chunks a run left in the vector store.
//
// Two backends share one query: a direct Postgres connection through the pgx
// database/sql driver, and the Aurora Data API for clusters that are only
// reachable through AWS.
package store

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata"
	"github.com/cockroachdb/errors"

	"github.com/fpang/doc-ingest-pipeline/internal/config"
	"github.com/fpang/doc-ingest-pipeline/internal/pipeline"
)

// countQuery builds the aggregate used by every backend. table and tagKey
// must already have passed config.IsIdentifier; placeholder is the
// backend-specific bind marker for the tag value.
func countQuery(table, tagKey, placeholder string) string {
	return fmt.Sprintf(
		"SELECT COUNT(DISTINCT document_id) AS documents, COUNT(*) AS chunks FROM %s WHERE metadata->>'%s' = %s",
		table, tagKey, placeholder,
	)
}

func checkIdentifiers(table, tagKey string) error {
	if !config.IsIdentifier(table) {
		return errors.Newf("store table %q is not a valid identifier", table)
	}
	if !config.IsIdentifier(tagKey) {
		return errors.Newf("store tag key %q is not a valid identifier", tagKey)
	}
	return nil
}

// New returns the counter selected by cfg.Backend. awsCfg is only used by
// the dataapi backend and may be the zero value otherwise.
func New(cfg config.Store, awsCfg aws.Config) (pipeline.StoreCounter, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		return NewPostgresCounter(cfg)
	case config.BackendDataAPI:
		return NewDataAPICounter(rdsdata.NewFromConfig(awsCfg), rds.NewFromConfig(awsCfg), cfg)
	default:
		return nil, errors.Newf("unknown store backend %q", cfg.Backend)
	}
}
