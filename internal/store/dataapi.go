package store

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata"
	rdsdatatypes "github.com/aws/aws-sdk-go-v2/service/rdsdata/types"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/fpang/doc-ingest-pipeline/internal/config"
	"github.com/fpang/doc-ingest-pipeline/internal/pipeline"
)

// StatementAPI is the Data API call the counter issues.
type StatementAPI interface {
	ExecuteStatement(ctx context.Context, in *rdsdata.ExecuteStatementInput, optFns ...func(*rdsdata.Options)) (*rdsdata.ExecuteStatementOutput, error)
}

// ClusterAPI reports Aurora cluster status. May be nil to skip the preflight.
type ClusterAPI interface {
	DescribeDBClusters(ctx context.Context, in *rds.DescribeDBClustersInput, optFns ...func(*rds.Options)) (*rds.DescribeDBClustersOutput, error)
}

// DataAPICounter counts chunks through the RDS Data API.
type DataAPICounter struct {
	client     StatementAPI
	clusters   ClusterAPI
	clusterARN string
	secretARN  string
	database   string
	query      string
	timeout    time.Duration
}

// NewDataAPICounter prepares a counter that queries cfg.ClusterARN through the
// Data API. Nothing is sent until Ping or CountByTag.
func NewDataAPICounter(client StatementAPI, clusters ClusterAPI, cfg config.Store) (*DataAPICounter, error) {
	if err := checkIdentifiers(cfg.Table, cfg.TagKey); err != nil {
		return nil, err
	}
	return &DataAPICounter{
		client:     client,
		clusters:   clusters,
		clusterARN: cfg.ClusterARN,
		secretARN:  cfg.SecretARN,
		database:   cfg.Name,
		query:      countQuery(cfg.Table, cfg.TagKey, ":tag"),
		timeout:    cfg.QueryTimeout,
	}, nil
}

// clusterID extracts the identifier from an ARN. DescribeDBClusters accepts
// either form but the bare id reads better in logs.
func clusterID(arn string) string {
	if idx := strings.LastIndex(arn, ":"); idx >= 0 && idx < len(arn)-1 {
		return arn[idx+1:]
	}
	return arn
}

// Ping fails unless the cluster reports "available". A paused serverless
// cluster would otherwise surface as an opaque Data API timeout.
func (c *DataAPICounter) Ping(ctx context.Context) error {
	if c.clusters == nil {
		return nil
	}
	id := clusterID(c.clusterARN)
	out, err := c.clusters.DescribeDBClusters(ctx, &rds.DescribeDBClustersInput{
		DBClusterIdentifier: aws.String(id),
	})
	if err != nil {
		return errors.Wrapf(err, "DescribeDBClusters %s", id)
	}
	if len(out.DBClusters) == 0 {
		return errors.Newf("DB cluster %s not found", id)
	}
	status := aws.ToString(out.DBClusters[0].Status)
	if status != "available" {
		return errors.WithHint(
			errors.Newf("DB cluster %s is %s", id, status),
			"start the cluster or wait for it to become available, then rerun verify",
		)
	}
	return nil
}

// CountByTag returns the distinct documents and total chunks tagged with tag.
func (c *DataAPICounter) CountByTag(ctx context.Context, tag string) (pipeline.StoreCounts, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.Ping(ctx); err != nil {
		return pipeline.StoreCounts{}, err
	}

	result, err := c.client.ExecuteStatement(ctx, &rdsdata.ExecuteStatementInput{
		ResourceArn: aws.String(c.clusterARN),
		SecretArn:   aws.String(c.secretARN),
		Database:    aws.String(c.database),
		Sql:         aws.String(c.query),
		Parameters: []rdsdatatypes.SqlParameter{
			{Name: aws.String("tag"), Value: &rdsdatatypes.FieldMemberStringValue{Value: tag}},
		},
	})
	if err != nil {
		return pipeline.StoreCounts{}, errors.Wrap(err, "Data API ExecuteStatement")
	}
	if len(result.Records) != 1 || len(result.Records[0]) != 2 {
		return pipeline.StoreCounts{}, errors.Newf("count query returned %d rows, want 1 row of 2 columns", len(result.Records))
	}

	docs, err := longField(result.Records[0][0])
	if err != nil {
		return pipeline.StoreCounts{}, errors.Wrap(err, "documents column")
	}
	chunks, err := longField(result.Records[0][1])
	if err != nil {
		return pipeline.StoreCounts{}, errors.Wrap(err, "chunks column")
	}
	counts := pipeline.StoreCounts{Documents: int(docs), Chunks: int(chunks)}
	log.Debug().Str("runTag", tag).Int("documents", counts.Documents).Int("chunks", counts.Chunks).Msg("Store counts read via Data API")
	return counts, nil
}

func longField(f rdsdatatypes.Field) (int64, error) {
	switch v := f.(type) {
	case *rdsdatatypes.FieldMemberLongValue:
		return v.Value, nil
	case *rdsdatatypes.FieldMemberIsNull:
		return 0, nil
	default:
		return 0, errors.Newf("unexpected field type %T", f)
	}
}
