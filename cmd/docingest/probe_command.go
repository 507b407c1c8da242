package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/doc-ingest-pipeline/internal/awsboot"
	"github.com/fpang/doc-ingest-pipeline/internal/cli"
	"github.com/fpang/doc-ingest-pipeline/internal/config"
	"github.com/fpang/doc-ingest-pipeline/internal/ingestsvc"
	"github.com/fpang/doc-ingest-pipeline/internal/s3util"
)

func newProbeCommand(c *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check connectivity to object storage and the ingestion service",
		Long: `Probe verifies the configured bucket is reachable, lists the objects under
the prefix, fetches the first one and calls the ingestion service health
endpoint. Nothing is written locally. Object storage is only probed when
source.enabled is true.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandCtx(cmd)
			cfg := c.cfg
			out := cmd.OutOrStdout()
			var failed []error

			if cfg.Source.Enabled {
				if err := probeSource(cmd, cfg); err != nil {
					fmt.Fprintf(out, "Object storage: FAILED: %v\n", err)
					failed = append(failed, err)
				}
			} else {
				fmt.Fprintln(out, "Object storage: skipped (source disabled)")
			}

			svc := ingestsvc.NewClient(cfg.Service.URL, cfg.Service.Collection)
			if err := svc.Health(ctx); err != nil {
				fmt.Fprintf(out, "Ingestion service %s: FAILED: %v\n", cfg.Service.URL, err)
				failed = append(failed, err)
			} else {
				fmt.Fprintf(out, "Ingestion service %s: healthy\n", cfg.Service.URL)
			}

			if len(failed) > 0 {
				return errors.Wrapf(errors.Join(failed...), "%d probe(s) failed", len(failed))
			}
			return nil
		},
	}
	addSourceFlags(cmd)
	addIngestFlags(cmd)
	return cmd
}

func probeSource(cmd *cobra.Command, cfg *config.Config) error {
	ctx := commandCtx(cmd)
	if err := awsboot.Secrets(ctx, cfg); err != nil {
		return err
	}
	client, err := s3util.NewClient(ctx, cfg.Source)
	if err != nil {
		return err
	}
	report, err := s3util.Probe(ctx, client, cfg.Source.Bucket, cfg.Source.Prefix)
	if err != nil {
		return err
	}
	endpoint := cfg.Source.Endpoint
	if endpoint == "" {
		endpoint = "aws-default"
	}
	cli.WriteProbe(cmd.OutOrStdout(), endpoint, report)
	if len(report.Objects) == 0 {
		log.Warn().Str("bucket", report.Bucket).Str("prefix", report.Prefix).Msg("No objects under prefix, a run would ingest nothing")
	}
	return nil
}
