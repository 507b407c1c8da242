package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/fpang/doc-ingest-pipeline/internal/awsboot"
	"github.com/fpang/doc-ingest-pipeline/internal/cli"
	"github.com/fpang/doc-ingest-pipeline/internal/config"
	"github.com/fpang/doc-ingest-pipeline/internal/ingestsvc"
	"github.com/fpang/doc-ingest-pipeline/internal/pipeline"
)

func newAcquireCommand(c *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acquire",
		Short: "Download the document prefix from object storage into documents.path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandCtx(cmd)
			cfg := c.cfg
			awsboot.LogStartup("docingest acquire", version, cfg)

			if err := awsboot.Secrets(ctx, cfg); err != nil {
				return err
			}
			dl, err := awsboot.Downloader(ctx, cfg)
			if err != nil {
				return err
			}
			n, err := pipeline.Acquire(ctx, cfg.Source, dl)
			if err != nil {
				return err
			}
			if !cfg.Source.Enabled {
				fmt.Fprintf(cmd.OutOrStdout(), "Source disabled; %s used as given\n", cfg.Documents.Path)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %d files into %s\n", n, cfg.Source.Destination)
			return nil
		},
	}
	addSourceFlags(cmd)
	addDocumentFlags(cmd)
	return cmd
}

func newDiscoverCommand(c *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Scan documents.path and write the manifest artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			dir, err := awsboot.RequireArtifacts(cfg)
			if err != nil {
				return err
			}
			manifest, err := pipeline.Discover(cfg.Documents.Path, cfg.Documents.Extensions)
			if err != nil {
				return err
			}
			if err := dir.Write(pipeline.ManifestArtifact, manifest); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Discovered %d documents\n", len(manifest))
			return nil
		},
	}
	addDocumentFlags(cmd)
	return cmd
}

func newIngestCommand(c *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Send the manifest artifact to the ingestion service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandCtx(cmd)
			cfg := c.cfg
			awsboot.LogStartup("docingest ingest", version, cfg)

			dir, err := awsboot.RequireArtifacts(cfg)
			if err != nil {
				return err
			}
			var manifest []pipeline.ManifestEntry
			if err := dir.Read(pipeline.ManifestArtifact, &manifest); err != nil {
				return err
			}

			orch, err := pipeline.NewOrchestrator(ingestsvc.NewClient(cfg.Service.URL, cfg.Service.Collection), cfg.Ingest)
			if err != nil {
				return err
			}
			outcomes, summary, runErr := orch.Run(ctx, manifest)
			if err := dir.Write(pipeline.OutcomesArtifact, outcomes); err != nil {
				return err
			}
			if err := dir.Write(pipeline.SummaryArtifact, summary); err != nil {
				return err
			}
			cli.WriteSummary(cmd.OutOrStdout(), summary)
			cli.WriteFailures(cmd.OutOrStdout(), outcomes)
			return runErr
		},
	}
	addIngestFlags(cmd)
	return cmd
}

func newVerifyCommand(c *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Reconcile the summary artifact against the chunk store",
		Long: `Verify reads the summary written by ingest and counts the documents and
chunks stored under its run tag. It exits 2 when the store holds fewer rows
than the summary expects.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandCtx(cmd)
			cfg := c.cfg
			if !cfg.Verify.Enabled {
				return errors.WithHint(
					errors.Wrap(config.ErrInvalidConfig, "verify.enabled is false"),
					"unset DOCINGEST_VERIFY_ENABLED or pass --verify",
				)
			}
			awsboot.LogStartup("docingest verify", version, cfg)

			dir, err := awsboot.RequireArtifacts(cfg)
			if err != nil {
				return err
			}
			var summary pipeline.RunSummary
			if err := dir.Read(pipeline.SummaryArtifact, &summary); err != nil {
				return err
			}

			if err := awsboot.Secrets(ctx, cfg); err != nil {
				return err
			}
			counter, release, err := awsboot.Counter(ctx, cfg)
			if err != nil {
				return err
			}
			defer release()

			report, err := pipeline.Reconcile(ctx, summary, counter)
			if err != nil {
				return err
			}
			if err := dir.Write(pipeline.VerificationArtifact, report); err != nil {
				return err
			}
			cli.WriteVerification(cmd.OutOrStdout(), report)
			if !report.Verified {
				return errVerificationFailed
			}
			return nil
		},
	}
	addVerifyFlags(cmd)
	return cmd
}
