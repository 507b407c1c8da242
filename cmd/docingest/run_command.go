package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fpang/doc-ingest-pipeline/internal/awsboot"
	"github.com/fpang/doc-ingest-pipeline/internal/cli"
	"github.com/fpang/doc-ingest-pipeline/internal/ingestsvc"
	"github.com/fpang/doc-ingest-pipeline/internal/pipeline"
)

func newRunCommand(c *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every stage in order: acquire, discover, ingest, verify",
		Long: `Run executes the whole pipeline in one process. A failed document never
stops the run; it is reported in the summary. The command exits 2 when
ingestion completed but the store holds fewer rows than expected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandCtx(cmd)
			cfg := c.cfg
			awsboot.LogStartup("docingest run", version, cfg)

			if err := awsboot.Secrets(ctx, cfg); err != nil {
				return err
			}
			dl, err := awsboot.Downloader(ctx, cfg)
			if err != nil {
				return err
			}
			artifacts, err := awsboot.Artifacts(cfg)
			if err != nil {
				return err
			}

			runner := &pipeline.Runner{
				Config:     cfg,
				Downloader: dl,
				Ingester:   ingestsvc.NewClient(cfg.Service.URL, cfg.Service.Collection),
				Artifacts:  artifacts,
			}
			if cfg.Verify.Enabled {
				counter, release, err := awsboot.Counter(ctx, cfg)
				if err != nil {
					return err
				}
				defer release()
				runner.Counter = counter
			}

			res, err := runner.Run(ctx)
			writeResult(cmd.OutOrStdout(), cfg.Source.Enabled, res)
			if err != nil {
				return err
			}
			if res.Verification != nil && !res.Verification.Verified {
				return errVerificationFailed
			}
			return nil
		},
	}
	addSourceFlags(cmd)
	addDocumentFlags(cmd)
	addIngestFlags(cmd)
	addVerifyFlags(cmd)
	return cmd
}

// writeResult prints whatever the completed stages produced.
func writeResult(w io.Writer, sourceEnabled bool, res *pipeline.Result) {
	if res == nil {
		return
	}
	if sourceEnabled {
		fmt.Fprintf(w, "Downloaded %d files\n", res.Downloaded)
	}
	if res.Manifest == nil {
		return
	}
	fmt.Fprintf(w, "Discovered %d documents\n", len(res.Manifest))
	if res.Outcomes == nil {
		return
	}
	cli.WriteSummary(w, res.Summary)
	cli.WriteFailures(w, res.Outcomes)
	if res.Verification != nil {
		cli.WriteVerification(w, *res.Verification)
	}
}
