package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flags to configuration keys. Flags only
// override a key when set explicitly.
var flagKeys = map[string]string{
	"documents":     "documents.path",
	"extensions":    "documents.extensions",
	"service-url":   "service.url",
	"collection":    "service.collection",
	"batch-size":    "ingest.batch_size",
	"timeout":       "ingest.request_timeout",
	"concurrency":   "ingest.concurrency",
	"rate":          "ingest.requests_per_second",
	"run-tag":       "ingest.run_tag",
	"source":        "source.enabled",
	"endpoint":      "source.endpoint",
	"bucket":        "source.bucket",
	"prefix":        "source.prefix",
	"store-backend": "store.backend",
	"verify":        "verify.enabled",
	"artifacts-dir": "artifacts.dir",
}

// bindFlags binds every mapped flag of the executing command into v. It runs
// per invocation because subcommands share flag names.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(key, f)
	})
	return bindErr
}

func addDocumentFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("documents", "d", "", "Local documents directory (documents.path)")
	cmd.Flags().StringSlice("extensions", nil, "Accepted file extensions, e.g. .md,.txt")
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("source", false, "Download documents from object storage first")
	cmd.Flags().String("endpoint", "", "Object storage endpoint URL")
	cmd.Flags().String("bucket", "", "Object storage bucket")
	cmd.Flags().String("prefix", "", "Key prefix to download")
}

func addIngestFlags(cmd *cobra.Command) {
	cmd.Flags().String("service-url", "", "Ingestion service base URL")
	cmd.Flags().String("collection", "", "Target collection")
	cmd.Flags().Int("batch-size", 0, "Documents per batch")
	cmd.Flags().Duration("timeout", 0, "Per-document request timeout")
	cmd.Flags().Int("concurrency", 0, "Documents in flight per batch")
	cmd.Flags().Float64("rate", 0, "Maximum requests per second (0 = unlimited)")
	cmd.Flags().String("run-tag", "", "Tag attached to every ingested document")
}

func addVerifyFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("verify", true, "Reconcile counts against the store after ingest")
	cmd.Flags().String("store-backend", "", "Store backend: postgres or dataapi")
}
