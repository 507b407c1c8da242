package pipeline

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/fpang/doc-ingest-pipeline/internal/config"
)

// ErrSourceUnavailable marks a fatal failure to pull the corpus from object
// storage. Discovery must not run after it: a partial corpus would produce a
// misleading success report.
var ErrSourceUnavailable = errors.New("document source unavailable")

// Downloader copies every object under bucket/prefix into dest, preserving
// the key path relative to prefix, and reports how many files it wrote.
type Downloader interface {
	DownloadPrefix(ctx context.Context, bucket, prefix, dest string) (int, error)
}

// Acquire runs the source acquisition gate. When the source is disabled it
// returns immediately without touching dl, so no object-storage call is made.
// Otherwise it creates the destination and downloads the full prefix,
// overwriting files that already exist. Any failure is fatal for the run.
func Acquire(ctx context.Context, src config.Source, dl Downloader) (int, error) {
	if !src.Enabled {
		log.Info().Str("path", src.Destination).Msg("Remote source disabled, using local documents as given")
		return 0, nil
	}
	if dl == nil {
		return 0, errors.AssertionFailedf("source enabled but no downloader configured")
	}

	if err := os.MkdirAll(src.Destination, 0o755); err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "create destination directory %s", src.Destination), ErrSourceUnavailable)
	}

	endpoint := src.Endpoint
	if endpoint == "" {
		endpoint = "aws-default"
	}
	log.Info().
		Str("endpoint", endpoint).
		Str("bucket", src.Bucket).
		Str("prefix", src.Prefix).
		Str("destination", src.Destination).
		Msg("Downloading documents from object storage")

	n, err := dl.DownloadPrefix(ctx, src.Bucket, src.Prefix, src.Destination)
	if err != nil {
		err = errors.Wrapf(err, "download s3://%s/%s from %s", src.Bucket, src.Prefix, endpoint)
		err = errors.WithHint(err, "check source.endpoint, source.bucket and the source access key pair")
		return n, errors.Mark(err, ErrSourceUnavailable)
	}

	log.Info().Int("files", n).Str("destination", src.Destination).Msg("Source download complete")
	return n, nil
}
