package s3util

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
)

// Downloader mirrors a bucket prefix into a local directory.
type Downloader struct {
	api ObjectAPI
}

// NewDownloader wraps an S3 client.
func NewDownloader(api ObjectAPI) *Downloader {
	return &Downloader{api: api}
}

// DownloadPrefix copies every object under prefix into dest, keeping the key
// path relative to prefix. Directory markers are skipped and existing files
// are overwritten. It stops at the first error.
func (d *Downloader) DownloadPrefix(ctx context.Context, bucket, prefix, dest string) (int, error) {
	paginator := s3.NewListObjectsV2Paginator(d.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	downloaded := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return downloaded, errors.Wrap(err, "S3 ListObjectsV2")
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			rel, ok, err := RelativePath(prefix, key)
			if err != nil {
				return downloaded, err
			}
			if !ok {
				continue
			}

			localPath := filepath.Join(dest, rel)
			if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
				return downloaded, errors.Wrapf(err, "create directory for %s", rel)
			}
			log.Debug().Str("key", key).Str("localPath", localPath).Msg("Downloading")
			if err := DownloadToFile(ctx, d.api, bucket, key, localPath); err != nil {
				return downloaded, errors.Wrapf(err, "download %s", key)
			}
			downloaded++
		}
	}
	return downloaded, nil
}

// RelativePath maps an object key to a local path relative to the download
// root by stripping prefix. ok is false for directory markers and for the
// prefix object itself. Keys that would escape the root are rejected.
func RelativePath(prefix, key string) (rel string, ok bool, err error) {
	if strings.HasSuffix(key, "/") {
		return "", false, nil
	}
	trimmed := strings.TrimLeft(strings.TrimPrefix(key, prefix), "/")
	if trimmed == "" {
		return "", false, nil
	}
	clean := path.Clean(trimmed)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false, errors.Newf("object key %q escapes the download directory", key)
	}
	return filepath.FromSlash(clean), true, nil
}

// DownloadToFile writes an object to localPath. The body is staged in a
// temporary file next to localPath and renamed into place, so a failed
// transfer never leaves a truncated document behind.
func DownloadToFile(ctx context.Context, api ObjectAPI, bucket, key, localPath string) error {
	result, err := api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrap(err, "S3 GetObject")
	}
	defer result.Body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(localPath), ".download-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, result.Body); err != nil {
		tmp.Close()
		return errors.Wrap(err, "read object body")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "flush temp file")
	}
	if err := os.Rename(tmp.Name(), localPath); err != nil {
		return errors.Wrap(err, "move into place")
	}
	return nil
}
