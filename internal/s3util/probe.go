package s3util

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"
)

// ObjectInfo describes one listed object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ProbeReport is the outcome of a connectivity probe against a bucket prefix.
type ProbeReport struct {
	Bucket      string
	Prefix      string
	Objects     []ObjectInfo
	SampleKey   string
	SampleBytes int64
}

// Probe checks that bucket is reachable with the configured credentials,
// lists the objects under prefix (directory markers excluded) and reads the
// first one fully into memory. An empty prefix is not an error; callers
// should warn on an empty Objects list.
func Probe(ctx context.Context, api ObjectAPI, bucket, prefix string) (ProbeReport, error) {
	report := ProbeReport{Bucket: bucket, Prefix: prefix}

	if _, err := api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return report, errors.WithHint(
			errors.Wrapf(err, "bucket %q does not exist or access is denied", bucket),
			"check the bucket name and that the access key may read it",
		)
	}

	paginator := s3.NewListObjectsV2Paginator(api, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return report, errors.Wrapf(err, "list objects in %s/%s", bucket, prefix)
		}
		for _, obj := range page.Contents {
			if _, ok, _ := RelativePath(prefix, aws.ToString(obj.Key)); !ok {
				continue
			}
			report.Objects = append(report.Objects, ObjectInfo{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			})
		}
	}
	if len(report.Objects) == 0 {
		return report, nil
	}

	report.SampleKey = report.Objects[0].Key
	out, err := api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(report.SampleKey),
	})
	if err != nil {
		return report, errors.Wrapf(err, "download %s", report.SampleKey)
	}
	defer out.Body.Close()
	n, err := io.Copy(io.Discard, out.Body)
	if err != nil {
		return report, errors.Wrapf(err, "read %s", report.SampleKey)
	}
	report.SampleBytes = n
	return report, nil
}
