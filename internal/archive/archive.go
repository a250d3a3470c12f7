// Package archive uploads journal exports to S3-compatible object storage
// (AWS S3 or MinIO).
package archive

import (
	"bytes"
	"context"
	"log/slog"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"git.home.luguber.info/inful/wodesk/internal/config"
	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/journal"
	"git.home.luguber.info/inful/wodesk/internal/logfields"
)

const (
	defaultRegion = "us-east-1"
	contentType   = "application/x-ndjson"
	keyTimeLayout = "20060102T150405Z"
)

// Uploader writes journal exports into a single bucket.
type Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates an Uploader. Credentials are the configured static keys, or
// the default AWS chain (environment, shared config, instance role) when
// none are set. optFns are applied to the S3 client options after the
// configured endpoint.
func New(ctx context.Context, cfg config.ArchiveConfig, optFns ...func(*s3.Options)) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.ConfigError("archive.bucket is required").Build()
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryArchive, "load aws configuration").Build()
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		for _, fn := range optFns {
			fn(o)
		}
	})
	return &Uploader{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Key returns the object key for an export covering [start, end].
func (u *Uploader) Key(start, end time.Time) string {
	name := "journal-" + start.UTC().Format(keyTimeLayout) + "-" + end.UTC().Format(keyTimeLayout) + ".jsonl"
	return path.Join(u.prefix, name)
}

// Put uploads body under key.
func (u *Uploader) Put(ctx context.Context, key string, body []byte) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return errors.WrapError(err, errors.CategoryArchive, "upload object").
			WithContext("bucket", u.bucket).
			WithContext("key", key).
			WithRetry(errors.RetryBackoff).Build()
	}
	return nil
}

// ArchiveJournal exports the journal entries of [start, end] and uploads them
// as one JSON-lines object. Empty ranges upload nothing and return an empty key.
func (u *Uploader) ArchiveJournal(ctx context.Context, store journal.Store, start, end time.Time) (string, int, error) {
	if end.Before(start) {
		return "", 0, errors.ArchiveError("archive window ends before it starts").
			WithContext("start", start.Format(time.RFC3339)).
			WithContext("end", end.Format(time.RFC3339)).Build()
	}
	var buf bytes.Buffer
	n, err := journal.Export(ctx, store, &buf, start, end)
	if err != nil {
		return "", 0, err
	}
	if n == 0 {
		slog.Info("Journal archive skipped, no entries in range",
			slog.Time("start", start), slog.Time("end", end))
		return "", 0, nil
	}

	key := u.Key(start, end)
	if err := u.Put(ctx, key, buf.Bytes()); err != nil {
		return "", 0, err
	}
	slog.Info("Journal archived",
		logfields.Path(key),
		logfields.Count(n),
		slog.String("bucket", u.bucket))
	return key, n, nil
}
