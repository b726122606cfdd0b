package upload

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ethpandaops/reportoor/pkg/artifact"
	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	preflightKey       = ".reportoor-write-test"
	defaultConcurrency = 8
)

// objectPutter is the subset of *s3.Client used for publishing.
type objectPutter interface {
	PutObject(
		ctx context.Context,
		params *s3.PutObjectInput,
		optFns ...func(*s3.Options),
	) (*s3.PutObjectOutput, error)
}

// Options tunes how objects are written.
type Options struct {
	ACL          string
	StorageClass string
	// Concurrency bounds parallel artifact uploads. Zero uses a default.
	Concurrency int
}

// s3Uploader implements Uploader for S3-compatible storage.
type s3Uploader struct {
	log    logrus.FieldLogger
	source *config.SourceConfig
	opts   Options
	client objectPutter
}

// Ensure interface compliance.
var _ Uploader = (*s3Uploader)(nil)

// NewS3Uploader creates an uploader writing to the configured S3 source.
func NewS3Uploader(
	log logrus.FieldLogger,
	source *config.SourceConfig,
	opts Options,
) (Uploader, error) {
	if !source.S3.Enabled || source.S3.Bucket == "" {
		return nil, fmt.Errorf("publishing requires an enabled s3 source with a bucket")
	}

	return newS3Uploader(log, source, opts, artifact.NewS3Client(&source.S3)), nil
}

func newS3Uploader(
	log logrus.FieldLogger,
	source *config.SourceConfig,
	opts Options,
	client objectPutter,
) *s3Uploader {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}

	return &s3Uploader{
		log:    log.WithField("component", "s3-uploader"),
		source: source,
		opts:   opts,
		client: client,
	}
}

// Preflight verifies S3 connectivity by writing a small test object.
func (u *s3Uploader) Preflight(ctx context.Context) error {
	content := fmt.Sprintf("reportoor write test: %s", time.Now().UTC().Format(time.RFC3339))

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.source.S3.Bucket),
		Key:         aws.String(u.key(preflightKey)),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("writing test object to s3://%s: %w", u.source.S3.Bucket, err)
	}

	return nil
}

// Upload publishes localDir. Record artifacts go first, in parallel; the
// descriptor and then the snapshot go last, so a report opened while the
// upload runs never lists records whose artifacts are still missing.
func (u *s3Uploader) Upload(ctx context.Context, localDir string) (int, error) {
	files, err := u.collect(localDir)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.Concurrency)

	for _, rel := range files {
		rel := rel
		g.Go(func() error {
			return u.uploadFile(gctx, localDir, rel)
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	for _, rel := range []string{u.source.DescriptorFile, u.source.SnapshotFile} {
		if err := u.uploadFile(ctx, localDir, rel); err != nil {
			return 0, err
		}
	}

	count := len(files) + 2

	u.log.WithFields(logrus.Fields{
		"files":  count,
		"bucket": u.source.S3.Bucket,
		"prefix": u.source.S3.Prefix,
	}).Info("Upload completed")

	return count, nil
}

// collect returns the slash-separated paths of every artifact under
// localDir, excluding the snapshot and descriptor, which must exist.
func (u *s3Uploader) collect(localDir string) ([]string, error) {
	for _, name := range []string{u.source.SnapshotFile, u.source.DescriptorFile} {
		if _, err := os.Stat(filepath.Join(localDir, filepath.FromSlash(name))); err != nil {
			return nil, fmt.Errorf("run directory %s: %w", localDir, err)
		}
	}

	var files []string

	err := filepath.WalkDir(localDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}

		rel = filepath.ToSlash(rel)
		if rel == u.source.SnapshotFile || rel == u.source.DescriptorFile {
			return nil
		}

		files = append(files, rel)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory %s: %w", localDir, err)
	}

	return files, nil
}

// uploadFile uploads a single file to S3.
func (u *s3Uploader) uploadFile(ctx context.Context, localDir, rel string) error {
	f, err := os.Open(filepath.Join(localDir, filepath.FromSlash(rel)))
	if err != nil {
		return fmt.Errorf("opening %s: %w", rel, err)
	}
	defer func() { _ = f.Close() }()

	key := u.key(rel)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.source.S3.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(artifact.ContentType(rel)),
	}

	if u.opts.StorageClass != "" {
		input.StorageClass = s3types.StorageClass(u.opts.StorageClass)
	}

	if u.opts.ACL != "" {
		input.ACL = s3types.ObjectCannedACL(u.opts.ACL)
	}

	u.log.WithFields(logrus.Fields{
		"key":    key,
		"bucket": u.source.S3.Bucket,
	}).Debug("Uploading file")

	if _, err := u.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("uploading %s: %w", rel, err)
	}

	return nil
}

// key maps a run-relative path to its object key, matching the artifact
// store's layout.
func (u *s3Uploader) key(rel string) string {
	prefix := strings.Trim(u.source.S3.Prefix, "/")
	if prefix == "" {
		return rel
	}

	return prefix + "/" + rel
}
