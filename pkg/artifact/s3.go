package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ethpandaops/reportoor/pkg/config"
)

// Compile-time interface check.
var _ Store = (*s3Store)(nil)

type s3Store struct {
	client  *s3.Client
	bucket  string
	prefix  string
	presign *presignCache
}

// NewS3Store creates a Store backed by a prefix in an S3-compatible bucket.
func NewS3Store(cfg *config.S3SourceConfig) Store {
	expiry, err := cfg.PresignDuration()
	if err != nil {
		expiry = time.Hour
	}

	client := NewS3Client(cfg)

	return &s3Store{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		presign: newPresignCache(s3.NewPresignClient(client), expiry),
	}
}

// Location returns the s3:// URL of the run root.
func (s *s3Store) Location() string {
	if s.prefix == "" {
		return "s3://" + s.bucket
	}

	return "s3://" + s.bucket + "/" + s.prefix
}

func (s *s3Store) key(filePath string) string {
	if s.prefix == "" {
		return filePath
	}

	return s.prefix + "/" + filePath
}

// Get reads {prefix}/{filePath} from S3.
// Returns (nil, nil) when the key does not exist.
func (s *s3Store) Get(ctx context.Context, filePath string) ([]byte, error) {
	if !IsAllowedPath(filePath) {
		return nil, fmt.Errorf("path %q is not allowed", filePath)
	}

	key := s.key(filePath)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("getting object %q: %w", key, err)
	}

	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object %q: %w", key, err)
	}

	return data, nil
}

// List lists objects and common prefixes directly under {prefix}/{dir}/.
func (s *s3Store) List(ctx context.Context, dir string) ([]string, error) {
	dir = strings.TrimSuffix(dir, "/")
	if dir != "" && !IsAllowedPath(dir) {
		return nil, fmt.Errorf("path %q is not allowed", dir)
	}

	listPrefix := s.key(dir)
	if listPrefix != "" {
		listPrefix += "/"
	}

	paginator := s3.NewListObjectsV2Paginator(
		s.client, &s3.ListObjectsV2Input{
			Bucket:    aws.String(s.bucket),
			Prefix:    aws.String(listPrefix),
			Delimiter: aws.String("/"),
		},
	)

	var names []string

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing objects under %q: %w", listPrefix, err)
		}

		for _, cp := range page.CommonPrefixes {
			if cp.Prefix != nil {
				// "prefix/name/sub/" → "sub/"
				names = append(names, path.Base(strings.TrimRight(*cp.Prefix, "/"))+"/")
			}
		}

		for _, obj := range page.Contents {
			if obj.Key != nil && *obj.Key != listPrefix {
				names = append(names, path.Base(*obj.Key))
			}
		}
	}

	sort.Strings(names)

	return names, nil
}

func isS3NotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	return strings.Contains(err.Error(), "NoSuchKey")
}

// NewS3Client creates an S3 client for the source configuration. An empty
// region defaults to us-east-1.
func NewS3Client(cfg *config.S3SourceConfig) *s3.Client {
	opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.Region != "" {
				o.Region = cfg.Region
			} else {
				o.Region = "us-east-1"
			}

			if cfg.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
			}

			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}

			if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID, cfg.SecretAccessKey, "",
				)
			}
		},
	}

	return s3.New(s3.Options{}, opts...)
}
