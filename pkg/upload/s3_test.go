package upload

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/report/reporttest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type putCall struct {
	key         string
	body        string
	contentType string
	acl         string
}

type fakePutter struct {
	mu    sync.Mutex
	calls []putCall
	fail  string
}

func (f *fakePutter) PutObject(
	_ context.Context,
	params *s3.PutObjectInput,
	_ ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	key := aws.ToString(params.Key)
	if key == f.fail {
		return nil, errors.New("access denied")
	}

	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, putCall{
		key:         key,
		body:        string(body),
		contentType: aws.ToString(params.ContentType),
		acl:         string(params.ACL),
	})

	return &s3.PutObjectOutput{}, nil
}

func (f *fakePutter) keys() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.key)
	}

	return out
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return log
}

func sourceConfig(prefix string) *config.SourceConfig {
	return &config.SourceConfig{
		SnapshotFile:   config.DefaultSnapshotFile,
		DescriptorFile: config.DefaultDescriptorFile,
		S3:             config.S3SourceConfig{Enabled: true, Bucket: "reports", Prefix: prefix},
	}
}

func TestUpload(t *testing.T) {
	dir := reporttest.WriteRun(t)
	putter := &fakePutter{}
	u := newS3Uploader(quietLogger(), sourceConfig("/runs/nightly/"), Options{ACL: "public-read"}, putter)

	count, err := u.Upload(context.Background(), dir)
	require.NoError(t, err)

	keys := putter.keys()
	require.Len(t, keys, count)

	// The descriptor and snapshot are published after every artifact.
	assert.Equal(t, "runs/nightly/meta.yml", keys[len(keys)-2])
	assert.Equal(t, "runs/nightly/main.db", keys[len(keys)-1])

	artifacts := append([]string(nil), keys[:len(keys)-2]...)
	sort.Strings(artifacts)
	assert.Contains(t, artifacts, "runs/nightly/bin/crash/input")
	assert.Contains(t, artifacts, "runs/nightly/bin/crash/trace.json.gz")
	assert.NotContains(t, artifacts, "runs/nightly/main.db")

	for _, c := range putter.calls {
		assert.Equal(t, "public-read", c.acl)

		if c.key == "runs/nightly/bin/echo/output.log" {
			assert.Equal(t, "log of bin/echo\n", c.body)
			assert.Contains(t, c.contentType, "text/plain")
		}
	}
}

func TestUpload_MissingSnapshot(t *testing.T) {
	dir := reporttest.WriteRun(t)
	require.NoError(t, os.Remove(filepath.Join(dir, config.DefaultSnapshotFile)))

	putter := &fakePutter{}
	u := newS3Uploader(quietLogger(), sourceConfig(""), Options{}, putter)

	_, err := u.Upload(context.Background(), dir)
	require.Error(t, err)
	assert.Empty(t, putter.calls)
}

func TestUpload_FailureSkipsIndex(t *testing.T) {
	dir := reporttest.WriteRun(t)
	putter := &fakePutter{fail: "bin/crash/input"}
	u := newS3Uploader(quietLogger(), sourceConfig(""), Options{Concurrency: 1}, putter)

	_, err := u.Upload(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bin/crash/input")
	assert.NotContains(t, putter.keys(), "main.db")
}

func TestPreflight(t *testing.T) {
	putter := &fakePutter{}
	u := newS3Uploader(quietLogger(), sourceConfig("runs"), Options{}, putter)

	require.NoError(t, u.Preflight(context.Background()))
	assert.Equal(t, []string{"runs/.reportoor-write-test"}, putter.keys())
}

func TestNewS3Uploader_RequiresS3(t *testing.T) {
	_, err := NewS3Uploader(quietLogger(), &config.SourceConfig{}, Options{})
	require.Error(t, err)

	u, err := NewS3Uploader(quietLogger(), sourceConfig(""), Options{})
	require.NoError(t, err)
	assert.NotNil(t, u)
}

func TestKey(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "bin/a/input"},
		{"runs", "runs/bin/a/input"},
		{"/runs/x/", "runs/x/bin/a/input"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			u := newS3Uploader(quietLogger(), sourceConfig(tt.prefix), Options{}, &fakePutter{})
			assert.Equal(t, tt.want, u.key("bin/a/input"))
		})
	}
}
