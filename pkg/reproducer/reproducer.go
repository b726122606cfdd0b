// Package reproducer packs a record's input together with a script that
// re-runs the test harness on it.
package reproducer

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethpandaops/reportoor/pkg/artifact"
	"github.com/ethpandaops/reportoor/pkg/descriptor"
	"github.com/sirupsen/logrus"
)

// Archive member names and modes.
const (
	InputMember  = "input"
	ScriptMember = "go.sh"

	inputMode  = 0o444
	scriptMode = 0o555
)

// Fetcher reads run files. A nil buffer with a nil error means the file
// does not exist.
type Fetcher interface {
	Get(ctx context.Context, filePath string) ([]byte, error)
}

// Harness is the invocation descriptor of a record.
type Harness struct {
	Command []string `json:"command"`
}

// Builder builds reproducer archives from a run's files.
type Builder struct {
	log   logrus.FieldLogger
	store Fetcher
}

// New creates a Builder reading from store.
func New(log logrus.FieldLogger, store Fetcher) *Builder {
	return &Builder{
		log:   log.WithField("component", "reproducer"),
		store: store,
	}
}

// FileName is the download name of a record's archive.
func FileName(name string) string {
	return artifact.BaseName(name) + "-reproducer.tar"
}

// Build returns the reproducer archive of a record. When the record's input
// cannot be fetched the archive is unavailable and Build returns nil with
// no error. A missing or malformed harness descriptor is an error.
func (b *Builder) Build(
	ctx context.Context,
	name string,
	desc *descriptor.Descriptor,
) ([]byte, error) {
	log := b.log.WithField("record", name)

	input, err := b.store.Get(ctx, artifact.InputPath(name))
	if err != nil {
		log.WithError(err).Warn("Fetching reproducer input failed")

		return nil, nil
	}

	if input == nil {
		log.Debug("Reproducer input not found")

		return nil, nil
	}

	harness, err := b.harness(ctx, name)
	if err != nil {
		return nil, err
	}

	var prelude string

	var modTime time.Time

	if desc != nil {
		prelude = desc.ReproducerPrelude
		modTime = desc.Start()
	}

	script := Script(prelude, harness.Command)

	archive, err := pack(modTime, input, script)
	if err != nil {
		return nil, fmt.Errorf("packing reproducer for %s: %w", name, err)
	}

	log.WithField("bytes", len(archive)).Debug("Reproducer built")

	return archive, nil
}

func (b *Builder) harness(ctx context.Context, name string) (*Harness, error) {
	p := artifact.HarnessPath(name)

	data, err := b.store.Get(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", p, err)
	}

	if data == nil {
		return nil, fmt.Errorf("fetching %s: not found", p)
	}

	var h Harness
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", p, err)
	}

	return &h, nil
}

// Script renders go.sh: the prelude followed by the harness command, with
// the input placeholder pointing at the archived input and the script's
// own arguments appended.
func Script(prelude string, command []string) string {
	args := make([]string, len(command))

	for i, arg := range command {
		if arg == artifact.InputPlaceholder {
			arg = InputMember
		}

		args[i] = arg
	}

	var sb strings.Builder

	sb.WriteString("#!/usr/bin/env bash\n")
	sb.WriteString("set -euo pipefail\n")
	sb.WriteString(`SCRIPT_DIR=$(realpath "$(dirname "${BASH_SOURCE[0]}")")`)
	sb.WriteString("\n\n")
	sb.WriteString(prelude)
	sb.WriteString("\n\n")
	sb.WriteString(strings.Join(args, " "))
	sb.WriteString(` "$@"`)
	sb.WriteString("\n")

	return sb.String()
}

func pack(modTime time.Time, input []byte, script string) ([]byte, error) {
	if modTime.Unix() <= 0 {
		modTime = time.Unix(0, 0)
	}

	var buf bytes.Buffer

	tw := tar.NewWriter(&buf)

	members := []struct {
		name string
		mode int64
		data []byte
	}{
		{InputMember, inputMode, input},
		{ScriptMember, scriptMode, []byte(script)},
	}

	for _, m := range members {
		hdr := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     m.name,
			Mode:     m.mode,
			Size:     int64(len(m.data)),
			ModTime:  modTime,
			Format:   tar.FormatUSTAR,
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("writing %s header: %w", m.name, err)
		}

		if _, err := tw.Write(m.data); err != nil {
			return nil, fmt.Errorf("writing %s: %w", m.name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}

	return buf.Bytes(), nil
}
