package artifact

import (
	"mime"
	"path"
)

// Per-record artifact layout. Every record owns a directory named after the
// record, holding at least these files.
const (
	InputFile   = "input"
	LogFile     = "output.log"
	HarnessFile = "test-harness.json"
	TraceFile   = "trace.json.gz"

	// InputPlaceholder is the token in the harness command line that stands
	// for the input artifact.
	InputPlaceholder = "%INPUT%"
)

// RecordPath joins a file name onto the record's artifact directory.
func RecordPath(name, file string) string {
	return name + "/" + file
}

// InputPath is the raw input artifact of a record.
func InputPath(name string) string { return RecordPath(name, InputFile) }

// LogPath is the execution log of a record.
func LogPath(name string) string { return RecordPath(name, LogFile) }

// HarnessPath is the invocation descriptor of a record.
func HarnessPath(name string) string { return RecordPath(name, HarnessFile) }

// TracePath is the compressed trace of a record, present when has_trace is set.
func TracePath(name string) string { return RecordPath(name, TraceFile) }

// DirPath is the record's artifact directory, with a trailing slash.
func DirPath(name string) string { return name + "/" }

// BaseName returns the last element of an artifact path.
func BaseName(p string) string { return path.Base(p) }

// ContentType returns the MIME type served for an artifact path.
func ContentType(p string) string {
	ext := path.Ext(p)
	switch ext {
	case "":
		return "application/octet-stream"
	case ".log":
		return "text/plain; charset=utf-8"
	}

	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return "application/octet-stream"
	}

	return ct
}
