package heap

import (
	"strings"

	"github.com/pkg/errors"

	"heapdb/common"
	"heapdb/disk/pages"
	"heapdb/logger"
)

// ScanErrorPolicy decides what a scan does when a page cannot be acquired.
type ScanErrorPolicy int

const (
	// SkipOnPageError logs the failure and continues with the next page.
	SkipOnPageError ScanErrorPolicy = iota

	// AbortOnPageError returns the failure to the caller. The scan stays on the failing page so calling
	// HasNext again retries it.
	AbortOnPageError
)

func (p ScanErrorPolicy) String() string {
	if p == AbortOnPageError {
		return "abort"
	}
	return "skip"
}

func ParseScanErrorPolicy(s string) (ScanErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return SkipOnPageError, nil
	case "abort":
		return AbortOnPageError, nil
	}
	return SkipOnPageError, errors.Errorf("unknown scan error policy %q", s)
}

type Option func(hf *HeapFile)

// WithFileID makes the file use id instead of the one derived from its path.
func WithFileID(id common.FileID) Option {
	return func(hf *HeapFile) {
		hf.id = id
		hf.idSet = true
	}
}

func WithCodec(c pages.Codec) Option {
	return func(hf *HeapFile) {
		hf.codec = c
	}
}

func WithScanErrorPolicy(p ScanErrorPolicy) Option {
	return func(hf *HeapFile) {
		hf.policy = p
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(hf *HeapFile) {
		hf.log = l
	}
}

// WithFsync makes every raw page write wait for the data to reach the disk.
func WithFsync(fsync bool) Option {
	return func(hf *HeapFile) {
		hf.fsync = fsync
	}
}
