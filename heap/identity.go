package heap

import (
	"path/filepath"

	"github.com/OneOfOne/xxhash"

	"heapdb/common"
)

// fileIdentity derives a file id from the canonical absolute path, so every instance opened over the same
// file gets the same id.
func fileIdentity(path string) common.FileID {
	canonical, err := filepath.Abs(path)
	if err != nil {
		canonical = filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(canonical); err == nil {
		canonical = resolved
	}

	return common.FileID(xxhash.ChecksumString64(canonical))
}
