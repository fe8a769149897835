package disk

import (
	"io"
	"os"

	"github.com/golang/snappy"

	"heapdb/common"
)

// Backup writes the whole page image of the file to w as a snappy framed stream. It returns the number of
// uncompressed bytes copied.
func (f *File) Backup(w io.Writer) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sw := snappy.NewBufferedWriter(w)
	n, err := io.Copy(sw, io.NewSectionReader(f.file, 0, 1<<62))
	if err != nil {
		return n, common.WrapIO(err, "backup %v", f.path)
	}
	return n, common.WrapIO(sw.Close(), "backup %v", f.path)
}

// Restore decodes a stream written by Backup into a new file at path, replacing it if it exists. The
// temporary file written next to path is removed if anything fails.
func Restore(r io.Reader, path string) (n int64, err error) {
	tmp := path + ".restore"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, common.WrapIO(err, "create %v", tmp)
	}

	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			_ = out.Close()
		}
		_ = os.Remove(tmp)
	}()

	n, err = io.Copy(out, snappy.NewReader(r))
	if err != nil {
		return n, common.WrapIO(err, "restore %v", path)
	}
	if err = out.Sync(); err != nil {
		return n, common.WrapIO(err, "sync %v", tmp)
	}
	closed = true
	if err = out.Close(); err != nil {
		return n, common.WrapIO(err, "close %v", tmp)
	}
	if err = os.Rename(tmp, path); err != nil {
		return n, common.WrapIO(err, "rename %v", tmp)
	}
	return n, nil
}
