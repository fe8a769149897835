package disk

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"heapdb/common"
)

// File is a flat file seen as a sequence of fixed size pages. Page k starts at offset k*pageSize and there
// is no file header. Reads and writes are positional so a File can be used by multiple goroutines.
type File struct {
	file     *os.File
	path     string
	pageSize int
	fsync    bool

	// mu serializes writes so that the end of file does not move between the range check and the write.
	mu sync.Mutex
}

// Open opens or creates the file at path. If fsync is true every page write is followed by a sync.
func Open(path string, pageSize int, fsync bool) (*File, error) {
	if pageSize <= 0 {
		return nil, errors.Errorf("invalid page size %d", pageSize)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, common.WrapIO(err, "open %v", path)
	}

	return &File{file: f, path: path, pageSize: pageSize, fsync: fsync}, nil
}

func (f *File) Path() string {
	return f.path
}

func (f *File) PageSize() int {
	return f.pageSize
}

// Size returns current length of the file in bytes.
func (f *File) Size() (int64, error) {
	stats, err := f.file.Stat()
	if err != nil {
		return 0, common.WrapIO(err, "stat %v", f.path)
	}
	return stats.Size(), nil
}

// NumPages is ceil(size / pageSize). A trailing partial page is counted.
func (f *File) NumPages() (int, error) {
	size, err := f.Size()
	if err != nil {
		return 0, err
	}
	ps := int64(f.pageSize)
	return int((size + ps - 1) / ps), nil
}

// CheckWellFormed returns ErrMalformedFile if file length is not a multiple of page size.
func (f *File) CheckWellFormed() error {
	size, err := f.Size()
	if err != nil {
		return err
	}
	if size%int64(f.pageSize) != 0 {
		return errors.Wrapf(common.ErrMalformedFile, "%v is %d bytes, page size is %d", f.path, size, f.pageSize)
	}
	return nil
}

// ReadPage reads the page at pageNum. A trailing partial page is returned zero padded to the page size.
func (f *File) ReadPage(pageNum int) ([]byte, error) {
	size, err := f.Size()
	if err != nil {
		return nil, err
	}

	offset := int64(pageNum) * int64(f.pageSize)
	if pageNum < 0 || offset >= size {
		return nil, errors.Wrapf(common.ErrPageOutOfRange, "page %d of %v, file size is %d", pageNum, f.path, size)
	}

	data := make([]byte, f.pageSize)
	n, err := f.file.ReadAt(data, offset)
	if err != nil && !(err == io.EOF && n > 0) {
		return nil, common.WrapIO(err, "read page %d of %v", pageNum, f.path)
	}
	return data, nil
}

// WritePage overwrites the page at pageNum. Writing to the page right after the last one extends the file,
// anything further away returns ErrPageOutOfRange.
func (f *File) WritePage(pageNum int, data []byte) error {
	if len(data) != f.pageSize {
		return errors.Wrapf(common.ErrSerialization, "page image is %d bytes, page size is %d", len(data), f.pageSize)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	numPages, err := f.NumPages()
	if err != nil {
		return err
	}
	if pageNum < 0 || pageNum > numPages {
		return errors.Wrapf(common.ErrPageOutOfRange, "page %d of %v, file has %d pages", pageNum, f.path, numPages)
	}

	return f.writeAt(pageNum, data)
}

// AppendPage writes data as a new page at the end of the file and returns its page number.
func (f *File) AppendPage(data []byte) (int, error) {
	if len(data) != f.pageSize {
		return 0, errors.Wrapf(common.ErrSerialization, "page image is %d bytes, page size is %d", len(data), f.pageSize)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	pageNum, err := f.NumPages()
	if err != nil {
		return 0, err
	}
	return pageNum, f.writeAt(pageNum, data)
}

func (f *File) writeAt(pageNum int, data []byte) error {
	n, err := f.file.WriteAt(data, int64(pageNum)*int64(f.pageSize))
	if err != nil {
		return common.WrapIO(err, "write page %d of %v", pageNum, f.path)
	}
	if n != f.pageSize {
		return common.WrapIO(io.ErrShortWrite, "write page %d of %v", pageNum, f.path)
	}

	if f.fsync {
		return f.Sync()
	}
	return nil
}

func (f *File) Sync() error {
	return common.WrapIO(f.file.Sync(), "sync %v", f.path)
}

func (f *File) Close() error {
	return common.WrapIO(f.file.Close(), "close %v", f.path)
}
