package heap

import (
	"github.com/pkg/errors"

	"heapdb/catalog"
	"heapdb/common"
	"heapdb/disk"
	"heapdb/disk/pages"
	"heapdb/logger"
	"heapdb/transaction"
)

// HeapFile stores tuples of a single schema in an unordered sequence of pages. All page accesses of
// transactions go through the page cache; ReadPage and WritePage are the raw io the cache uses on a miss
// and on flush. A HeapFile is not safe for concurrent use except through the cache.
type HeapFile struct {
	file   *disk.File
	schema *catalog.Schema
	cache  PageCache
	codec  pages.Codec
	policy ScanErrorPolicy
	log    *logger.Logger
	fsync  bool

	id    common.FileID
	idSet bool
}

func Open(path string, schema *catalog.Schema, cache PageCache, opts ...Option) (*HeapFile, error) {
	if schema == nil || schema.NumFields() == 0 {
		return nil, common.ErrInvalidSchema
	}

	hf := &HeapFile{schema: schema, cache: cache}
	for _, opt := range opts {
		opt(hf)
	}

	if hf.codec == nil {
		codec, err := pages.NewHeapPageCodec(schema, cache.PageSize())
		if err != nil {
			return nil, err
		}
		hf.codec = codec
	}

	f, err := disk.Open(path, cache.PageSize(), hf.fsync)
	if err != nil {
		return nil, err
	}
	hf.file = f

	if !hf.idSet {
		hf.id = fileIdentity(path)
	}
	hf.log = logger.OrNop(hf.log).Named("heap").With("file", path, "file_id", hf.id)

	if err := f.CheckWellFormed(); err != nil {
		hf.log.Warn("heap file is not well formed", "error", err)
	}
	return hf, nil
}

func (hf *HeapFile) ID() common.FileID {
	return hf.id
}

func (hf *HeapFile) Path() string {
	return hf.file.Path()
}

func (hf *HeapFile) Schema() *catalog.Schema {
	return hf.schema
}

func (hf *HeapFile) Codec() pages.Codec {
	return hf.codec
}

func (hf *HeapFile) PageSize() int {
	return hf.cache.PageSize()
}

// NumPages is ceil(file length / page size).
func (hf *HeapFile) NumPages() (int, error) {
	return hf.file.NumPages()
}

// CheckWellFormed returns ErrMalformedFile if the file length is not a multiple of the page size.
func (hf *HeapFile) CheckWellFormed() error {
	return hf.file.CheckWellFormed()
}

// ReadPage reads and decodes a page directly from disk.
func (hf *HeapFile) ReadPage(pid common.PageID) (pages.Page, error) {
	if pid.FileID != hf.id {
		return nil, errors.Wrapf(common.ErrWrongFile, "%v, file id is %d", pid, hf.id)
	}

	data, err := hf.file.ReadPage(pid.PageNum)
	if err != nil {
		return nil, err
	}
	return hf.codec.Decode(pid, data)
}

// WritePage writes a page directly to disk. Writing the page right after the last one extends the file.
func (hf *HeapFile) WritePage(p pages.Page) error {
	pid := p.ID()
	if pid.FileID != hf.id {
		return errors.Wrapf(common.ErrWrongFile, "%v, file id is %d", pid, hf.id)
	}

	return hf.file.WritePage(pid.PageNum, p.Data())
}

// InsertTuple adds t to the first page having an empty slot, appending a new page if there is none. It
// returns the modified page, which is marked dirty by txn, and sets the record id of t.
func (hf *HeapFile) InsertTuple(txn transaction.Transaction, t *catalog.Tuple) ([]pages.Page, error) {
	if !t.Schema().Equals(hf.schema) {
		return nil, errors.Wrapf(common.ErrSchemaMismatch, "file schema is %v, tuple schema is %v", hf.schema, t.Schema())
	}

	n, err := hf.NumPages()
	if err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		pid := common.NewPageID(hf.id, i)
		held := hf.holds(txn, pid)
		p, err := hf.cache.AcquirePage(txn, pid, transaction.ReadOnly)
		if err != nil {
			return nil, err
		}

		if p.NumEmptySlots() == 0 {
			// locks taken before the probe, e.g. by a scan of txn, are kept until txn ends
			if !held {
				hf.release(txn, pid)
			}
			continue
		}

		p, err = hf.cache.AcquirePage(txn, pid, transaction.ReadWrite)
		if err != nil {
			return nil, err
		}

		modified, err := hf.insertInto(txn, p, t)
		if errors.Is(err, pages.ErrPageFull) {
			continue
		}
		return modified, err
	}

	pageNum, err := hf.file.AppendPage(hf.codec.EmptyPageData())
	if err != nil {
		return nil, err
	}

	p, err := hf.cache.AcquirePage(txn, common.NewPageID(hf.id, pageNum), transaction.ReadWrite)
	if err != nil {
		return nil, err
	}
	return hf.insertInto(txn, p, t)
}

func (hf *HeapFile) insertInto(txn transaction.Transaction, p pages.Page, t *catalog.Tuple) ([]pages.Page, error) {
	if err := p.InsertTuple(t); err != nil {
		return nil, err
	}

	p.MarkDirty(true, txn.GetID())
	return []pages.Page{p}, nil
}

func (hf *HeapFile) holds(txn transaction.Transaction, pid common.PageID) bool {
	r, ok := hf.cache.(PageReleaser)
	return ok && r.HoldsLock(txn, pid)
}

func (hf *HeapFile) release(txn transaction.Transaction, pid common.PageID) {
	if r, ok := hf.cache.(PageReleaser); ok {
		r.ReleasePage(txn, pid)
	}
}

// DeleteTuple removes t from the page its record id points to and clears the record id.
func (hf *HeapFile) DeleteTuple(txn transaction.Transaction, t *catalog.Tuple) ([]pages.Page, error) {
	rid := t.RecordID()
	if rid == nil {
		return nil, common.ErrMissingLocationTag
	}
	if rid.PageID.FileID != hf.id {
		return nil, errors.Wrapf(common.ErrWrongFile, "%v, file id is %d", rid, hf.id)
	}

	p, err := hf.cache.AcquirePage(txn, rid.PageID, transaction.ReadWrite)
	if err != nil {
		return nil, err
	}

	if err := p.DeleteTuple(t); err != nil {
		return nil, err
	}
	p.MarkDirty(true, txn.GetID())
	return []pages.Page{p}, nil
}

// Iterator returns a closed scan over all tuples of the file. Call Open before using it.
func (hf *HeapFile) Iterator(txn transaction.Transaction) *Scan {
	return newScan(hf, txn)
}

// SlotUsage counts used and empty slots by reading every page directly from disk.
func (hf *HeapFile) SlotUsage() (used, empty int, err error) {
	n, err := hf.NumPages()
	if err != nil {
		return 0, 0, err
	}

	for i := 0; i < n; i++ {
		p, err := hf.ReadPage(common.NewPageID(hf.id, i))
		if err != nil {
			return 0, 0, err
		}

		empty += p.NumEmptySlots()
		for it := p.Iterator(); it.HasNext(); {
			if _, err := it.Next(); err != nil {
				return 0, 0, err
			}
			used++
		}
	}
	return used, empty, nil
}

func (hf *HeapFile) Close() error {
	return hf.file.Close()
}
