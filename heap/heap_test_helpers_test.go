package heap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"heapdb/catalog"
	"heapdb/catalog/db_types"
	"heapdb/common"
	"heapdb/disk/pages"
	"heapdb/transaction"
)

// fakeCache reads pages straight from the heap file and remembers every request.
type fakeCache struct {
	pageSize int
	hf       *HeapFile
	pages    map[common.PageID]pages.Page
	fail     map[int]error

	acquired []common.PageID
	perms    []transaction.Permission
	released []common.PageID
	held     map[common.PageID]bool
}

func newFakeCache(pageSize int) *fakeCache {
	return &fakeCache{
		pageSize: pageSize,
		pages:    map[common.PageID]pages.Page{},
		fail:     map[int]error{},
		held:     map[common.PageID]bool{},
	}
}

func (c *fakeCache) AcquirePage(txn transaction.Transaction, pid common.PageID, perm transaction.Permission) (pages.Page, error) {
	c.acquired = append(c.acquired, pid)
	c.perms = append(c.perms, perm)

	if err, ok := c.fail[pid.PageNum]; ok {
		return nil, err
	}
	c.held[pid] = true
	if p, ok := c.pages[pid]; ok {
		return p, nil
	}

	p, err := c.hf.ReadPage(pid)
	if err != nil {
		return nil, err
	}
	c.pages[pid] = p
	return p, nil
}

func (c *fakeCache) PageSize() int {
	return c.pageSize
}

func (c *fakeCache) ReleasePage(txn transaction.Transaction, pid common.PageID) {
	c.released = append(c.released, pid)
	delete(c.held, pid)
}

func (c *fakeCache) HoldsLock(txn transaction.Transaction, pid common.PageID) bool {
	return c.held[pid]
}

func tempFile(t *testing.T) string {
	path := filepath.Join(os.TempDir(), uuid.New().String()+".dat")
	t.Cleanup(func() { common.Remove(path) })
	return path
}

func twoIntSchema(t *testing.T) *catalog.Schema {
	s, err := catalog.NewSchemaFromTypes([]db_types.Type{db_types.IntType, db_types.IntType}, []string{"id", "val"})
	require.NoError(t, err)
	return s
}

func row(t *testing.T, s *catalog.Schema, id int32) *catalog.Tuple {
	tuple, err := catalog.NewTupleWithFields(s, db_types.NewIntField(id), db_types.NewIntField(id*10))
	require.NoError(t, err)
	return tuple
}

func openWithFakeCache(t *testing.T, path string, pageSize int, opts ...Option) (*HeapFile, *fakeCache) {
	cache := newFakeCache(pageSize)
	hf, err := Open(path, twoIntSchema(t), cache, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hf.Close() })
	cache.hf = hf
	return hf, cache
}

// writePages writes one page per entry of rowsPerPage directly to the file. Row ids are increasing
// starting from 0 across pages.
func writePages(t *testing.T, hf *HeapFile, rowsPerPage ...int) {
	id := int32(0)
	for pageNum, n := range rowsPerPage {
		p, err := hf.Codec().Decode(common.NewPageID(hf.ID(), pageNum), hf.Codec().EmptyPageData())
		require.NoError(t, err)
		for i := 0; i < n; i++ {
			require.NoError(t, p.InsertTuple(row(t, hf.Schema(), id)))
			id++
		}
		require.NoError(t, hf.WritePage(p))
	}
}

func drain(t *testing.T, s *Scan) []int32 {
	ids := make([]int32, 0)
	for {
		ok, err := s.HasNext()
		require.NoError(t, err)
		if !ok {
			return ids
		}

		tuple, err := s.Next()
		require.NoError(t, err)
		f, err := tuple.Field(0)
		require.NoError(t, err)
		ids = append(ids, f.(*db_types.IntField).Value)
	}
}
