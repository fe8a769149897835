package heap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"heapdb/catalog"
	"heapdb/catalog/db_types"
	"heapdb/common"
	"heapdb/disk/pages"
	"heapdb/logger"
	"heapdb/transaction"
)

const testPageSize = 4096

func TestOpen_Rejects_Invalid_Schema(t *testing.T) {
	_, err := Open(tempFile(t), nil, newFakeCache(testPageSize))
	assert.ErrorIs(t, err, common.ErrInvalidSchema)

	big, err := catalog.NewSchemaFromTypes([]db_types.Type{db_types.StringType}, nil)
	require.NoError(t, err)
	_, err = Open(tempFile(t), big, newFakeCache(64))
	assert.ErrorIs(t, err, common.ErrInvalidSchema)
}

func TestNumPages(t *testing.T) {
	hf, _ := openWithFakeCache(t, tempFile(t), testPageSize)

	n, err := hf.NumPages()
	require.NoError(t, err)
	assert.Zero(t, n)

	writePages(t, hf, 1, 0, 2)
	n, err = hf.NumPages()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, hf.CheckWellFormed())
}

func TestNumPages_Counts_Partial_Page_And_Open_Warns(t *testing.T) {
	path := tempFile(t)
	require.NoError(t, os.WriteFile(path, make([]byte, 2*testPageSize+1), 0o644))

	core, logs := observer.New(zapcore.WarnLevel)
	hf, _ := openWithFakeCache(t, path, testPageSize, WithLogger(logger.FromCore(core)))

	n, err := hf.NumPages()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.ErrorIs(t, hf.CheckWellFormed(), common.ErrMalformedFile)
	assert.Equal(t, 1, logs.FilterMessage("heap file is not well formed").Len())
}

func TestReadPage_Errors(t *testing.T) {
	hf, _ := openWithFakeCache(t, tempFile(t), testPageSize)
	writePages(t, hf, 1)

	_, err := hf.ReadPage(common.NewPageID(hf.ID(), 1))
	assert.ErrorIs(t, err, common.ErrPageOutOfRange)

	_, err = hf.ReadPage(common.NewPageID(hf.ID()+1, 0))
	assert.ErrorIs(t, err, common.ErrWrongFile)

	p, err := hf.ReadPage(common.NewPageID(hf.ID(), 0))
	require.NoError(t, err)
	assert.Equal(t, common.NewPageID(hf.ID(), 0), p.ID())
}

func TestWritePage_Errors(t *testing.T) {
	hf, _ := openWithFakeCache(t, tempFile(t), testPageSize)
	writePages(t, hf, 1)

	other, err := pages.NewHeapPageCodec(hf.Schema(), 1024)
	require.NoError(t, err)
	small, err := other.Decode(common.NewPageID(hf.ID(), 0), other.EmptyPageData())
	require.NoError(t, err)
	assert.ErrorIs(t, hf.WritePage(small), common.ErrSerialization)

	far, err := hf.Codec().Decode(common.NewPageID(hf.ID(), 5), hf.Codec().EmptyPageData())
	require.NoError(t, err)
	assert.ErrorIs(t, hf.WritePage(far), common.ErrPageOutOfRange)

	foreign, err := hf.Codec().Decode(common.NewPageID(hf.ID()+1, 0), hf.Codec().EmptyPageData())
	require.NoError(t, err)
	assert.ErrorIs(t, hf.WritePage(foreign), common.ErrWrongFile)
}

func TestWritePage_Then_ReadPage(t *testing.T) {
	hf, _ := openWithFakeCache(t, tempFile(t), testPageSize)
	writePages(t, hf, 3, 2)

	p, err := hf.ReadPage(common.NewPageID(hf.ID(), 1))
	require.NoError(t, err)

	it := p.Iterator()
	var rows []string
	for it.HasNext() {
		tuple, err := it.Next()
		require.NoError(t, err)
		rows = append(rows, tuple.String())
	}
	assert.Equal(t, []string{"3\t30\n", "4\t40\n"}, rows)
}

func TestID_Is_Stable_For_Same_Path(t *testing.T) {
	path := tempFile(t)
	a, _ := openWithFakeCache(t, path, testPageSize)
	b, _ := openWithFakeCache(t, path, testPageSize)
	c, _ := openWithFakeCache(t, tempFile(t), testPageSize)

	assert.Equal(t, a.ID(), b.ID())
	assert.NotEqual(t, a.ID(), c.ID())

	wd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := filepath.Rel(wd, path)
	require.NoError(t, err)
	d, _ := openWithFakeCache(t, rel, testPageSize)
	assert.Equal(t, a.ID(), d.ID())

	e, _ := openWithFakeCache(t, path, testPageSize, WithFileID(42))
	assert.Equal(t, common.FileID(42), e.ID())
}

func TestInsertTuple_Appends_Page_To_Empty_File(t *testing.T) {
	hf, cache := openWithFakeCache(t, tempFile(t), testPageSize)
	txn := transaction.New()
	tuple := row(t, hf.Schema(), 1)

	modified, err := hf.InsertTuple(txn, tuple)
	require.NoError(t, err)
	require.Len(t, modified, 1)

	p := modified[0]
	assert.Equal(t, common.NewPageID(hf.ID(), 0), p.ID())
	assert.True(t, p.IsDirty())
	assert.Equal(t, txn.GetID(), p.DirtiedBy())
	assert.Equal(t, common.NewRecordID(p.ID(), 0), tuple.RecordID())
	assert.Equal(t, []transaction.Permission{transaction.ReadWrite}, cache.perms)

	n, err := hf.NumPages()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsertTuple_Probes_Read_Only_And_Releases_Full_Pages(t *testing.T) {
	// 64 byte pages hold 7 tuples of 8 bytes
	hf, cache := openWithFakeCache(t, tempFile(t), 64)
	slots := pages.SlotsPerPage(64, 8)
	require.Equal(t, 7, slots)
	writePages(t, hf, slots, 2)

	txn := transaction.New()
	tuple := row(t, hf.Schema(), 100)
	modified, err := hf.InsertTuple(txn, tuple)
	require.NoError(t, err)

	assert.Equal(t, common.NewPageID(hf.ID(), 1), modified[0].ID())
	assert.Equal(t, 2, tuple.RecordID().Slot)
	assert.Equal(t, []transaction.Permission{transaction.ReadOnly, transaction.ReadOnly, transaction.ReadWrite}, cache.perms)
	assert.Equal(t, []common.PageID{common.NewPageID(hf.ID(), 0)}, cache.released)
}

func TestInsertTuple_Keeps_Pages_Locked_Before_The_Probe(t *testing.T) {
	hf, cache := openWithFakeCache(t, tempFile(t), 64)
	writePages(t, hf, 7, 2)

	txn := transaction.New()
	_, err := cache.AcquirePage(txn, common.NewPageID(hf.ID(), 0), transaction.ReadOnly)
	require.NoError(t, err)

	_, err = hf.InsertTuple(txn, row(t, hf.Schema(), 100))
	require.NoError(t, err)
	assert.Empty(t, cache.released)
}

func TestInsertTuple_Appends_When_All_Pages_Are_Full(t *testing.T) {
	hf, _ := openWithFakeCache(t, tempFile(t), 64)
	writePages(t, hf, 7, 7)

	modified, err := hf.InsertTuple(transaction.New(), row(t, hf.Schema(), 1))
	require.NoError(t, err)
	assert.Equal(t, 2, modified[0].ID().PageNum)

	n, err := hf.NumPages()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestInsertTuple_Schema_Mismatch(t *testing.T) {
	hf, _ := openWithFakeCache(t, tempFile(t), testPageSize)
	other, err := catalog.NewSchemaFromTypes([]db_types.Type{db_types.IntType}, nil)
	require.NoError(t, err)
	tuple, err := catalog.NewTupleWithFields(other, db_types.NewIntField(1))
	require.NoError(t, err)

	_, err = hf.InsertTuple(transaction.New(), tuple)
	assert.ErrorIs(t, err, common.ErrSchemaMismatch)
}

func TestDeleteTuple(t *testing.T) {
	hf, cache := openWithFakeCache(t, tempFile(t), testPageSize)
	writePages(t, hf, 3)
	txn := transaction.New()

	_, err := hf.DeleteTuple(txn, row(t, hf.Schema(), 1))
	assert.ErrorIs(t, err, common.ErrMissingLocationTag)

	foreign := row(t, hf.Schema(), 1)
	foreign.SetRecordID(common.NewRecordID(common.NewPageID(hf.ID()+1, 0), 1))
	_, err = hf.DeleteTuple(txn, foreign)
	assert.ErrorIs(t, err, common.ErrWrongFile)

	scan := hf.Iterator(txn)
	scan.Open()
	_, err = scan.Next()
	require.NoError(t, err)
	second, err := scan.Next()
	require.NoError(t, err)

	modified, err := hf.DeleteTuple(txn, second)
	require.NoError(t, err)
	assert.True(t, modified[0].IsDirty())
	assert.Nil(t, second.RecordID())
	assert.Equal(t, transaction.ReadWrite, cache.perms[len(cache.perms)-1])

	scan.Rewind()
	assert.Equal(t, []int32{0, 2}, drain(t, scan))
}

func TestSlotUsage(t *testing.T) {
	hf, _ := openWithFakeCache(t, tempFile(t), 64)
	writePages(t, hf, 7, 3)

	used, empty, err := hf.SlotUsage()
	require.NoError(t, err)
	assert.Equal(t, 10, used)
	assert.Equal(t, 4, empty)
}
