package heap

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heapdb/buffer"
	"heapdb/common"
	"heapdb/disk/pages"
	"heapdb/locker"
	"heapdb/transaction"
)

func openWithPool(t *testing.T, path string, poolSize int) (*HeapFile, *buffer.BufferPool) {
	lm := locker.NewLockManager(50*time.Millisecond, nil)
	t.Cleanup(lm.Stop)
	pool := buffer.NewBufferPool(poolSize, 512, lm, nil)

	hf, err := Open(path, twoIntSchema(t), pool)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hf.Close() })
	pool.RegisterFile(hf)
	return hf, pool
}

func TestHeapFile_With_BufferPool_Insert_Commit_Scan(t *testing.T) {
	path := tempFile(t)
	hf, pool := openWithPool(t, path, 64)

	txn := transaction.New()
	for i := 0; i < 500; i++ {
		_, err := hf.InsertTuple(txn, row(t, hf.Schema(), int32(i)))
		require.NoError(t, err)
	}
	require.NoError(t, pool.TransactionComplete(txn, true))

	n, err := hf.NumPages()
	require.NoError(t, err)
	assert.Greater(t, n, 1)

	// a fresh instance over the same path sees the committed rows
	reopened, _ := openWithPool(t, path, 4)
	reader := transaction.New()
	scan := reopened.Iterator(reader)
	scan.Open()
	ids := drain(t, scan)
	require.Len(t, ids, 500)
	for i, id := range ids {
		assert.Equal(t, int32(i), id)
	}
}

func TestHeapFile_With_BufferPool_Abort_Discards_Inserts(t *testing.T) {
	hf, pool := openWithPool(t, tempFile(t), 16)

	committed := transaction.New()
	_, err := hf.InsertTuple(committed, row(t, hf.Schema(), 1))
	require.NoError(t, err)
	require.NoError(t, pool.TransactionComplete(committed, true))

	aborted := transaction.New()
	for i := 2; i < 10; i++ {
		_, err := hf.InsertTuple(aborted, row(t, hf.Schema(), int32(i)))
		require.NoError(t, err)
	}
	require.NoError(t, pool.TransactionComplete(aborted, false))

	scan := hf.Iterator(transaction.New())
	scan.Open()
	assert.Equal(t, []int32{1}, drain(t, scan))
}

func TestHeapFile_With_BufferPool_Delete(t *testing.T) {
	hf, pool := openWithPool(t, tempFile(t), 16)

	txn := transaction.New()
	for i := 0; i < 5; i++ {
		_, err := hf.InsertTuple(txn, row(t, hf.Schema(), int32(i)))
		require.NoError(t, err)
	}
	require.NoError(t, pool.TransactionComplete(txn, true))

	deleter := transaction.New()
	scan := hf.Iterator(deleter)
	scan.Open()
	for {
		ok, err := scan.HasNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		tuple, err := scan.Next()
		require.NoError(t, err)
		f, _ := tuple.Field(0)
		if f.String() == "3" {
			_, err := hf.DeleteTuple(deleter, tuple)
			require.NoError(t, err)
		}
	}
	require.NoError(t, pool.TransactionComplete(deleter, true))

	scan = hf.Iterator(transaction.New())
	scan.Open()
	assert.Equal(t, []int32{0, 1, 2, 4}, drain(t, scan))
}

func TestHeapFile_With_BufferPool_Concurrent_Inserts(t *testing.T) {
	hf, pool := openWithPool(t, tempFile(t), 64)

	wg := sync.WaitGroup{}
	mu := sync.Mutex{}
	inserted := 0
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				txn := transaction.New()
				_, err := hf.InsertTuple(txn, row(t, hf.Schema(), int32(w*100+i)))
				commit := err == nil
				assert.NoError(t, pool.TransactionComplete(txn, commit))
				if commit {
					mu.Lock()
					inserted++
					mu.Unlock()
				}
			}
		}(w)
	}
	wg.Wait()

	scan := hf.Iterator(transaction.New())
	scan.Open()
	assert.Len(t, drain(t, scan), inserted)
	assert.Greater(t, inserted, 0)
}

func TestHeapFile_With_BufferPool_Insert_Keeps_Scan_Read_Locks(t *testing.T) {
	hf, pool := openWithPool(t, tempFile(t), 16)
	slots := pages.SlotsPerPage(512, hf.Schema().Size())

	writer := transaction.New()
	for i := 0; i < slots; i++ {
		_, err := hf.InsertTuple(writer, row(t, hf.Schema(), int32(i)))
		require.NoError(t, err)
	}
	require.NoError(t, pool.TransactionComplete(writer, true))

	page0 := common.NewPageID(hf.ID(), 0)
	txn := transaction.New()
	scan := hf.Iterator(txn)
	scan.Open()
	_, err := scan.Next()
	require.NoError(t, err)
	require.True(t, pool.HoldsLock(txn, page0))

	modified, err := hf.InsertTuple(txn, row(t, hf.Schema(), int32(slots)))
	require.NoError(t, err)
	assert.Equal(t, 1, modified[0].ID().PageNum)
	assert.True(t, pool.HoldsLock(txn, page0), "read lock taken by the scan is kept")
	require.NoError(t, pool.TransactionComplete(txn, true))
	assert.False(t, pool.HoldsLock(txn, page0))
}
