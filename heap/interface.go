package heap

import (
	"heapdb/common"
	"heapdb/disk/pages"
	"heapdb/transaction"
)

// PageCache hands out pages of heap files under a transaction. Implementations lock the page for the
// requested permission before returning it and may block while doing so.
type PageCache interface {
	AcquirePage(txn transaction.Transaction, pid common.PageID, perm transaction.Permission) (pages.Page, error)

	// PageSize is the size of every page in bytes. Heap files use it for their page arithmetic.
	PageSize() int
}

// PageReleaser is implemented by caches that allow a transaction to give up a page before it ends.
type PageReleaser interface {
	ReleasePage(txn transaction.Transaction, pid common.PageID)

	// HoldsLock reports whether txn already has pid locked.
	HoldsLock(txn transaction.Transaction, pid common.PageID) bool
}
