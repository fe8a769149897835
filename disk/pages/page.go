package pages

import (
	"heapdb/catalog"
	"heapdb/common"
	"heapdb/transaction"
)

// Page is the decoded, in memory form of a single page of a heap file. Pages are handed out by the buffer
// pool and are not safe for concurrent use; the page lock held by the transaction guards them.
type Page interface {
	ID() common.PageID

	// Data returns the encoded page image. Its length is always equal to the page size.
	Data() []byte

	// Iterator returns the tuples stored in the page in slot order.
	Iterator() TupleIterator
	NumEmptySlots() int

	// InsertTuple stores t in the first empty slot and sets its record id.
	InsertTuple(t *catalog.Tuple) error

	// DeleteTuple frees the slot t is stored in and clears its record id.
	DeleteTuple(t *catalog.Tuple) error

	MarkDirty(dirty bool, txn transaction.TxnID)
	IsDirty() bool

	// DirtiedBy returns the transaction that made the page dirty last.
	DirtiedBy() transaction.TxnID

	// BeforeImage returns the page as it was when SetBeforeImage was last called.
	BeforeImage() (Page, error)
	SetBeforeImage()
}

type TupleIterator interface {
	HasNext() bool
	Next() (*catalog.Tuple, error)
}

// Codec converts between page images and pages.
type Codec interface {
	Decode(pid common.PageID, data []byte) (Page, error)

	// EmptyPageData returns the image of a page without any tuples.
	EmptyPageData() []byte
}
