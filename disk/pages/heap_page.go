package pages

import (
	"github.com/pkg/errors"

	"heapdb/catalog"
	"heapdb/common"
	"heapdb/transaction"
)

/**
 * Heap page format:
 *  ----------------------------------------------------------------
 *  | HEADER BITMAP | SLOT_0 | SLOT_1 | ... | SLOT_N-1 | PADDING |
 *  ----------------------------------------------------------------
 *
 *  Header is ceil(N/8) bytes. Bit i of byte i/8 (least significant bit first) is set if slot i is used.
 *  Every slot is schema.Size() bytes, N is the largest number of slots such that N bits of header and
 *  N slots fit in a page, that is floor(pageSize*8 / (tupleSize*8 + 1)).
 */

var ErrPageFull = errors.New("page has no empty slot")

// SlotsPerPage returns how many tuples of tupleSize bytes fit in a page.
func SlotsPerPage(pageSize, tupleSize int) int {
	if tupleSize <= 0 {
		return 0
	}
	return (pageSize * 8) / (tupleSize*8 + 1)
}

// HeaderSize is the bitmap size in bytes for the given number of slots.
func HeaderSize(slots int) int {
	return (slots + 7) / 8
}

var _ Codec = &HeapPageCodec{}

// HeapPageCodec encodes pages that hold tuples of a single schema.
type HeapPageCodec struct {
	schema     *catalog.Schema
	pageSize   int
	slots      int
	headerSize int
}

func NewHeapPageCodec(schema *catalog.Schema, pageSize int) (*HeapPageCodec, error) {
	if schema == nil {
		return nil, common.ErrInvalidSchema
	}
	slots := SlotsPerPage(pageSize, schema.Size())
	if slots == 0 {
		return nil, errors.Wrapf(common.ErrInvalidSchema, "tuple of %d bytes does not fit in a page of %d bytes", schema.Size(), pageSize)
	}

	return &HeapPageCodec{
		schema:     schema,
		pageSize:   pageSize,
		slots:      slots,
		headerSize: HeaderSize(slots),
	}, nil
}

func (c *HeapPageCodec) NumSlots() int {
	return c.slots
}

func (c *HeapPageCodec) PageSize() int {
	return c.pageSize
}

func (c *HeapPageCodec) EmptyPageData() []byte {
	return make([]byte, c.pageSize)
}

func (c *HeapPageCodec) Decode(pid common.PageID, data []byte) (Page, error) {
	return c.decode(pid, data)
}

func (c *HeapPageCodec) decode(pid common.PageID, data []byte) (*HeapPage, error) {
	if len(data) != c.pageSize {
		return nil, errors.Wrapf(common.ErrSerialization, "%v: page image is %d bytes, page size is %d", pid, len(data), c.pageSize)
	}

	return &HeapPage{
		pid:     pid,
		codec:   c,
		data:    common.Clone(data),
		oldData: common.Clone(data),
	}, nil
}

var _ Page = &HeapPage{}

// HeapPage keeps the page image as is and decodes tuples lazily while iterating.
type HeapPage struct {
	pid     common.PageID
	codec   *HeapPageCodec
	data    []byte
	oldData []byte

	isDirty   bool
	dirtiedBy transaction.TxnID
}

func (hp *HeapPage) ID() common.PageID {
	return hp.pid
}

func (hp *HeapPage) Data() []byte {
	return common.Clone(hp.data)
}

func (hp *HeapPage) NumSlots() int {
	return hp.codec.slots
}

func (hp *HeapPage) IsSlotUsed(i int) bool {
	if i < 0 || i >= hp.codec.slots {
		return false
	}
	return hp.data[i/8]&(1<<(i%8)) != 0
}

func (hp *HeapPage) setSlot(i int, used bool) {
	if used {
		hp.data[i/8] |= 1 << (i % 8)
	} else {
		hp.data[i/8] &^= 1 << (i % 8)
	}
}

func (hp *HeapPage) slotData(i int) []byte {
	size := hp.codec.schema.Size()
	start := hp.codec.headerSize + i*size
	return hp.data[start : start+size]
}

func (hp *HeapPage) NumEmptySlots() int {
	empty := 0
	for i := 0; i < hp.codec.slots; i++ {
		if !hp.IsSlotUsed(i) {
			empty++
		}
	}
	return empty
}

func (hp *HeapPage) InsertTuple(t *catalog.Tuple) error {
	if !t.Schema().Equals(hp.codec.schema) {
		return errors.Wrapf(common.ErrSchemaMismatch, "page schema is %v, tuple schema is %v", hp.codec.schema, t.Schema())
	}

	for i := 0; i < hp.codec.slots; i++ {
		if hp.IsSlotUsed(i) {
			continue
		}

		if err := t.Serialize(hp.slotData(i)); err != nil {
			return err
		}
		hp.setSlot(i, true)
		t.SetRecordID(common.NewRecordID(hp.pid, i))
		return nil
	}

	return errors.Wrapf(ErrPageFull, "%v", hp.pid)
}

func (hp *HeapPage) DeleteTuple(t *catalog.Tuple) error {
	rid := t.RecordID()
	if rid == nil {
		return common.ErrMissingLocationTag
	}
	if rid.PageID != hp.pid {
		return errors.Wrapf(common.ErrElementNotFound, "%v is not on %v", rid, hp.pid)
	}
	if !hp.IsSlotUsed(rid.Slot) {
		return errors.Wrapf(common.ErrElementNotFound, "slot %d of %v is empty", rid.Slot, hp.pid)
	}

	hp.setSlot(rid.Slot, false)
	zero(hp.slotData(rid.Slot))
	t.SetRecordID(nil)
	return nil
}

// GetTuple decodes the tuple at slot i. It returns ErrElementNotFound if the slot is empty.
func (hp *HeapPage) GetTuple(i int) (*catalog.Tuple, error) {
	if !hp.IsSlotUsed(i) {
		return nil, errors.Wrapf(common.ErrElementNotFound, "slot %d of %v is empty", i, hp.pid)
	}

	t, err := catalog.DeserializeTuple(hp.codec.schema, hp.slotData(i))
	if err != nil {
		return nil, errors.Wrapf(err, "%v slot %d", hp.pid, i)
	}
	t.SetRecordID(common.NewRecordID(hp.pid, i))
	return t, nil
}

func (hp *HeapPage) Iterator() TupleIterator {
	it := &heapPageIterator{page: hp, next: -1}
	it.advance()
	return it
}

func (hp *HeapPage) MarkDirty(dirty bool, txn transaction.TxnID) {
	hp.isDirty = dirty
	if dirty {
		hp.dirtiedBy = txn
	}
}

func (hp *HeapPage) IsDirty() bool {
	return hp.isDirty
}

func (hp *HeapPage) DirtiedBy() transaction.TxnID {
	return hp.dirtiedBy
}

func (hp *HeapPage) BeforeImage() (Page, error) {
	return hp.codec.decode(hp.pid, hp.oldData)
}

func (hp *HeapPage) SetBeforeImage() {
	hp.oldData = common.Clone(hp.data)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// heapPageIterator walks used slots in increasing order. It looks at the page as it is when HasNext is
// called, so slots freed during iteration are skipped.
type heapPageIterator struct {
	page *HeapPage
	next int
}

func (it *heapPageIterator) advance() {
	for it.next++; it.next < it.page.codec.slots; it.next++ {
		if it.page.IsSlotUsed(it.next) {
			return
		}
	}
}

func (it *heapPageIterator) HasNext() bool {
	for it.next < it.page.codec.slots && !it.page.IsSlotUsed(it.next) {
		it.advance()
	}
	return it.next < it.page.codec.slots
}

func (it *heapPageIterator) Next() (*catalog.Tuple, error) {
	if !it.HasNext() {
		return nil, common.ErrElementNotFound
	}

	t, err := it.page.GetTuple(it.next)
	it.advance()
	return t, err
}
