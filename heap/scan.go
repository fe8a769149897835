package heap

import (
	"github.com/pkg/errors"

	"heapdb/catalog"
	"heapdb/common"
	"heapdb/disk/pages"
	"heapdb/transaction"
)

// Scan iterates over every tuple of a heap file, page by page in page order and slot order within a page.
// Pages are acquired read only through the cache and only when the previous page is drained. A scan starts
// closed; Open positions it before the first page.
type Scan struct {
	hf  *HeapFile
	txn transaction.Transaction

	open    bool
	pageNum int
	it      pages.TupleIterator

	// next is the tuple found by HasNext but not yet returned by Next.
	next *catalog.Tuple
}

func newScan(hf *HeapFile, txn transaction.Transaction) *Scan {
	return &Scan{hf: hf, txn: txn}
}

func (s *Scan) Open() {
	s.open = true
	s.pageNum = 0
	s.it = nil
	s.next = nil
}

func (s *Scan) Close() {
	s.open = false
	s.pageNum = 0
	s.it = nil
	s.next = nil
}

func (s *Scan) Rewind() {
	s.Close()
	s.Open()
}

func (s *Scan) IsOpen() bool {
	return s.open
}

// HasNext reports whether Next would return a tuple. It may acquire pages to find out but calling it any
// number of times does not change what Next returns.
func (s *Scan) HasNext() (bool, error) {
	if !s.open {
		return false, nil
	}
	if s.next != nil {
		return true, nil
	}

	for {
		if s.it != nil && s.it.HasNext() {
			t, err := s.it.Next()
			if err != nil {
				if s.hf.policy == AbortOnPageError {
					return false, err
				}
				s.hf.log.Warn("skipping rest of page", "page", s.pageNum-1, "error", err)
				s.it = nil
				continue
			}

			s.next = t
			return true, nil
		}
		s.it = nil

		n, err := s.hf.NumPages()
		if err != nil {
			return false, err
		}
		if s.pageNum >= n {
			return false, nil
		}

		pid := common.NewPageID(s.hf.id, s.pageNum)
		p, err := s.hf.cache.AcquirePage(s.txn, pid, transaction.ReadOnly)
		if err != nil {
			if s.hf.policy == AbortOnPageError || errors.Is(err, common.ErrDeadlock) {
				return false, err
			}
			s.hf.log.Warn("skipping page", "page", s.pageNum, "error", err)
			s.pageNum++
			continue
		}

		s.it = p.Iterator()
		s.pageNum++
	}
}

// Next returns the next tuple. It returns ErrElementNotFound when the scan is closed or exhausted.
func (s *Scan) Next() (*catalog.Tuple, error) {
	if !s.open {
		return nil, errors.Wrap(common.ErrElementNotFound, "scan is not open")
	}

	if s.next == nil {
		ok, err := s.HasNext()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.Wrap(common.ErrElementNotFound, "no more tuples")
		}
	}

	t := s.next
	s.next = nil
	return t, nil
}
