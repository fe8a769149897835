package common

import "fmt"

// FileID identifies a heap file. Pages of different files are told apart by it.
type FileID uint64

// PageID addresses a single page of a file.
type PageID struct {
	FileID  FileID
	PageNum int
}

func NewPageID(fileID FileID, pageNum int) PageID {
	return PageID{FileID: fileID, PageNum: pageNum}
}

func (p PageID) String() string {
	return fmt.Sprintf("PageID(file=%d, page=%d)", p.FileID, p.PageNum)
}

// RecordID is the location of a tuple on disk: the page it lives in and its slot in that page.
type RecordID struct {
	PageID PageID
	Slot   int
}

func NewRecordID(pid PageID, slot int) *RecordID {
	return &RecordID{PageID: pid, Slot: slot}
}

func (r *RecordID) Equals(other *RecordID) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.PageID == other.PageID && r.Slot == other.Slot
}

func (r *RecordID) String() string {
	return fmt.Sprintf("RecordID(%v, slot=%d)", r.PageID, r.Slot)
}
