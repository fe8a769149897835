package buffer

import "heapdb/common"

type IReplacer interface {
	// Access records a use of pid, adding it if it is not tracked yet.
	Access(pid common.PageID)
	Remove(pid common.PageID)

	// ChooseVictim returns the best candidate among the pages for which evictable returns true and stops
	// tracking it. It returns ErrNoVictim if there is no such page.
	ChooseVictim(evictable func(common.PageID) bool) (common.PageID, error)
	Len() int
}
