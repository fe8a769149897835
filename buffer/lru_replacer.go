package buffer

import (
	"container/list"
	"sync"

	"github.com/pkg/errors"

	"heapdb/common"
)

var ErrNoVictim = errors.New("no page can be evicted")

var _ IReplacer = &LruReplacer{}

// LruReplacer orders pages by last access. Front of the list is the least recently used page.
type LruReplacer struct {
	order   *list.List
	entries map[common.PageID]*list.Element
	lock    sync.Mutex
}

func NewLruReplacer() *LruReplacer {
	return &LruReplacer{
		order:   list.New(),
		entries: map[common.PageID]*list.Element{},
	}
}

func (l *LruReplacer) Access(pid common.PageID) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if e, ok := l.entries[pid]; ok {
		l.order.MoveToBack(e)
		return
	}
	l.entries[pid] = l.order.PushBack(pid)
}

func (l *LruReplacer) Remove(pid common.PageID) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if e, ok := l.entries[pid]; ok {
		l.order.Remove(e)
		delete(l.entries, pid)
	}
}

func (l *LruReplacer) ChooseVictim(evictable func(common.PageID) bool) (common.PageID, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	for e := l.order.Front(); e != nil; e = e.Next() {
		pid := e.Value.(common.PageID)
		if evictable == nil || evictable(pid) {
			l.order.Remove(e)
			delete(l.entries, pid)
			return pid, nil
		}
	}
	return common.PageID{}, ErrNoVictim
}

func (l *LruReplacer) Len() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.order.Len()
}
