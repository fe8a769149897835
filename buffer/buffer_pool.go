package buffer

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"heapdb/common"
	"heapdb/disk/pages"
	"heapdb/locker"
	"heapdb/logger"
	"heapdb/transaction"
)

// DbFile is a file whose pages are cached by the pool. ReadPage and WritePage do raw io.
type DbFile interface {
	ID() common.FileID
	ReadPage(pid common.PageID) (pages.Page, error)
	WritePage(p pages.Page) error
}

const (
	StatHits      = "hits"
	StatMisses    = "misses"
	StatEvictions = "evictions"
	StatFlushes   = "flushes"
	StatRollbacks = "rollbacks"
)

// BufferPool caches up to poolSize decoded pages. Every page is handed out only after the page lock for
// the requested permission is granted to the transaction. Dirty pages are never evicted; they are written
// when their transaction commits and replaced by their before image when it aborts.
type BufferPool struct {
	poolSize int
	pageSize int
	pages    map[common.PageID]pages.Page
	files    map[common.FileID]DbFile
	Replacer IReplacer
	lm       *locker.LockManager
	stats    *common.Stats
	log      *logger.Logger
	lock     sync.Mutex
}

func NewBufferPool(poolSize, pageSize int, lm *locker.LockManager, log *logger.Logger) *BufferPool {
	if poolSize <= 0 {
		poolSize = 1
	}
	return &BufferPool{
		poolSize: poolSize,
		pageSize: pageSize,
		pages:    map[common.PageID]pages.Page{},
		files:    map[common.FileID]DbFile{},
		Replacer: NewLruReplacer(),
		lm:       lm,
		stats:    common.NewStats(),
		log:      logger.OrNop(log).Named("buffer"),
	}
}

func (b *BufferPool) PageSize() int {
	return b.pageSize
}

func (b *BufferPool) RegisterFile(f DbFile) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.files[f.ID()] = f
}

// UnregisterFile drops the file and its cached pages. Dirty pages of the file are lost.
func (b *BufferPool) UnregisterFile(id common.FileID) {
	b.lock.Lock()
	defer b.lock.Unlock()

	delete(b.files, id)
	for pid := range b.pages {
		if pid.FileID == id {
			b.discard(pid)
		}
	}
}

// AcquirePage returns the page after locking it for txn. It may block on the lock and fails with
// ErrDeadlock if txn is chosen as a deadlock victim while waiting.
func (b *BufferPool) AcquirePage(txn transaction.Transaction, pid common.PageID, perm transaction.Permission) (pages.Page, error) {
	if err := b.lm.AcquireLock(pid, txn.GetID(), locker.ModeFor(perm)); err != nil {
		return nil, err
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	if p, ok := b.pages[pid]; ok {
		b.stats.Incr(StatHits)
		b.Replacer.Access(pid)
		return p, nil
	}
	b.stats.Incr(StatMisses)

	f, ok := b.files[pid.FileID]
	if !ok {
		return nil, errors.Wrapf(common.ErrFileNotRegistered, "%v", pid)
	}

	if len(b.pages) >= b.poolSize {
		if err := b.evict(); err != nil {
			return nil, err
		}
	}

	p, err := f.ReadPage(pid)
	if err != nil {
		return nil, err
	}
	b.pages[pid] = p
	b.Replacer.Access(pid)
	return p, nil
}

// ReleasePage gives up the lock of txn on pid before the transaction ends. Pages the transaction made
// dirty stay locked.
func (b *BufferPool) ReleasePage(txn transaction.Transaction, pid common.PageID) {
	b.lock.Lock()
	p, cached := b.pages[pid]
	dirtiedByTxn := cached && p.IsDirty() && p.DirtiedBy() == txn.GetID()
	b.lock.Unlock()

	if dirtiedByTxn {
		return
	}
	if _, ok := b.lm.Holds(pid, txn.GetID()); ok {
		b.lm.ReleaseLock(pid, txn.GetID())
	}
}

// HoldsLock reports whether txn holds any lock on pid.
func (b *BufferPool) HoldsLock(txn transaction.Transaction, pid common.PageID) bool {
	_, ok := b.lm.Holds(pid, txn.GetID())
	return ok
}

// evict removes the least recently used clean page. Caller must hold b.lock.
func (b *BufferPool) evict() error {
	victim, err := b.Replacer.ChooseVictim(func(pid common.PageID) bool {
		p, ok := b.pages[pid]
		return ok && !p.IsDirty()
	})
	if errors.Is(err, ErrNoVictim) {
		return errors.Wrapf(common.ErrBufferFull, "%d pages", len(b.pages))
	}
	if err != nil {
		return err
	}

	delete(b.pages, victim)
	b.stats.Incr(StatEvictions)
	b.log.Debug("evicted page", "page", victim)
	return nil
}

func (b *BufferPool) discard(pid common.PageID) {
	delete(b.pages, pid)
	b.Replacer.Remove(pid)
}

// DiscardPage removes pid from the pool without writing it.
func (b *BufferPool) DiscardPage(pid common.PageID) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.discard(pid)
}

// FlushPage writes pid to its file if it is cached and dirty.
func (b *BufferPool) FlushPage(pid common.PageID) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	p, ok := b.pages[pid]
	if !ok || !p.IsDirty() {
		return nil
	}
	return b.flush(p)
}

// flush writes p and marks it clean. Caller must hold b.lock.
func (b *BufferPool) flush(p pages.Page) error {
	f, ok := b.files[p.ID().FileID]
	if !ok {
		return errors.Wrapf(common.ErrFileNotRegistered, "%v", p.ID())
	}
	if err := f.WritePage(p); err != nil {
		return err
	}

	p.MarkDirty(false, 0)
	p.SetBeforeImage()
	b.stats.Incr(StatFlushes)
	b.log.Debug("flushed page", "page", p.ID())
	return nil
}

// FlushAll writes every dirty page. Pages are written concurrently; the first error is returned.
func (b *BufferPool) FlushAll() error {
	b.lock.Lock()
	defer b.lock.Unlock()

	dirty := make([]pages.Page, 0)
	for _, p := range b.pages {
		if p.IsDirty() {
			dirty = append(dirty, p)
		}
	}

	g := errgroup.Group{}
	for _, p := range dirty {
		p := p
		f, ok := b.files[p.ID().FileID]
		if !ok {
			return errors.Wrapf(common.ErrFileNotRegistered, "%v", p.ID())
		}
		g.Go(func() error {
			return f.WritePage(p)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, p := range dirty {
		p.MarkDirty(false, 0)
		p.SetBeforeImage()
	}
	b.stats.Add(StatFlushes, int64(len(dirty)))
	return nil
}

// TransactionComplete ends txn. On commit pages dirtied by txn are written to disk, on abort they are
// replaced by their before images. If a commit cannot write every page, txn is rolled back instead and the
// write error is returned. Every lock of txn is released in all cases.
func (b *BufferPool) TransactionComplete(txn transaction.Transaction, commit bool) error {
	err := b.completePages(txn.GetID(), commit)
	b.lm.ReleaseLocks(txn.GetID())
	return err
}

func (b *BufferPool) completePages(txID transaction.TxnID, commit bool) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	dirty := make([]pages.Page, 0)
	for _, p := range b.pages {
		if p.IsDirty() && p.DirtiedBy() == txID {
			dirty = append(dirty, p)
		}
	}

	if !commit {
		return b.rollback(dirty, nil)
	}

	// before images of pages already written, needed to undo a partial commit
	written := make([]pages.Page, 0, len(dirty))
	for i, p := range dirty {
		before, err := p.BeforeImage()
		if err == nil {
			err = b.flush(p)
		}
		if err != nil {
			b.log.Error("commit failed, rolling back", "txn", txID, "page", p.ID(), "error", err)
			if rbErr := b.rollback(dirty[i:], written); rbErr != nil {
				return errors.Wrapf(err, "rollback after failed commit: %v", rbErr)
			}
			return errors.Wrap(err, "commit failed, transaction is rolled back")
		}
		written = append(written, before)
	}
	return nil
}

// rollback puts the before image of every page in dirty back in place of it. Pages in written were
// already flushed, so their images are written to disk again as well. Caller must hold b.lock.
func (b *BufferPool) rollback(dirty []pages.Page, written []pages.Page) error {
	var firstErr error
	for _, before := range written {
		if err := b.flush(before); err != nil && firstErr == nil {
			firstErr = err
		}
		b.pages[before.ID()] = before
		b.stats.Incr(StatRollbacks)
	}

	for _, p := range dirty {
		before, err := p.BeforeImage()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		b.pages[p.ID()] = before
		b.stats.Incr(StatRollbacks)
	}
	return firstErr
}

// Len returns the number of cached pages.
func (b *BufferPool) Len() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.pages)
}

func (b *BufferPool) Stats() map[string]int64 {
	return b.stats.Snapshot()
}
