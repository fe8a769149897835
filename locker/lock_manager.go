package locker

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"heapdb/common"
	"heapdb/logger"
	"heapdb/transaction"
)

const DefaultDetectInterval = 2 * time.Second

type LockMode int

const (
	SharedLock LockMode = iota
	ExclusiveLock
)

func (m LockMode) String() string {
	if m == ExclusiveLock {
		return "X"
	}
	return "S"
}

// ModeFor maps a page access permission to the lock mode it requires.
func ModeFor(perm transaction.Permission) LockMode {
	if perm == transaction.ReadWrite {
		return ExclusiveLock
	}
	return SharedLock
}

type lockRequest struct {
	txID     transaction.TxnID
	mode     LockMode
	response chan error
}

type lockState struct {
	owners         map[transaction.TxnID]LockMode
	waitQueue      []lockRequest
	waitingWriters uint
}

// LockManager hands out page level shared and exclusive locks to transactions. Requests that conflict wait
// in a fifo queue per page. A background routine looks for cycles in the waits-for graph every detect
// interval and fails the waiting request of the smallest transaction id in the cycle with ErrDeadlock.
type LockManager struct {
	mu       sync.Mutex
	locks    map[common.PageID]*lockState
	log      *logger.Logger
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewLockManager(detectInterval time.Duration, log *logger.Logger) *LockManager {
	if detectInterval <= 0 {
		detectInterval = DefaultDetectInterval
	}

	lm := &LockManager{
		locks:    map[common.PageID]*lockState{},
		log:      logger.OrNop(log).Named("locker"),
		stopChan: make(chan struct{}),
	}
	go lm.deadlockDetectorRoutine(detectInterval)
	return lm
}

// AcquireLock blocks until the lock is granted or the request is chosen as a deadlock victim.
func (lm *LockManager) AcquireLock(pid common.PageID, txID transaction.TxnID, mode LockMode) error {
	request := lockRequest{txID: txID, mode: mode, response: make(chan error, 1)}

	lm.mu.Lock()
	ls, ok := lm.locks[pid]
	if !ok {
		ls = &lockState{owners: map[transaction.TxnID]LockMode{}}
		lm.locks[pid] = ls
	}

	held, isOwner := ls.owners[txID]
	if isOwner && (held == ExclusiveLock || mode == SharedLock) {
		lm.mu.Unlock()
		return nil
	}

	// an owner asking for an upgrade and a request that neither conflicts nor jumps a waiting writer are
	// granted right away.
	if lm.canAcquire(ls, txID, mode) && (isOwner || ls.waitingWriters == 0) {
		lm.grant(ls, txID, mode, true)
		lm.mu.Unlock()
		return nil
	}

	if isOwner {
		// upgrades go first, anything queued before would otherwise wait for this txn's shared lock forever
		ls.waitQueue = append([]lockRequest{request}, ls.waitQueue...)
	} else {
		ls.waitQueue = append(ls.waitQueue, request)
	}
	if mode == ExclusiveLock {
		ls.waitingWriters++
	}
	lm.mu.Unlock()

	if err := <-request.response; err != nil {
		return errors.Wrapf(err, "txn %d waiting for %v lock on %v", txID, mode, pid)
	}
	return nil
}

// ReleaseLock releases the lock of txID on pid. Releasing a lock that is not held is a bug and panics.
func (lm *LockManager) ReleaseLock(pid common.PageID, txID transaction.TxnID) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	ls, exists := lm.locks[pid]
	if !exists {
		panic("unlocked non-existing lock")
	}
	if _, ok := ls.owners[txID]; !ok {
		panic("unlocked non-existing lock")
	}

	lm.release(pid, ls, txID)
}

// ReleaseLocks releases every lock held by txID and returns the pages they were on, ordered by page.
func (lm *LockManager) ReleaseLocks(txID transaction.TxnID) []common.PageID {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	released := make([]common.PageID, 0)
	for pid, ls := range lm.locks {
		if _, ok := ls.owners[txID]; ok {
			lm.release(pid, ls, txID)
			released = append(released, pid)
		}
	}

	sort.Slice(released, func(i, j int) bool {
		if released[i].FileID != released[j].FileID {
			return released[i].FileID < released[j].FileID
		}
		return released[i].PageNum < released[j].PageNum
	})
	return released
}

// Holds returns the mode txID holds pid in, if any.
func (lm *LockManager) Holds(pid common.PageID, txID transaction.TxnID) (LockMode, bool) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	ls, ok := lm.locks[pid]
	if !ok {
		return SharedLock, false
	}
	mode, ok := ls.owners[txID]
	return mode, ok
}

func (lm *LockManager) Stop() {
	lm.stopOnce.Do(func() {
		close(lm.stopChan)
	})
}

func (lm *LockManager) release(pid common.PageID, ls *lockState, txID transaction.TxnID) {
	delete(ls.owners, txID)
	lm.grantWaiting(ls)

	if len(ls.owners) == 0 && len(ls.waitQueue) == 0 {
		delete(lm.locks, pid)
	}
}

// canAcquire returns true if the request does not conflict with current owners.
func (lm *LockManager) canAcquire(ls *lockState, txID transaction.TxnID, mode LockMode) bool {
	if held, ok := ls.owners[txID]; ok {
		if held == mode || mode == SharedLock {
			return true
		}

		// upgrade is possible only for the single owner
		return len(ls.owners) == 1
	}

	if len(ls.owners) == 0 {
		return true
	}
	if mode == ExclusiveLock {
		return false
	}

	for _, held := range ls.owners {
		if held == ExclusiveLock {
			return false
		}
	}
	return true
}

func (lm *LockManager) grant(ls *lockState, txID transaction.TxnID, mode LockMode, noWait bool) {
	if mode == ExclusiveLock && !noWait {
		ls.waitingWriters--
	}
	if held, ok := ls.owners[txID]; ok && held == ExclusiveLock {
		return
	}
	ls.owners[txID] = mode
}

// grantWaiting grants requests from the head of the wait queue until one conflicts.
func (lm *LockManager) grantWaiting(ls *lockState) {
	granted := 0
	for _, request := range ls.waitQueue {
		if !lm.canAcquire(ls, request.txID, request.mode) {
			break
		}
		lm.grant(ls, request.txID, request.mode, false)
		request.response <- nil
		granted++
	}

	ls.waitQueue = ls.waitQueue[granted:]
}

func (lm *LockManager) deadlockDetectorRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lm.resolveDeadlocks()
		case <-lm.stopChan:
			return
		}
	}
}

func (lm *LockManager) resolveDeadlocks() {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	for {
		cycle := findCycle(lm.buildWaitGraph())
		if cycle == nil {
			return
		}

		victim := cycle[0]
		for _, txID := range cycle {
			if txID < victim {
				victim = txID
			}
		}

		lm.log.Warn("deadlock detected", "cycle", cycle, "victim", victim)
		lm.abortWaiting(victim)
	}
}

// buildWaitGraph adds an edge from every waiting transaction to the owners of the page and to the
// transactions queued before it.
func (lm *LockManager) buildWaitGraph() map[transaction.TxnID]map[transaction.TxnID]bool {
	graph := map[transaction.TxnID]map[transaction.TxnID]bool{}
	addEdge := func(from, to transaction.TxnID) {
		// can wait for itself in upgrade case
		if from == to {
			return
		}
		if _, ok := graph[from]; !ok {
			graph[from] = map[transaction.TxnID]bool{}
		}
		graph[from][to] = true
	}

	for _, ls := range lm.locks {
		for i, request := range ls.waitQueue {
			for owner := range ls.owners {
				addEdge(request.txID, owner)
			}
			for _, before := range ls.waitQueue[:i] {
				addEdge(request.txID, before.txID)
			}
		}
	}
	return graph
}

// findCycle returns the transactions of some cycle in the graph or nil if there is none.
func findCycle(graph map[transaction.TxnID]map[transaction.TxnID]bool) []transaction.TxnID {
	// iterate in a fixed order so that the same graph always yields the same cycle
	nodes := make([]transaction.TxnID, 0, len(graph))
	for txID := range graph {
		nodes = append(nodes, txID)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	visited := map[transaction.TxnID]bool{}
	onPath := map[transaction.TxnID]int{}
	var path []transaction.TxnID

	var visit func(txID transaction.TxnID) []transaction.TxnID
	visit = func(txID transaction.TxnID) []transaction.TxnID {
		visited[txID] = true
		onPath[txID] = len(path)
		path = append(path, txID)

		for waitingFor := range graph[txID] {
			if idx, ok := onPath[waitingFor]; ok {
				cycle := make([]transaction.TxnID, len(path)-idx)
				copy(cycle, path[idx:])
				return cycle
			}
			if !visited[waitingFor] {
				if cycle := visit(waitingFor); cycle != nil {
					return cycle
				}
			}
		}

		path = path[:len(path)-1]
		delete(onPath, txID)
		return nil
	}

	for _, txID := range nodes {
		if !visited[txID] {
			if cycle := visit(txID); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// abortWaiting fails every waiting request of txID with ErrDeadlock.
func (lm *LockManager) abortWaiting(txID transaction.TxnID) {
	for pid, ls := range lm.locks {
		kept := ls.waitQueue[:0]
		for _, req := range ls.waitQueue {
			if req.txID != txID {
				kept = append(kept, req)
				continue
			}
			if req.mode == ExclusiveLock {
				ls.waitingWriters--
			}
			req.response <- common.ErrDeadlock
		}
		ls.waitQueue = kept

		// the victim may have been blocking requests queued behind it
		lm.grantWaiting(ls)
		if len(ls.owners) == 0 && len(ls.waitQueue) == 0 {
			delete(lm.locks, pid)
		}
	}
}
