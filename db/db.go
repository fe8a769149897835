package db

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"heapdb/buffer"
	"heapdb/catalog"
	"heapdb/common"
	"heapdb/config"
	"heapdb/heap"
	"heapdb/locker"
	"heapdb/logger"
	"heapdb/transaction"
)

const tableFileExt = ".dat"

// DB ties heap files to a shared buffer pool and lock manager. Tables are heap files under the data dir
// whose ids are assigned by the registry.
type DB struct {
	cfg      *config.Config
	log      *logger.Logger
	lm       *locker.LockManager
	pool     *buffer.BufferPool
	registry *catalog.Registry
	policy   heap.ScanErrorPolicy

	tables map[string]*heap.HeapFile
	active map[transaction.TxnID]transaction.Transaction
	mu     sync.Mutex
}

func Open(cfg *config.Config, log *logger.Logger) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = logger.OrNop(log)

	policy, err := heap.ParseScanErrorPolicy(cfg.Storage.ScanErrorPolicy)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, common.WrapIO(err, "create data dir %v", cfg.Storage.DataDir)
	}

	registryFile := cfg.Storage.RegistryFile
	if registryFile == "" {
		registryFile = filepath.Join(cfg.Storage.DataDir, "registry.yaml")
	}
	registry, err := catalog.OpenRegistry(registryFile)
	if err != nil {
		return nil, err
	}

	lm := locker.NewLockManager(cfg.DeadlockInterval(), log)
	pool := buffer.NewBufferPool(cfg.Storage.BufferPoolPages, cfg.Storage.PageSize, lm, log)

	log.Info("db is opened", "data_dir", cfg.Storage.DataDir, "page_size", cfg.Storage.PageSize,
		"pool_pages", cfg.Storage.BufferPoolPages, "tables", len(registry.Names()))

	return &DB{
		cfg:      cfg,
		log:      log,
		lm:       lm,
		pool:     pool,
		registry: registry,
		policy:   policy,
		tables:   map[string]*heap.HeapFile{},
		active:   map[transaction.TxnID]transaction.Transaction{},
	}, nil
}

// TablePath returns the file a table is stored in.
func (d *DB) TablePath(name string) string {
	return filepath.Join(d.cfg.Storage.DataDir, name+tableFileExt)
}

// OpenTable opens the named table, creating its file if it does not exist. Opening an already open table
// returns the same heap file if schemas are equal.
func (d *DB) OpenTable(name string, schema *catalog.Schema) (*heap.HeapFile, error) {
	if name == "" || filepath.Base(name) != name {
		return nil, errors.Errorf("invalid table name %q", name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if hf, ok := d.tables[name]; ok {
		if !hf.Schema().Equals(schema) {
			return nil, errors.Wrapf(common.ErrSchemaMismatch, "table %v is open with schema %v", name, hf.Schema())
		}
		return hf, nil
	}

	id := d.registry.Assign(name)
	hf, err := heap.Open(d.TablePath(name), schema, d.pool,
		heap.WithFileID(id),
		heap.WithScanErrorPolicy(d.policy),
		heap.WithFsync(d.cfg.Storage.Fsync),
		heap.WithLogger(d.log),
	)
	if err != nil {
		return nil, err
	}

	d.pool.RegisterFile(hf)
	d.tables[name] = hf
	d.log.Debug("table is opened", "table", name, "file_id", id)
	return hf, nil
}

// Table returns an open table.
func (d *DB) Table(name string) (*heap.HeapFile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	hf, ok := d.tables[name]
	if !ok {
		return nil, errors.Wrapf(common.ErrFileNotRegistered, "table %v is not open", name)
	}
	return hf, nil
}

// Tables returns names of all tables known to the registry, open or not.
func (d *DB) Tables() []string {
	names := d.registry.Names()
	sort.Strings(names)
	return names
}

func (d *DB) Begin() transaction.Transaction {
	txn := transaction.New()

	d.mu.Lock()
	d.active[txn.GetID()] = txn
	d.mu.Unlock()
	return txn
}

// Commit writes pages modified by txn and releases its locks. If the pages cannot be written txn is rolled
// back instead and the write error is returned.
func (d *DB) Commit(txn transaction.Transaction) error {
	return d.complete(txn, true)
}

// Abort discards changes of txn and releases its locks.
func (d *DB) Abort(txn transaction.Transaction) error {
	return d.complete(txn, false)
}

func (d *DB) complete(txn transaction.Transaction, commit bool) error {
	d.mu.Lock()
	if _, ok := d.active[txn.GetID()]; !ok {
		d.mu.Unlock()
		return errors.Wrapf(common.ErrTxnNotActive, "txn %d", txn.GetID())
	}
	delete(d.active, txn.GetID())
	d.mu.Unlock()

	if err := d.pool.TransactionComplete(txn, commit); err != nil {
		d.log.Error("transaction could not be completed", "txn", txn.GetID(), "commit", commit, "error", err)
		return err
	}
	return nil
}

func (d *DB) Pool() *buffer.BufferPool {
	return d.pool
}

func (d *DB) Stats() map[string]int64 {
	return d.pool.Stats()
}

// Close aborts active transactions, flushes the pool, saves the registry and closes every table.
func (d *DB) Close() error {
	d.mu.Lock()
	active := make([]transaction.Transaction, 0, len(d.active))
	for _, txn := range d.active {
		active = append(active, txn)
	}
	d.mu.Unlock()

	for _, txn := range active {
		d.log.Warn("aborting active transaction on close", "txn", txn.GetID())
		if err := d.Abort(txn); err != nil {
			return err
		}
	}

	defer d.lm.Stop()

	if err := d.pool.FlushAll(); err != nil {
		return err
	}
	if err := d.registry.Save(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for name, hf := range d.tables {
		d.pool.UnregisterFile(hf.ID())
		if err := hf.Close(); err != nil {
			return errors.Wrapf(err, "close table %v", name)
		}
		delete(d.tables, name)
	}

	d.log.Info("db is closed")
	return d.log.Sync()
}
