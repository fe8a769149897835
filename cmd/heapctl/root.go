package main

import (
	"github.com/spf13/cobra"

	"heapdb/buffer"
	"heapdb/catalog"
	"heapdb/config"
	"heapdb/heap"
	"heapdb/locker"
	"heapdb/logger"
)

type globalFlags struct {
	cfgFile  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "heapctl",
		Short: "Inspect and maintain heap files",
		Long: `heapctl works on a single heap file. Rows have a fixed layout described by
a schema such as "int:id,string:name".

Print page and slot statistics:
  heapctl stats users.dat --schema "int:id,string:name"

Append rows read from stdin, one tab separated row per line:
  heapctl load users.dat --schema "int:id,string:name" < users.tsv`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "overrides log.level of the config")

	rootCmd.AddCommand(
		newStatsCmd(flags),
		newDumpCmd(flags),
		newLoadCmd(flags),
		newBackupCmd(flags),
		newRestoreCmd(flags),
	)
	return rootCmd
}

// env is what every subcommand needs to work on a file.
type env struct {
	cfg *config.Config
	log *logger.Logger
}

func (f *globalFlags) load() (*env, error) {
	cfg, err := config.Load(f.cfgFile)
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log.Named("heapctl")}, nil
}

// openHeap opens path behind a private buffer pool. The returned func stops the lock manager and closes the
// file.
func (e *env) openHeap(path, schemaText string) (*heap.HeapFile, *buffer.BufferPool, func(), error) {
	schema, err := catalog.ParseSchema(schemaText)
	if err != nil {
		return nil, nil, nil, err
	}

	policy, err := heap.ParseScanErrorPolicy(e.cfg.Storage.ScanErrorPolicy)
	if err != nil {
		return nil, nil, nil, err
	}

	lm := locker.NewLockManager(e.cfg.DeadlockInterval(), e.log)
	pool := buffer.NewBufferPool(e.cfg.Storage.BufferPoolPages, e.cfg.Storage.PageSize, lm, e.log)

	hf, err := heap.Open(path, schema, pool,
		heap.WithScanErrorPolicy(policy),
		heap.WithFsync(e.cfg.Storage.Fsync),
		heap.WithLogger(e.log),
	)
	if err != nil {
		lm.Stop()
		return nil, nil, nil, err
	}
	pool.RegisterFile(hf)

	closer := func() {
		lm.Stop()
		if err := hf.Close(); err != nil {
			e.log.Warn("could not close heap file", "path", path, "error", err)
		}
		_ = e.log.Sync()
	}
	return hf, pool, closer, nil
}
