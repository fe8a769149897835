package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"heapdb/catalog"
	"heapdb/catalog/db_types"
	"heapdb/common"
	"heapdb/disk"
	"heapdb/transaction"
)

func newStatsCmd(flags *globalFlags) *cobra.Command {
	var schema string
	cmd := &cobra.Command{
		Use:   "stats <file>",
		Short: "Print size, page count and slot usage of a heap file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.load()
			if err != nil {
				return err
			}
			return e.stats(cmd.OutOrStdout(), args[0], schema)
		},
	}
	cmd.Flags().StringVarP(&schema, "schema", "s", "", "row layout, e.g. int:id,string:name")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func (e *env) stats(w io.Writer, path, schema string) error {
	hf, _, closer, err := e.openHeap(path, schema)
	if err != nil {
		return err
	}
	defer closer()

	n, err := hf.NumPages()
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "stat %v", path)
	}

	wellFormed := "yes"
	if err := hf.CheckWellFormed(); err != nil {
		wellFormed = "no"
	}

	used, empty, err := hf.SlotUsage()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "file:        %s\n", path)
	fmt.Fprintf(w, "file id:     %d\n", hf.ID())
	fmt.Fprintf(w, "schema:      %s\n", hf.Schema())
	fmt.Fprintf(w, "size:        %d\n", info.Size())
	fmt.Fprintf(w, "page size:   %d\n", hf.PageSize())
	fmt.Fprintf(w, "pages:       %d\n", n)
	fmt.Fprintf(w, "well formed: %s\n", wellFormed)
	fmt.Fprintf(w, "used slots:  %d\n", used)
	fmt.Fprintf(w, "free slots:  %d\n", empty)
	return nil
}

func newDumpCmd(flags *globalFlags) *cobra.Command {
	var schema string
	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Print every row of a heap file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.load()
			if err != nil {
				return err
			}
			return e.dump(cmd.OutOrStdout(), args[0], schema)
		},
	}
	cmd.Flags().StringVarP(&schema, "schema", "s", "", "row layout, e.g. int:id,string:name")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func (e *env) dump(w io.Writer, path, schema string) error {
	hf, pool, closer, err := e.openHeap(path, schema)
	if err != nil {
		return err
	}
	defer closer()

	txn := transaction.New()
	defer func() { _ = pool.TransactionComplete(txn, true) }()

	scan := hf.Iterator(txn)
	scan.Open()
	defer scan.Close()

	bw := bufio.NewWriter(w)
	for {
		ok, err := scan.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		t, err := scan.Next()
		if err != nil {
			return err
		}
		if _, err := bw.WriteString(t.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func newLoadCmd(flags *globalFlags) *cobra.Command {
	var schema string
	var poolPages int
	cmd := &cobra.Command{
		Use:   "load <file>",
		Short: "Insert tab separated rows read from stdin in a single transaction",
		Long: `Insert tab separated rows read from stdin in a single transaction.

Every page the load writes stays in the buffer pool until the transaction commits, so
one load can fill at most buffer_pool_pages pages (50 pages of 4096 bytes by default).
Raise the limit with --pool-pages or split the input into several loads.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.load()
			if err != nil {
				return err
			}
			if poolPages > 0 {
				e.cfg.Storage.BufferPoolPages = poolPages
			}
			n, err := e.load(cmd.InOrStdin(), args[0], schema)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d rows\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&schema, "schema", "s", "", "row layout, e.g. int:id,string:name")
	cmd.Flags().IntVar(&poolPages, "pool-pages", 0, "buffer pool size in pages for this load, overrides buffer_pool_pages")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

// load inserts every non empty line of r. Nothing is written if any line fails.
func (e *env) load(r io.Reader, path, schemaText string) (int, error) {
	hf, pool, closer, err := e.openHeap(path, schemaText)
	if err != nil {
		return 0, err
	}
	defer closer()

	txn := transaction.New()
	n, err := insertRows(r, hf.Schema(), func(t *catalog.Tuple) error {
		_, err := hf.InsertTuple(txn, t)
		return err
	})
	if err != nil {
		if abortErr := pool.TransactionComplete(txn, false); abortErr != nil {
			e.log.Error("could not abort load", "error", abortErr)
		}
		if errors.Is(err, common.ErrBufferFull) {
			return 0, errors.Wrapf(err, "input needs more than %d pages, raise --pool-pages", e.cfg.Storage.BufferPoolPages)
		}
		return 0, err
	}

	if err := pool.TransactionComplete(txn, true); err != nil {
		return 0, err
	}
	e.log.Info("rows are loaded", "path", path, "rows", n)
	return n, nil
}

func insertRows(r io.Reader, schema *catalog.Schema, insert func(*catalog.Tuple) error) (int, error) {
	sc := bufio.NewScanner(r)
	n, line := 0, 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" {
			continue
		}

		t, err := parseRow(schema, text)
		if err != nil {
			return 0, errors.Wrapf(err, "line %d", line)
		}
		if err := insert(t); err != nil {
			return 0, errors.Wrapf(err, "line %d", line)
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return 0, errors.Wrap(err, "read rows")
	}
	return n, nil
}

// parseRow builds a tuple from tab separated values.
func parseRow(schema *catalog.Schema, text string) (*catalog.Tuple, error) {
	values := strings.Split(text, "\t")
	if len(values) != schema.NumFields() {
		return nil, errors.Errorf("expected %d values, got %d", schema.NumFields(), len(values))
	}

	t, err := catalog.NewTuple(schema)
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		typ, err := schema.FieldType(i)
		if err != nil {
			return nil, err
		}
		f, err := db_types.ParseField(typ, v)
		if err != nil {
			return nil, err
		}
		if err := t.SetField(i, f); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func newBackupCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <file> <out>",
		Short: "Write a snappy compressed copy of a heap file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.load()
			if err != nil {
				return err
			}
			n, err := e.backup(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backed up %d bytes\n", n)
			return nil
		},
	}
}

func (e *env) backup(path, out string) (int64, error) {
	f, err := disk.Open(path, e.cfg.Storage.PageSize, false)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := f.CheckWellFormed(); err != nil {
		e.log.Warn("backing up malformed file", "path", path, "error", err)
	}

	w, err := os.Create(out)
	if err != nil {
		return 0, errors.Wrapf(err, "create %v", out)
	}

	n, err := f.Backup(w)
	if err != nil {
		_ = w.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, errors.Wrapf(err, "close %v", out)
	}
	e.log.Info("file is backed up", "path", path, "out", out, "bytes", n)
	return n, nil
}

func newRestoreCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <in> <file>",
		Short: "Replace a heap file with the content of a backup",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.load()
			if err != nil {
				return err
			}
			n, err := e.restore(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d bytes\n", n)
			return nil
		},
	}
}

func (e *env) restore(in, path string) (int64, error) {
	r, err := os.Open(in)
	if err != nil {
		return 0, errors.Wrapf(err, "open %v", in)
	}
	defer r.Close()

	n, err := disk.Restore(r, path)
	if err != nil {
		return 0, err
	}
	e.log.Info("file is restored", "in", in, "path", path, "bytes", n)
	return n, nil
}
