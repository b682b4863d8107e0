package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/LeJamon/goLedgerApply/internal/bucket"
	"github.com/LeJamon/goLedgerApply/internal/bucket/store"
	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// jsonEntry is one line of a bucket in JSON lines form. Exactly one of Live
// and Dead is set.
type jsonEntry struct {
	Live *entry.Wire      `json:"live,omitempty"`
	Dead *entry.LedgerKey `json:"dead,omitempty"`
}

func (j jsonEntry) toEntry() (bucket.Entry, error) {
	switch {
	case j.Live != nil && j.Dead == nil:
		e, err := entry.FromWire(*j.Live)
		if err != nil {
			return bucket.Entry{}, err
		}
		return bucket.Live(e), nil
	case j.Dead != nil && j.Live == nil:
		return bucket.Dead(*j.Dead), nil
	default:
		return bucket.Entry{}, errors.New("bucket line needs exactly one of live and dead")
	}
}

func fromEntry(e bucket.Entry) (jsonEntry, error) {
	if e.Kind == bucket.DeadEntry {
		k := e.Dead
		return jsonEntry{Dead: &k}, nil
	}
	w, err := entry.ToWire(e.Live)
	if err != nil {
		return jsonEntry{}, err
	}
	return jsonEntry{Live: &w}, nil
}

// importEntries decodes JSON entries from r into w.
func importEntries(r io.Reader, w *store.Writer) error {
	dec := json.NewDecoder(r)
	for line := 1; ; line++ {
		var j jsonEntry
		if err := dec.Decode(&j); err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("entry %d: %w", line, err)
		}
		e, err := j.toEntry()
		if err != nil {
			return fmt.Errorf("entry %d: %w", line, err)
		}
		if err := w.Add(e); err != nil {
			return fmt.Errorf("entry %d: %w", line, err)
		}
	}
}

// dumpEntries writes every entry of it to out as JSON lines.
func dumpEntries(it bucket.Iterator, out io.Writer) (int, error) {
	enc := json.NewEncoder(out)
	n := 0
	for it.HasNext() {
		e, err := it.Next()
		if err != nil {
			return n, err
		}
		j, err := fromEntry(e)
		if err != nil {
			return n, err
		}
		if err := enc.Encode(j); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Manage the bucket store",
}

var bucketImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import JSON lines entries into the bucket store",
	Long: `Read bucket entries, one JSON object per line, from file or stdin and
add them to the bucket store. A later entry for a key replaces an earlier one.

  {"live": {"lastModified": 7, "account": {"accountId": "GA...", "balance": 10}}}
  {"dead": {"type": 1, "account": "GA...", "asset": {"type": 1, "code": "USD", "issuer": "GB..."}}}`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv()
		if err != nil {
			return err
		}
		defer env.close()

		in := cmd.InOrStdin()
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		bs, err := store.Open(env.config.Bucket.StoreConfig(), store.WithLogger(env.logger))
		if err != nil {
			return err
		}
		defer bs.Close()

		w := bs.NewWriter()
		if err := importEntries(in, w); err != nil {
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		env.logger.Info("Imported bucket entries",
			zap.String("bucket", env.config.Bucket.Path),
			zap.Int("entries", w.Written()))
		return nil
	},
}

var bucketDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the bucket store as JSON lines in key order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv()
		if err != nil {
			return err
		}
		defer env.close()

		bs, err := store.Open(env.config.Bucket.StoreConfig(), store.WithLogger(env.logger))
		if err != nil {
			return err
		}
		defer bs.Close()

		it, err := bs.Iterator()
		if err != nil {
			return err
		}
		defer it.Close()

		n, err := dumpEntries(it, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		env.logger.Debug("Dumped bucket entries", zap.Int("entries", n))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bucketCmd)
	bucketCmd.AddCommand(bucketImportCmd, bucketDumpCmd)
}
