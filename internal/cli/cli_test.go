package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucketLines = `{"live": {"lastModified": 7, "account": {"accountId": "GALICE", "balance": 100, "seqNum": 1}}}
{"live": {"lastModified": 7, "account": {"accountId": "GBOB", "balance": 5, "seqNum": 1}}}
{"live": {"lastModified": 7, "trustLine": {"accountId": "GALICE", "asset": {"type": 1, "code": "USD", "issuer": "GBOB"}, "balance": 10, "limit": 50, "flags": 1}}}
{"dead": {"type": 3, "account": "GALICE", "dataName": "stale"}}
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
[database]
driver = "sqlite"
database = %q
max_open_conns = 4
max_idle_conns = 4

[bucket]
path = %q

[log]
level = "error"
`, filepath.Join(dir, "ledger.db"), filepath.Join(dir, "bucket"))

	path := filepath.Join(dir, "ledgerapply.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestCommands_ImportApplyRollback(t *testing.T) {
	conf := writeTestConfig(t)
	input := filepath.Join(t.TempDir(), "bucket.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(bucketLines), 0644))

	execute(t, "schema", "init", "--conf", conf)
	execute(t, "bucket", "import", input, "--conf", conf)

	dump := execute(t, "bucket", "dump", "--conf", conf)
	lines := strings.Split(strings.TrimSpace(dump), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], `"accountId":"GALICE"`)
	assert.Contains(t, lines[3], `"dead"`)

	execute(t, "apply", "--batching", "accumulate", "--conf", conf)

	counts := execute(t, "schema", "count", "--conf", conf)
	assert.Contains(t, counts, fmt.Sprintf("%-10s %d", entry.TypeAccount, 2))
	assert.Contains(t, counts, fmt.Sprintf("%-10s %d", entry.TypeTrustLine, 1))

	out := execute(t, "schema", "rollback", "--from-ledger", "7", "--conf", conf)
	assert.Contains(t, out, "deleted 3 entries")

	counts = execute(t, "schema", "count", "--conf", conf)
	assert.Contains(t, counts, fmt.Sprintf("%-10s %d", entry.TypeAccount, 0))
}

type fakeStepper struct {
	left      int
	calls     int
	onAdvance func(call int)
	seen      []error
}

func (f *fakeStepper) HasMore() bool { return f.left > 0 }

func (f *fakeStepper) Advance(ctx context.Context) error {
	f.calls++
	if f.onAdvance != nil {
		f.onAdvance(f.calls)
	}
	f.seen = append(f.seen, ctx.Err())
	f.left--
	return nil
}

func TestApplyAll_CancelsBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := &fakeStepper{left: 4, onAdvance: func(call int) {
		if call == 2 {
			cancel()
		}
	}}
	err := applyAll(ctx, app)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, app.calls)
	assert.Equal(t, []error{nil, nil}, app.seen, "a started chunk never sees the cancellation")
}

func TestApplyAll_RunsToExhaustion(t *testing.T) {
	app := &fakeStepper{left: 3}
	require.NoError(t, applyAll(context.Background(), app))
	assert.Equal(t, 3, app.calls)
}

func TestJSONEntry(t *testing.T) {
	_, err := jsonEntry{}.toEntry()
	assert.Error(t, err)

	k := entry.AccountKey("GALICE")
	_, err = jsonEntry{Live: &entry.Wire{}, Dead: &k}.toEntry()
	assert.Error(t, err)

	_, err = jsonEntry{Live: &entry.Wire{}}.toEntry()
	assert.Error(t, err)

	e, err := jsonEntry{Dead: &k}.toEntry()
	require.NoError(t, err)
	back, err := fromEntry(e)
	require.NoError(t, err)
	assert.Equal(t, k, *back.Dead)
}

func TestVersion(t *testing.T) {
	out := execute(t, "version")
	assert.Contains(t, out, "ledgerapply version")
}
