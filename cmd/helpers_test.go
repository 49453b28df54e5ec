package cmd

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iksnae/doc-session/internal"
	"github.com/iksnae/doc-session/testutil"
	"github.com/spf13/cobra"
)

// testEnv isolates a command run from the user's home, config and .env files
type testEnv struct {
	dir     string
	dbPath  string
	backend *testutil.Backend
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := testutil.CreateTempDir(t)
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	return &testEnv{
		dir:     dir,
		dbPath:  filepath.Join(dir, "documents.db"),
		backend: testutil.NewBackend(t),
	}
}

// seed writes the sample document history into the env's database
func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	testutil.CreateSQLiteFixture(t, e.dbPath, internal.DefaultConfig().StoreKey, testutil.SampleDocumentsJSON)
}

// run executes the CLI against the env's backend and sqlite file
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	full := append([]string{"--api-url", e.backend.APIURL(), "--store", "sqlite", "--store-path", e.dbPath}, args...)
	return runCommand(t, stdin, full...)
}

// documents reloads the persisted history
func (e *testEnv) documents(t *testing.T) []internal.Document {
	t.Helper()
	kv, err := internal.OpenSQLiteKV(e.dbPath)
	if err != nil {
		t.Fatalf("OpenSQLiteKV() error = %v", err)
	}
	defer kv.Close()

	store := internal.NewDocumentStore(kv, internal.DefaultConfig().StoreKey, 50)
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return store.List()
}

func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	var stdout bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))

	err := rootCmd.Execute()
	return stdout.String(), err
}

// resetFlags restores flag defaults; cobra keeps values between executions
func resetFlags() {
	verbose = false
	configPath, apiURL, storeName, storePath = "", "", "", ""
	listRefresh = false
	uploadWait, submitWait = false, false
	showRefresh, showWait, showText = false, false, false
	historyLimit = 0
	format, outputDir = "jsonl", "./exports"
	healthcheckDetails = false
	inspectFormat, inspectPattern = "text", "%"

	var reset func(c *cobra.Command)
	reset = func(c *cobra.Command) {
		for _, name := range []string{"help", "version"} {
			if f := c.Flags().Lookup(name); f != nil {
				_ = f.Value.Set("false")
				f.Changed = false
			}
		}
		for _, sub := range c.Commands() {
			reset(sub)
		}
	}
	reset(rootCmd)
}

func assertContains(t *testing.T, output string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(output, w) {
			t.Errorf("output missing %q:\n%s", w, output)
		}
	}
}
