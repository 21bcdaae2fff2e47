package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"grimm.is/bbfw/internal/config"
	"grimm.is/bbfw/internal/diff"
	"grimm.is/bbfw/internal/history"
	"grimm.is/bbfw/internal/iptables"
	"grimm.is/bbfw/internal/render"
)

const liveDump = `# Generated by iptables-save v1.8.9
*nat
:PREROUTING ACCEPT [0:0]
:INPUT ACCEPT [0:0]
:OUTPUT ACCEPT [0:0]
:POSTROUTING ACCEPT [0:0]
-A POSTROUTING -o eth0 -j MASQUERADE
COMMIT
*filter
:INPUT ACCEPT [120:9000]
:FORWARD ACCEPT [0:0]
:OUTPUT ACCEPT [80:7000]
:LOGDROP - [0:0]
-A INPUT -p tcp -m tcp --dport 22 -j ACCEPT
-A INPUT -j LOGDROP
-A LOGDROP -j LOG
-A LOGDROP -j DROP
COMMIT
`

// matchingConfig declares the same rules as liveDump.
var matchingConfig = map[string]string{
	"nat/POSTROUTING.src": "-o eth0 -j MASQUERADE\n",
	"filter/INPUT.src":    "# ssh\n-p tcp --dport 22 -j ACCEPT\n-j LOGDROP\n",
	"filter/LOGDROP.src":  "-j LOG\n-j DROP\n",
}

type fakeConfirmer struct {
	answer bool
	asked  []string
}

func (f *fakeConfirmer) Confirm(title, _ string) (bool, error) {
	f.asked = append(f.asked, title)
	return f.answer, nil
}

type testApp struct {
	*App
	runner  *iptables.MockCommandRunner
	prompt  *fakeConfirmer
	out     *bytes.Buffer
	confDir string
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func newTestApp(t *testing.T, files map[string]string) *testApp {
	t.Helper()
	tmp := t.TempDir()

	cfg := config.Default()
	cfg.ConfigDir = filepath.Join(tmp, "tables")
	cfg.HistoryDB = filepath.Join(tmp, "state", "history.db")
	cfg.LockFile = filepath.Join(tmp, "bbfw.lock")
	cfg.Color = false
	writeFiles(t, cfg.ConfigDir, files)

	runner := new(iptables.MockCommandRunner)
	app, err := newApp(cfg, runner)
	require.NoError(t, err)

	ta := &testApp{
		App:     app,
		runner:  runner,
		prompt:  &fakeConfirmer{answer: true},
		out:     &bytes.Buffer{},
		confDir: cfg.ConfigDir,
	}
	app.Out = ta.out
	app.Prompt = ta.prompt
	return ta
}

func (ta *testApp) withLive(dump string) *testApp {
	ta.runner.On("Output", "iptables-save").Return([]byte(dump), nil)
	return ta
}

func (ta *testApp) snapshots(t *testing.T) []history.Snapshot {
	t.Helper()
	store, err := ta.openHistory()
	require.NoError(t, err)
	defer store.Close()
	snaps, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	return snaps
}

func TestShowSummary(t *testing.T) {
	ta := newTestApp(t, nil).withLive(liveDump)

	require.NoError(t, ta.Show(context.Background(), ShowOptions{}))
	out := ta.out.String()
	assert.Contains(t, out, "*nat\n")
	assert.Contains(t, out, "*filter\n")
	assert.Contains(t, out, "INPUT (policy ACCEPT, 2 rules)")
	assert.Contains(t, out, "LOGDROP (2 rules)")
}

func TestShowVerboseTable(t *testing.T) {
	ta := newTestApp(t, nil).withLive(liveDump)

	opts := ShowOptions{Verbose: true, Filter: render.Filter{Table: "filter"}}
	require.NoError(t, ta.Show(context.Background(), opts))
	out := ta.out.String()
	assert.Contains(t, out, "-A INPUT -p tcp -m tcp --dport 22 -j ACCEPT\n")
	assert.NotContains(t, out, "*nat")
}

func TestShowFilterErrors(t *testing.T) {
	tests := []struct {
		name   string
		filter render.Filter
	}{
		{"chain without table", render.Filter{Chain: "INPUT"}},
		{"unknown table", render.Filter{Table: "bogus"}},
		{"missing table", render.Filter{Table: "mangle"}},
		{"missing chain", render.Filter{Table: "filter", Chain: "NOPE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t, nil).withLive(liveDump)
			assert.Error(t, ta.Show(context.Background(), ShowOptions{Filter: tt.filter}))
		})
	}
}

func TestShowConfigYAML(t *testing.T) {
	ta := newTestApp(t, matchingConfig)

	require.NoError(t, ta.ShowConfig(ShowOptions{YAML: true}))
	out := ta.out.String()
	assert.Contains(t, out, "name: filter")
	assert.Contains(t, out, "- -j LOGDROP")
	ta.runner.AssertNotCalled(t, "Output", "iptables-save")
}

func TestCompareIdentical(t *testing.T) {
	ta := newTestApp(t, matchingConfig).withLive(liveDump)

	require.NoError(t, ta.Compare(context.Background(), CompareOptions{}))
	assert.Equal(t, "No difference.\n", ta.out.String())
}

func TestCompareDiffers(t *testing.T) {
	files := map[string]string{
		"filter/INPUT.src":   "-p tcp --dport 22 -j ACCEPT\n-p tcp --dport 80 -j ACCEPT\n-j LOGDROP\n",
		"filter/LOGDROP.src": "-j LOG\n-j DROP\n",
	}
	ta := newTestApp(t, files).withLive(liveDump)

	err := ta.Compare(context.Background(), CompareOptions{Scope: diff.Scope{Table: "filter"}})
	assert.ErrorIs(t, err, ErrDiffer)
	out := ta.out.String()
	assert.Contains(t, out, "(<) and live (>), table filter only")
	assert.Contains(t, out, "< -p tcp --dport 80 -j ACCEPT")
	assert.NotContains(t, out, "nat")
}

func TestCompareAgainstFile(t *testing.T) {
	ta := newTestApp(t, matchingConfig)
	dump := filepath.Join(t.TempDir(), "saved.rules")
	require.NoError(t, os.WriteFile(dump, []byte(liveDump), 0644))

	require.NoError(t, ta.Compare(context.Background(), CompareOptions{Against: dump}))
	assert.Equal(t, "No difference.\n", ta.out.String())
	ta.runner.AssertNotCalled(t, "Output", "iptables-save")
}

func TestCompareUnified(t *testing.T) {
	files := map[string]string{
		"filter/INPUT.src": "-j DROP\n",
	}
	ta := newTestApp(t, files).withLive(liveDump)

	err := ta.Compare(context.Background(), CompareOptions{Scope: diff.Scope{Table: "filter"}, Unified: true})
	assert.ErrorIs(t, err, ErrDiffer)
	assert.Contains(t, ta.out.String(), "+-A INPUT -j LOGDROP")
}

func loadChangeConfig() map[string]string {
	return map[string]string{
		"filter/INPUT.src":   "-p tcp --dport 22 -j ACCEPT\n-j LOGDROP\n-p tcp --dport 80 -j ACCEPT\n",
		"filter/LOGDROP.src": "-j LOG\n-j DROP\n",
	}
}

func TestLoad(t *testing.T) {
	ta := newTestApp(t, loadChangeConfig()).withLive(liveDump)
	ta.runner.On("RunInput", mock.MatchedBy(func(input string) bool {
		return strings.Contains(input, "-A INPUT -p tcp --dport 80 -j ACCEPT\n") && !strings.Contains(input, "*nat")
	}), "iptables-restore").Return([]byte(""), nil)

	require.NoError(t, ta.Load(context.Background(), LoadOptions{}))

	out := ta.out.String()
	assert.Contains(t, out, "Compare ")
	assert.Contains(t, out, "Rules loaded successfully.\n")
	assert.Equal(t, []string{"Load these rules?"}, ta.prompt.asked)
	ta.runner.AssertExpectations(t)

	snaps := ta.snapshots(t)
	require.Len(t, snaps, 1)
	assert.Equal(t, "load", snaps[0].Operation)
	assert.Equal(t, "live", snaps[0].Name)
	assert.Contains(t, snaps[0].Content, "-A POSTROUTING -o eth0 -j MASQUERADE")
}

func TestLoadDeclined(t *testing.T) {
	ta := newTestApp(t, loadChangeConfig()).withLive(liveDump)
	ta.prompt.answer = false

	require.NoError(t, ta.Load(context.Background(), LoadOptions{}))
	assert.Contains(t, ta.out.String(), "No changes applied.\n")
	ta.runner.AssertNotCalled(t, "RunInput", mock.Anything, mock.Anything)
	assert.Empty(t, ta.snapshots(t))
}

func TestLoadDryRunAndYes(t *testing.T) {
	ta := newTestApp(t, loadChangeConfig()).withLive(liveDump)

	require.NoError(t, ta.Load(context.Background(), LoadOptions{DryRun: true}))
	assert.Contains(t, ta.out.String(), "< -p tcp --dport 80 -j ACCEPT")
	ta.runner.AssertNotCalled(t, "RunInput", mock.Anything, mock.Anything)

	ta.runner.On("RunInput", mock.Anything, "iptables-restore").Return([]byte(""), nil)
	require.NoError(t, ta.Load(context.Background(), LoadOptions{Yes: true}))
	assert.Empty(t, ta.prompt.asked)
	ta.runner.AssertNumberOfCalls(t, "RunInput", 1)
}

func TestLoadNothingToDo(t *testing.T) {
	ta := newTestApp(t, matchingConfig).withLive(liveDump)

	require.NoError(t, ta.Load(context.Background(), LoadOptions{}))
	assert.Equal(t, "Rulesets are identical, nothing to do.\n", ta.out.String())
	assert.Empty(t, ta.prompt.asked)
}

func TestLoadReportsFailingRule(t *testing.T) {
	ta := newTestApp(t, loadChangeConfig()).withLive(liveDump)
	// header, table comment, *filter, four policies, then INPUT's rules.
	ta.runner.On("RunInput", mock.Anything, "iptables-restore").
		Return([]byte("iptables-restore: line 10 failed\n"), errors.New("exit status 1"))

	err := ta.Load(context.Background(), LoadOptions{Yes: true})
	var re *iptables.RestoreError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, ta.out.String(),
		"Could not load rules: error at line 10 (table filter, chain INPUT)\n--> -p tcp --dport 80 -j ACCEPT\n")
}

func TestLoadRefusesDanglingReferences(t *testing.T) {
	ta := newTestApp(t, map[string]string{"filter/INPUT.src": "-j MISSING\n"})

	err := ta.Load(context.Background(), LoadOptions{Yes: true})
	require.Error(t, err)
	assert.Contains(t, ta.out.String(), "MISSING")
	ta.runner.AssertNotCalled(t, "Output", "iptables-save")
}

func TestPurge(t *testing.T) {
	ta := newTestApp(t, nil).withLive(liveDump)
	ta.runner.On("RunInput", mock.MatchedBy(func(input string) bool {
		return strings.Contains(input, "*filter") && !strings.Contains(input, "LOGDROP")
	}), "iptables-restore").Return([]byte(""), nil)

	require.NoError(t, ta.Purge(context.Background(), PurgeOptions{Table: "filter", Chain: "LOGDROP", Force: true}))
	assert.Contains(t, ta.out.String(), "Rules loaded successfully.\n")
	ta.runner.AssertExpectations(t)

	snaps := ta.snapshots(t)
	require.Len(t, snaps, 1)
	assert.Equal(t, "purge", snaps[0].Operation)
}

func TestPurgeErrors(t *testing.T) {
	ta := newTestApp(t, nil).withLive(liveDump)

	assert.Error(t, ta.Purge(context.Background(), PurgeOptions{Table: "filter"}))
	assert.Error(t, ta.Purge(context.Background(), PurgeOptions{Table: "raw", Chain: "PREROUTING", Force: true}))
	assert.Error(t, ta.Purge(context.Background(), PurgeOptions{Table: "filter", Chain: "NOPE", Force: true}))
}

func TestValidate(t *testing.T) {
	ta := newTestApp(t, matchingConfig)
	require.NoError(t, ta.Validate(Source{}))
	assert.Equal(t, "No problems found.\n", ta.out.String())

	broken := newTestApp(t, map[string]string{"filter/INPUT.src": "-j MISSING\n"})
	err := broken.Validate(Source{})
	require.Error(t, err)
	assert.Contains(t, broken.out.String(), "jump to undefined chain MISSING")
}

func TestValidateMissingDirectory(t *testing.T) {
	ta := newTestApp(t, nil)
	assert.Error(t, ta.Validate(Source{Dir: filepath.Join(t.TempDir(), "nope")}))
}

func TestExport(t *testing.T) {
	ta := newTestApp(t, nil).withLive(liveDump)
	dir := filepath.Join(t.TempDir(), "export")

	require.NoError(t, ta.Export(context.Background(), ExportOptions{Dir: dir}))
	assert.Contains(t, ta.out.String(), "Table nat saved.\n")
	assert.Contains(t, ta.out.String(), "Table filter saved.\n")

	data, err := os.ReadFile(filepath.Join(dir, "filter", "LOGDROP.src"))
	require.NoError(t, err)
	assert.Equal(t, "-j LOG\n-j DROP\n", string(data))

	props, err := os.ReadFile(filepath.Join(dir, "filter.props"))
	require.NoError(t, err)
	assert.Contains(t, string(props), ":LOGDROP - [0:0]\n")

	assert.Error(t, ta.Export(context.Background(), ExportOptions{Dir: dir}), "existing files are kept")
	require.NoError(t, ta.Export(context.Background(), ExportOptions{Dir: dir, Force: true}))

	// The exported directory reads back as the live rules.
	ta.out.Reset()
	require.NoError(t, ta.Compare(context.Background(), CompareOptions{Source: Source{Dir: dir}}))
	assert.Equal(t, "No difference.\n", ta.out.String())
}

func TestHistoryAndRollback(t *testing.T) {
	ta := newTestApp(t, nil).withLive(liveDump)
	ctx := context.Background()

	require.NoError(t, ta.History(ctx, 0))
	assert.Equal(t, "No snapshots recorded.\n", ta.out.String())

	store, err := ta.openHistory()
	require.NoError(t, err)
	snap, err := store.Record(ctx, history.Snapshot{
		Name:      "live",
		Operation: "load",
		Content:   "*filter\n:INPUT DROP [0:0]\n:FORWARD DROP [0:0]\n:OUTPUT ACCEPT [0:0]\n-A INPUT -i lo -j ACCEPT\nCOMMIT\n",
		Tables:    1,
		Chains:    3,
		Rules:     1,
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	ta.out.Reset()
	require.NoError(t, ta.History(ctx, 10))
	assert.Contains(t, ta.out.String(), snap.ShortID())
	assert.Contains(t, ta.out.String(), "OPERATION")

	ta.runner.On("RunInput", mock.MatchedBy(func(input string) bool {
		return strings.Contains(input, ":INPUT DROP [0:0]") &&
			strings.Contains(input, "*nat") &&
			!strings.Contains(input, "MASQUERADE")
	}), "iptables-restore").Return([]byte(""), nil)

	ta.out.Reset()
	require.NoError(t, ta.Rollback(ctx, RollbackOptions{ID: snap.ShortID(), Yes: true}))
	assert.Contains(t, ta.out.String(), "Restored snapshot "+snap.ShortID()+".\n")
	ta.runner.AssertExpectations(t)

	// The rules replaced by the rollback were saved first.
	snaps := ta.snapshots(t)
	require.Len(t, snaps, 2)
	assert.Equal(t, "rollback", snaps[0].Operation)
}

func TestRollbackUnknownSnapshot(t *testing.T) {
	ta := newTestApp(t, nil)
	err := ta.Rollback(context.Background(), RollbackOptions{ID: "deadbeef", Yes: true})
	assert.ErrorIs(t, err, history.ErrNotFound)
}

func TestMetricsTextfile(t *testing.T) {
	ta := newTestApp(t, nil).withLive(liveDump)
	ta.Config.MetricsTextfile = filepath.Join(t.TempDir(), "bbfw.prom")

	require.NoError(t, ta.Show(context.Background(), ShowOptions{}))

	data, err := os.ReadFile(ta.Config.MetricsTextfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `bbfw_operations_total{operation="show",result="success"} 1`)
	assert.Contains(t, string(data), `bbfw_ruleset_rules{ruleset="live"} 5`)
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bbfw.hcl")
	require.NoError(t, RunInitConfig(path, false))
	assert.Error(t, RunInitConfig(path, false))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}
