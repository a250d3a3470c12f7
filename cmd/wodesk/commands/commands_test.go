package commands

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/wodesk/internal/dispatcher"
	"git.home.luguber.info/inful/wodesk/internal/journal"
	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("wodesk"),
		kong.Vars{"version": "test"},
		kong.Exit(func(code int) { t.Fatalf("unexpected exit with code %d", code) }),
	)
	require.NoError(t, err)

	kctx, err := parser.Parse(args)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	err = kctx.Run(&Global{Out: &out}, &cli)
	return out.String(), err
}

func writeTestConfig(t *testing.T, dir string) (configPath, journalPath string) {
	t.Helper()
	journalPath = filepath.Join(dir, "journal.db")
	configPath = filepath.Join(dir, "wodesk.yaml")
	content := "remote:\n" +
		"  base_url: https://sccd.example.com/maximo/\n" +
		"  owner: TEAM\n" +
		"journal:\n" +
		"  driver: sqlite\n" +
		"  dsn: " + journalPath + "\n" +
		"mw_email:\n" +
		"  output_dir: " + filepath.Join(dir, "mw") + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return configPath, journalPath
}

func seedJournal(t *testing.T, path string) {
	t.Helper()
	ctx := context.Background()
	store, err := journal.NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	sink := journal.NewSink(store)
	sink.Record(ctx, dispatcher.Result{
		Job:        dispatcher.UpdateState("WO-1", workorder.StateQueued, dispatcher.ReasonExpiry),
		Outcome:    dispatcher.OutcomeSucceeded,
		Attempts:   1,
		Duration:   12 * time.Millisecond,
		FinishedAt: time.Now(),
	})
	sink.Record(ctx, dispatcher.Result{
		Job:        dispatcher.UpdateState("WO-2", workorder.StateInProgress, dispatcher.ReasonManual),
		Outcome:    dispatcher.OutcomeFailed,
		Attempts:   1,
		FinishedAt: time.Now(),
	})
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wodesk.yaml")

	out, err := runCLI(t, "-c", path, "init")
	require.NoError(t, err)
	require.Contains(t, out, "initialized successfully")
	require.FileExists(t, path)

	out, err = runCLI(t, "-c", path, "init")
	require.Error(t, err)
	require.Contains(t, out, "Initialization failed")

	_, err = runCLI(t, "-c", path, "init", "--force")
	require.NoError(t, err)

	outDir := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(outDir, 0o750))
	_, err = runCLI(t, "init", "-o", outDir)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(outDir, "wodesk.yaml"))
}

func TestJournalShowCommand(t *testing.T) {
	configPath, journalPath := writeTestConfig(t, t.TempDir())
	seedJournal(t, journalPath)

	out, err := runCLI(t, "-c", configPath, "journal", "show", "WO-1")
	require.NoError(t, err)
	require.Contains(t, out, "JobRecorded")
	require.Contains(t, out, "update_state")
	require.Contains(t, out, "succeeded")
	require.NotContains(t, out, "failed")

	out, err = runCLI(t, "-c", configPath, "journal", "show", "WO-2", "--json")
	require.NoError(t, err)
	var records []journal.Record
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Job)
	require.Equal(t, "failed", records[0].Job.Outcome)
}

func TestJournalExportCommand(t *testing.T) {
	dir := t.TempDir()
	configPath, journalPath := writeTestConfig(t, dir)
	seedJournal(t, journalPath)
	exportPath := filepath.Join(dir, "export.jsonl")

	_, err := runCLI(t, "-c", configPath, "journal", "export", "--since", "1h", "-o", exportPath)
	require.NoError(t, err)

	f, err := os.Open(exportPath)
	require.NoError(t, err)
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec journal.Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		ids = append(ids, rec.WorkOrderID)
	}
	require.NoError(t, sc.Err())
	require.ElementsMatch(t, []string{"WO-1", "WO-2"}, ids)

	out, err := runCLI(t, "-c", configPath, "journal", "export", "--from", "2001-01-01T00:00:00Z", "--to", "2001-01-02T00:00:00Z")
	require.NoError(t, err)
	require.Empty(t, strings.TrimSpace(out))
}

func TestJournalExportArchiveRequiresBucket(t *testing.T) {
	configPath, _ := writeTestConfig(t, t.TempDir())

	_, err := runCLI(t, "-c", configPath, "journal", "export", "--archive")
	require.Error(t, err)
	require.Contains(t, err.Error(), "archive.bucket")
}

func TestExportRange(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	start, end, err := exportRange(now, 2*time.Hour, "", "")
	require.NoError(t, err)
	require.Equal(t, now.Add(-2*time.Hour), start)
	require.Equal(t, now, end)

	start, end, err = exportRange(now, time.Hour, "2026-03-01T00:00:00Z", "2026-03-02T00:00:00Z")
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), end)

	_, _, err = exportRange(now, time.Hour, "yesterday", "")
	require.Error(t, err)
	_, _, err = exportRange(now, time.Hour, "2026-03-05T00:00:00Z", "")
	require.Error(t, err)
}

func TestMWEmailCommand(t *testing.T) {
	dir := t.TempDir()
	notePath := filepath.Join(dir, "note.txt")
	note := "rfc: RFC15265\nstatus: confirmed\nstart_date: 2026-03-04 22:00\nend_date: 2026-03-05 02:00\ndetails: core router swap\n"
	require.NoError(t, os.WriteFile(notePath, []byte(note), 0o600))
	outDir := filepath.Join(dir, "out")

	out, err := runCLI(t, "-c", filepath.Join(dir, "missing.yaml"), "mw-email", "WO-9", "-f", notePath, "--output-dir", outDir)
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	require.Equal(t, outDir, filepath.Dir(path))
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(body), "RFC15265")
}

func TestMWEmailCommand_ReadsStdin(t *testing.T) {
	dir := t.TempDir()
	cmd := &MWEmailCmd{
		WorkOrderID: "WO-3",
		NoteFile:    "-",
		OutputDir:   dir,
		stdin:       strings.NewReader("rfc: RFC1\n"),
	}
	var out bytes.Buffer
	require.NoError(t, cmd.Run(&Global{Out: &out}, &CLI{Config: filepath.Join(dir, "none.yaml")}))
	require.FileExists(t, strings.TrimSpace(out.String()))
}

func TestWriteWorkOrders(t *testing.T) {
	records := []workorder.WorkOrder{
		{ID: "WO-1", State: workorder.StateInProgress, DealCode: "DC1", Description: "CORE   ROUTER\nSWAP",
			ConfigItems: []workorder.ConfigItem{{ID: "CI1"}, {ID: "CI2"}}},
		{ID: "WO-2", State: workorder.StateQueued, Description: strings.Repeat("X", 80)},
	}

	var buf bytes.Buffer
	require.NoError(t, writeWorkOrders(&buf, records, false))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[1], "CORE ROUTER SWAP")
	require.Contains(t, lines[2], strings.Repeat("X", descriptionWidth-1)+"…")

	buf.Reset()
	require.NoError(t, writeWorkOrders(&buf, filterState(records, "queued"), true))
	var decoded []workorder.WorkOrder
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	require.Equal(t, "WO-2", decoded[0].ID)
}

func TestAddCICommand(t *testing.T) {
	var (
		mu    sync.Mutex
		posts []map[string]any
	)
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/maximo/oslc/os/sidwo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"member": [{"href": "`+server.URL+`/maximo/oslc/os/sidwo/_V08xMDA-"}]}`)
	})
	mux.HandleFunc("/maximo/oslc/os/sidwo/_V08xMDA-", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		posts = append(posts, body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	configPath := filepath.Join(t.TempDir(), "wodesk.yaml")
	content := "remote:\n" +
		"  base_url: " + server.URL + "/maximo/\n" +
		"  owner: TEAM\n" +
		"  username: svc\n" +
		"  password: secret\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	out, err := runCLI(t, "-c", configPath, "add-ci", "WO100", "8011868.SV=AP MERAKI", "8011869.SV")
	require.NoError(t, err)
	require.Contains(t, out, "Added 2 configuration item(s) to WO100")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, posts, 1)
	cis, ok := posts[0]["multiassetlocci"].([]any)
	require.True(t, ok, "payload %v", posts[0])
	require.Len(t, cis, 2)
	require.Equal(t, map[string]any{"cinum": "8011868.SV", "targetdesc": "AP MERAKI"}, cis[0])
	require.Equal(t, map[string]any{"cinum": "8011869.SV"}, cis[1])
}

func TestParseConfigItems(t *testing.T) {
	items, err := parseConfigItems([]string{" 1.SV = RUCKUS AP ", "2.SV"})
	require.NoError(t, err)
	require.Equal(t, []workorder.ConfigItem{{ID: "1.SV", Description: "RUCKUS AP"}, {ID: "2.SV"}}, items)

	_, err = parseConfigItems([]string{"=orphan description"})
	require.Error(t, err)
}
