package daemon

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/wodesk/internal/config"
	"git.home.luguber.info/inful/wodesk/internal/events"
	"git.home.luguber.info/inful/wodesk/internal/server/responses"
	"git.home.luguber.info/inful/wodesk/internal/testsccd"
	"git.home.luguber.info/inful/wodesk/internal/workorder"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Remote:    config.RemoteConfig{BaseURL: "http://sccd.invalid/maximo/", Owner: "TEAM"},
		Lifecycle: config.LifecycleConfig{TickInterval: time.Millisecond},
		Journal: config.JournalConfig{
			Driver: config.JournalDriverSQLite,
			DSN:    filepath.Join(t.TempDir(), "journal.db"),
		},
		MWEmail: config.MWEmailConfig{OutputDir: filepath.Join(t.TempDir(), "mw")},
		HTTP:    config.HTTPConfig{Listen: "127.0.0.1:0"},
	}
	config.ApplyDefaults(cfg)
	cfg.Dispatcher.ShutdownTimeout = 5 * time.Second
	return cfg
}

func testRecords() []workorder.WorkOrder {
	return []workorder.WorkOrder{
		{ID: "WO-1", State: workorder.StateQueued, Description: "ROUTER SWAP"},
		{ID: "WO-2", State: workorder.StatePending, Description: "FIREWALL RULES"},
	}
}

func startDaemon(t *testing.T, cfg *config.Config, opts Options) *Daemon {
	t.Helper()
	ctx := context.Background()
	d, err := New(ctx, cfg, "", opts)
	require.NoError(t, err)
	require.NoError(t, d.Start(ctx))
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Stop(stopCtx)
	})
	return d
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func (p *recordingPublisher) published() ([]string, [][]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...), append([][]byte(nil), p.payloads...)
}

func TestDaemon_StartLoadsViewAndServesHealth(t *testing.T) {
	remote := testsccd.New(testRecords()...)
	d := startDaemon(t, testConfig(t), Options{Remote: remote})

	require.Equal(t, StatusRunning, d.GetStatus())
	require.Len(t, d.Rows(), 2)
	require.False(t, d.Stale())
	require.False(t, d.LastSync().IsZero())

	addr := d.HTTPAddr()
	require.NotNil(t, addr)
	resp, err := http.Get("http://" + addr.String() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health responses.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	require.Equal(t, "healthy", health.Status)
	require.Equal(t, 2, health.Rows)
	require.Equal(t, 6, health.Dispatcher.Workers)
}

func TestDaemon_StopIsIdempotentAndFinal(t *testing.T) {
	d, err := New(context.Background(), testConfig(t), "", Options{Remote: testsccd.New(testRecords()...)})
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))

	require.NoError(t, d.Stop(context.Background()))
	require.NoError(t, d.Stop(context.Background()))
	require.Equal(t, StatusStopped, d.GetStatus())

	require.Error(t, d.Start(context.Background()))
}

func TestDaemon_HealthAnswersWhileStopHoldsLock(t *testing.T) {
	d := startDaemon(t, testConfig(t), Options{Remote: testsccd.New(testRecords()...)})
	url := "http://" + d.HTTPAddr().String() + "/healthz"
	client := &http.Client{Timeout: 2 * time.Second}

	// Stop holds d.mu while it shuts the HTTP server down; in-flight health
	// requests must still complete so the shutdown does not eat the drain budget.
	func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		resp, err := client.Get(url)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.False(t, d.StartTime().IsZero())

		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		require.NoError(t, d.httpServer.Stop(ctx))
		require.NoError(t, ctx.Err())
	}()
}

func TestDaemon_ExpiryIsPushedJournaledAndForwarded(t *testing.T) {
	remote := testsccd.New(testRecords()...)
	pub := &recordingPublisher{}
	cfg := testConfig(t)
	d := startDaemon(t, cfg, Options{Remote: remote, Publisher: pub})

	applied, err := d.ApplyState(context.Background(), []string{"WO-1"}, workorder.StateInProgress, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"WO-1"}, applied)

	// One minute is sixty ticks of one millisecond.
	require.Eventually(t, func() bool {
		for _, c := range remote.CallsOf(testsccd.CallUpdate) {
			if c.ID == "WO-1" && c.State == workorder.StateQueued {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	row, ok := d.store.Get("WO-1")
	require.True(t, ok)
	require.Equal(t, workorder.StateQueued, row.State)
	require.Zero(t, row.RemainingMinutes)

	require.Eventually(t, func() bool {
		s, ok := d.History().Get("WO-1")
		return ok && s.Expiries == 1 && s.Jobs >= 2
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		subjects, _ := pub.published()
		return len(subjects) == 1
	}, 5*time.Second, 10*time.Millisecond)
	subjects, payloads := pub.published()
	require.Equal(t, cfg.Notify.Subject, subjects[0])

	var evt events.TimerExpired
	require.NoError(t, json.Unmarshal(payloads[0], &evt))
	require.Equal(t, "WO-1", evt.WorkOrderID)
	require.Equal(t, workorder.StateQueued, evt.State)
}

func TestDaemon_FailedListingMarksViewStale(t *testing.T) {
	remote := testsccd.New(testRecords()...)
	remote.FailListing(true)
	d := startDaemon(t, testConfig(t), Options{Remote: remote})

	require.True(t, d.Stale())
	require.True(t, d.LastSync().IsZero())
	require.Empty(t, d.Rows())

	remote.FailListing(false)
	rec, err := d.SoftClear(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, rec.Loaded)
	require.False(t, d.Stale())
	require.False(t, d.LastSync().IsZero())
}

func TestDaemon_ApplyConfigReschedulesRefreshAndLevel(t *testing.T) {
	remote := testsccd.New(testRecords()...)
	level := new(slog.LevelVar)
	cfg := testConfig(t)
	d := startDaemon(t, cfg, Options{Remote: remote, LevelVar: level})

	require.False(t, d.scheduler.Scheduled(refreshTask))

	next := *cfg
	next.Sync.RefreshInterval = 20 * time.Millisecond
	next.Logging.Level = config.LogLevelDebug
	next.HTTP.Listen = "127.0.0.1:9"
	require.NoError(t, d.ApplyConfig(&next))

	require.True(t, d.scheduler.Scheduled(refreshTask))
	require.Equal(t, slog.LevelDebug, level.Level())
	require.Equal(t, cfg.HTTP.Listen, d.Config().HTTP.Listen)
	require.Equal(t, 20*time.Millisecond, d.Config().Sync.RefreshInterval)

	require.Eventually(t, func() bool {
		return len(remote.CallsOf(testsccd.CallList)) >= 3
	}, 5*time.Second, 10*time.Millisecond)

	disabled := next
	disabled.Sync.RefreshInterval = 0
	require.NoError(t, d.ApplyConfig(&disabled))
	require.False(t, d.scheduler.Scheduled(refreshTask))
}

func TestRestartSections(t *testing.T) {
	prev := &config.Config{}
	config.ApplyDefaults(prev)
	next := *prev
	next.Remote.StateMap = map[string]string{"INPRG": "IN_PROGRESS"}
	next.HTTP.Listen = ":9999"
	next.Sync.RefreshInterval = time.Minute

	require.Equal(t, []string{"remote", "http"}, restartSections(prev, &next))
	require.Empty(t, restartSections(prev, prev))
}
