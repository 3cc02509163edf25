package ylog_test

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/ylog/internal/relay"
	"github.com/bft-labs/ylog/pkg/ylog"
)

// trackingPlugin records initialization and shutdown order.
type trackingPlugin struct {
	name          string
	initOrder     *[]string
	shutdownOrder *[]string
	mu            *sync.Mutex
	initErr       error
	cfg           ylog.PluginConfig
}

func (p *trackingPlugin) Name() string { return p.name }

func (p *trackingPlugin) Initialize(ctx context.Context, cfg ylog.PluginConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initErr != nil {
		return p.initErr
	}
	p.cfg = cfg
	*p.initOrder = append(*p.initOrder, p.name)
	return nil
}

func (p *trackingPlugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	*p.shutdownOrder = append(*p.shutdownOrder, p.name)
	return nil
}

type eventTracker struct {
	ylog.BaseEventHandler
	mu        sync.Mutex
	states    []ylog.StateChangeEvent
	persisted int
}

func (e *eventTracker) OnStateChange(event ylog.StateChangeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states = append(e.states, event)
}

func (e *eventTracker) OnPersisted(event ylog.PersistedEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.persisted += event.Records
}

func testConfig(t *testing.T) ylog.Config {
	t.Helper()
	return ylog.Config{
		ListenAddr:      "127.0.0.1:0",
		LogsheetPath:    filepath.Join(t.TempDir(), "logs", "logsheet.txt"),
		ShutdownTimeout: 5 * time.Second,
	}
}

func fields(callsign string) ylog.ContactFields {
	return ylog.ContactFields{
		Timestamp:        time.Date(2023, 10, 8, 14, 5, 0, 0, time.UTC),
		Band:             "50",
		Mode:             "SSB",
		Callsign:         callsign,
		SentReport:       "59",
		SentExchange:     "13M",
		ReceivedReport:   "59",
		ReceivedExchange: "20M",
		Multiplier:       "20",
		Score:            2,
	}
}

func TestNew_RequiresLogsheet(t *testing.T) {
	_, err := ylog.New(ylog.Config{})
	if !errors.Is(err, ylog.ErrInvalidConfig) {
		t.Errorf("New() error = %v, want ErrInvalidConfig", err)
	}
}

func TestServer_SubmitPersistsAndSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)
	events := &eventTracker{}
	srv, err := ylog.New(cfg, ylog.WithEventHandler(events))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if srv.Status() != ylog.StateRunning {
		t.Fatalf("Status() = %v, want Running", srv.Status())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := relay.Dial(ctx, "ws://"+srv.Addr()+"/message", relay.DialOptions{})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	ack, err := client.Submit(ctx, fields("JA1YXP"), 0, "r1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if ack.Sequence != 1 {
		t.Errorf("ack sequence = %d, want 1", ack.Sequence)
	}
	_ = client.Close()

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if srv.Status() != ylog.StateStopped {
		t.Errorf("Status() = %v, want Stopped", srv.Status())
	}

	f, err := os.Open(cfg.LogsheetPath)
	if err != nil {
		t.Fatalf("open logsheet: %v", err)
	}
	contacts, err := ylog.DecodeLogsheet(f)
	f.Close()
	if err != nil {
		t.Fatalf("DecodeLogsheet() error = %v", err)
	}
	if len(contacts) != 1 || contacts[0].Callsign() != "JA1YXP" {
		t.Errorf("contacts = %v, want JA1YXP", contacts)
	}

	events.mu.Lock()
	if events.persisted != 1 {
		t.Errorf("persisted events = %d records, want 1", events.persisted)
	}
	events.mu.Unlock()

	// A second run continues the sequence.
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	defer srv.Stop()

	client, err = relay.Dial(ctx, "ws://"+srv.Addr()+"/message", relay.DialOptions{})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()
	ack, err = client.Submit(ctx, fields("JA1ZLO"), 0, "r2")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if ack.Sequence != 2 {
		t.Errorf("ack sequence after restart = %d, want 2", ack.Sequence)
	}
}

func TestServer_StartTwice(t *testing.T) {
	srv, err := ylog.New(testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Stop()

	if err := srv.Start(context.Background()); !errors.Is(err, ylog.ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestServer_StopWhenStopped(t *testing.T) {
	srv, err := ylog.New(testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Stop(); !errors.Is(err, ylog.ErrNotRunning) {
		t.Errorf("Stop() error = %v, want ErrNotRunning", err)
	}
}

func TestPlugin_InitializationOrder(t *testing.T) {
	var initOrder, shutdownOrder []string
	var mu sync.Mutex
	a := &trackingPlugin{name: "a", initOrder: &initOrder, shutdownOrder: &shutdownOrder, mu: &mu}
	b := &trackingPlugin{name: "b", initOrder: &initOrder, shutdownOrder: &shutdownOrder, mu: &mu}

	cfg := testConfig(t)
	srv, err := ylog.New(cfg, ylog.WithPlugin(a), ylog.WithPlugin(b))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(initOrder, ",") != "a,b" {
		t.Errorf("init order = %v, want [a b]", initOrder)
	}
	if strings.Join(shutdownOrder, ",") != "b,a" {
		t.Errorf("shutdown order = %v, want [b a]", shutdownOrder)
	}
	if a.cfg.LogsheetPath != cfg.LogsheetPath || a.cfg.ReopenLogsheet == nil {
		t.Errorf("plugin config = %+v, want logsheet path and reopen hook", a.cfg)
	}
}

func TestPlugin_InitializationFailure_PreventsStart(t *testing.T) {
	var initOrder, shutdownOrder []string
	var mu sync.Mutex
	bad := &trackingPlugin{name: "bad", initOrder: &initOrder, shutdownOrder: &shutdownOrder, mu: &mu, initErr: errors.New("boom")}

	srv, err := ylog.New(testConfig(t), ylog.WithPlugin(bad))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Fatal("Start() succeeded, want plugin error")
	}
	if srv.Status() != ylog.StateCrashed {
		t.Errorf("Status() = %v, want Crashed", srv.Status())
	}
	if srv.Addr() != "" {
		t.Errorf("Addr() = %q, want empty", srv.Addr())
	}
}

// failingSink rejects every append.
type failingSink struct{}

func (failingSink) Append(ctx context.Context, p []byte) error {
	return errors.New("read-only filesystem")
}

func TestServer_SinkFailureReportedToSubmitter(t *testing.T) {
	srv, err := ylog.New(testConfig(t), ylog.WithSink(failingSink{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := relay.Dial(ctx, "ws://"+srv.Addr()+"/message", relay.DialOptions{})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	_, err = client.Submit(ctx, fields("JA1YXP"), 0, "r1")
	var se *relay.SubmitError
	if !errors.As(err, &se) || se.Reason != relay.ReasonSinkUnavailable || se.Sequence != 1 {
		t.Errorf("Submit() error = %v, want sink unavailable for sequence 1", err)
	}
	if srv.Status() != ylog.StateRunning {
		t.Errorf("Status() = %v, want Running after sink failure", srv.Status())
	}
}

func TestServer_StopWithStationsConnected(t *testing.T) {
	events := &eventTracker{}
	srv, err := ylog.New(testConfig(t), ylog.WithEventHandler(events))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws://" + srv.Addr() + "/message"
	a, err := relay.Dial(ctx, url, relay.DialOptions{})
	if err != nil {
		t.Fatalf("Dial(a) error = %v", err)
	}
	defer a.Close()
	b, err := relay.Dial(ctx, url, relay.DialOptions{})
	if err != nil {
		t.Fatalf("Dial(b) error = %v", err)
	}
	defer b.Close()

	if _, err := a.Submit(ctx, fields("JA1YXP"), 0, "a-1"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if m, err := b.Receive(ctx); err != nil || m.Kind != relay.KindAck {
		t.Fatalf("b Receive() = %+v, %v; want ack", m, err)
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop() with stations connected error = %v", err)
	}
	if srv.Status() != ylog.StateStopped {
		t.Errorf("Status() = %v, want Stopped", srv.Status())
	}
	if srv.Addr() != "" {
		t.Errorf("Addr() after Stop = %q, want empty", srv.Addr())
	}
	for name, c := range map[string]*relay.Client{"a": a, "b": b} {
		if _, err := c.Receive(ctx); err == nil {
			t.Errorf("station %s still connected after Stop", name)
		}
	}

	events.mu.Lock()
	defer events.mu.Unlock()
	var got []string
	for _, e := range events.states {
		got = append(got, e.Current.String())
	}
	if want := "Starting,Running,Stopping,Draining,Stopped"; strings.Join(got, ",") != want {
		t.Errorf("state changes = %v, want %s", got, want)
	}
	if last := events.states[len(events.states)-1]; last.LastSequence != 1 {
		t.Errorf("Stopped event last sequence = %d, want 1", last.LastSequence)
	}
}

func TestServer_CrashesWhenListenAddressTaken(t *testing.T) {
	blocker, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	var initOrder, shutdownOrder []string
	var mu sync.Mutex
	p := &trackingPlugin{name: "p", initOrder: &initOrder, shutdownOrder: &shutdownOrder, mu: &mu}

	cfg := testConfig(t)
	cfg.ListenAddr = blocker.Addr().String()
	srv, err := ylog.New(cfg, ylog.WithPlugin(p))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := srv.Start(context.Background()); err == nil {
		t.Fatal("Start() on a taken address succeeded")
	}
	if srv.Status() != ylog.StateCrashed {
		t.Errorf("Status() = %v, want Crashed", srv.Status())
	}
	if err := srv.Stop(); !errors.Is(err, ylog.ErrNotRunning) {
		t.Errorf("Stop() after failed start error = %v, want ErrNotRunning", err)
	}
	mu.Lock()
	if strings.Join(shutdownOrder, ",") != "p" {
		t.Errorf("plugins shut down = %v, want [p]", shutdownOrder)
	}
	mu.Unlock()

	// Once the address is free the same server starts again.
	_ = blocker.Close()
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() after address freed error = %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
