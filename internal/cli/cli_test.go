package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/johnquangdev/meetscribe/internal/capture"
	"github.com/johnquangdev/meetscribe/pkg/config"
)

type fakeClient struct {
	reply     capture.Reply
	endpoints []string
	stops     int
	status    capture.Status
}

func (f *fakeClient) Start(ctx context.Context, endpoint string) (capture.Reply, error) {
	f.endpoints = append(f.endpoints, endpoint)
	return f.reply, nil
}

func (f *fakeClient) Stop(ctx context.Context) (capture.Reply, error) {
	f.stops++
	return f.reply, nil
}

func (f *fakeClient) Status(ctx context.Context) (capture.Status, error) {
	return f.status, nil
}

func newDeps(t *testing.T, client *fakeClient) (*Dependencies, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	return &Dependencies{
		Client:     client,
		Config:     config.DefaultCtl(),
		ConfigPath: filepath.Join(t.TempDir(), "capturectl.yaml"),
		Out:        out,
	}, out
}

func run(deps *Dependencies, args ...string) error {
	cmd := NewRootCmd(deps)
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.ExecuteContext(context.Background())
}

func TestStart_PersistsEndpoint(t *testing.T) {
	client := &fakeClient{reply: capture.Reply{OK: true}}
	deps, out := newDeps(t, client)

	if err := run(deps, "start", "--endpoint", "ws://localhost:8080/ws/ingest"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if strings.TrimSpace(out.String()) != `{"ok":true}` {
		t.Fatalf("output = %q", out.String())
	}

	saved, err := config.LoadCtl(deps.ConfigPath)
	if err != nil {
		t.Fatalf("load saved config: %v", err)
	}
	if saved.Endpoint != "ws://localhost:8080/ws/ingest" {
		t.Fatalf("saved endpoint = %q", saved.Endpoint)
	}

	// A later start without the flag reuses the persisted endpoint
	deps2, _ := newDeps(t, client)
	deps2.Config = saved
	deps2.ConfigPath = deps.ConfigPath
	if err := run(deps2, "start"); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if len(client.endpoints) != 2 || client.endpoints[1] != "ws://localhost:8080/ws/ingest" {
		t.Fatalf("endpoints = %v", client.endpoints)
	}
}

func TestStart_RequiresEndpoint(t *testing.T) {
	client := &fakeClient{reply: capture.Reply{OK: true}}
	deps, _ := newDeps(t, client)

	if err := run(deps, "start"); err == nil {
		t.Fatal("expected an error without an endpoint")
	}
	if len(client.endpoints) != 0 {
		t.Fatal("agent contacted without an endpoint")
	}
}

func TestStart_FailedReplyIsAnError(t *testing.T) {
	client := &fakeClient{reply: capture.Reply{OK: false, Error: "InvalidSource: no focused tab"}}
	deps, out := newDeps(t, client)

	err := run(deps, "start", "-e", "ws://localhost:8080/ws/ingest")
	if err == nil || err.Error() != "InvalidSource: no focused tab" {
		t.Fatalf("error = %v", err)
	}
	if !strings.Contains(out.String(), `"ok":false`) || !strings.Contains(out.String(), "InvalidSource") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestStop(t *testing.T) {
	client := &fakeClient{reply: capture.Reply{OK: true}}
	deps, out := newDeps(t, client)

	if err := run(deps, "stop"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if client.stops != 1 {
		t.Fatalf("stops = %d", client.stops)
	}
	if strings.TrimSpace(out.String()) != `{"ok":true}` {
		t.Fatalf("output = %q", out.String())
	}
}

func TestStatus(t *testing.T) {
	client := &fakeClient{status: capture.Status{Coordinator: capture.CoordinatorActive, Worker: capture.WorkerCapturing}}
	deps, out := newDeps(t, client)

	if err := run(deps, "status"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out.String(), `"coordinator":"active"`) || !strings.Contains(out.String(), `"worker":"capturing"`) {
		t.Fatalf("output = %q", out.String())
	}
}
