package cache

import (
	"context"
	"testing"
	"time"

	"github.com/johnquangdev/meetscribe/pkg/ingestproto"
)

func TestMemoryStatsStore(t *testing.T) {
	store := NewMemoryStatsStore(time.Hour)
	defer store.Close()
	ctx := context.Background()

	now := time.Now().UTC()
	init := ingestproto.NewInit(ingestproto.DefaultFormat, ingestproto.DefaultTimesliceMs)
	second := ingestproto.Stats{ID: "b", StartedAt: now, Remote: "10.0.0.2:1"}
	first := ingestproto.Stats{ID: "a", StartedAt: now.Add(-time.Minute), Init: &init, TotalBytes: 10, FramesReceived: 1}

	for _, s := range []ingestproto.Stats{second, first} {
		if err := store.Put(ctx, s); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	got, ok, err := store.Get(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("get = %v, %v", ok, err)
	}
	if got.Init == nil || got.Init.TimesliceMs != 500 || got.TotalBytes != 10 {
		t.Errorf("round trip lost fields: %+v", got)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Errorf("list order = %+v", list)
	}

	if _, ok, _ := store.Get(ctx, "missing"); ok {
		t.Error("missing key reported present")
	}
}

func TestMemoryStore_Expiration(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	store.Set("short", "v", time.Millisecond)
	store.Set("forever", "v", 0)
	time.Sleep(5 * time.Millisecond)

	if _, ok := store.Get("short"); ok {
		t.Error("expired key still readable")
	}
	if _, ok := store.Get("forever"); !ok {
		t.Error("key without expiration missing")
	}
	if keys := store.Keys(); len(keys) != 1 || keys[0] != "forever" {
		t.Errorf("keys = %v", keys)
	}
}
