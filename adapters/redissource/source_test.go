package redissource_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/artpar/conftree/adapters/redissource"
	"github.com/artpar/conftree/core/tree"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestLoad_FoldsDottedFields(t *testing.T) {
	mr, client := newClient(t)
	mr.HSet("conftree:production",
		"database.host", "db.internal",
		"database.port", "5432",
		"app_name", "svc",
	)

	src := redissource.New(client, "conftree:production")
	m, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if name, _ := m.Get("app_name"); name != "svc" {
		t.Errorf("app_name = %v", name)
	}
	db, ok := m.Get("database")
	if !ok {
		t.Fatal("database namespace missing")
	}
	host, _ := db.(*tree.Map).Get("host")
	if host != "db.internal" {
		t.Errorf("database.host = %v", host)
	}
}

func TestLoad_EmptyHash(t *testing.T) {
	_, client := newClient(t)

	m, err := redissource.New(client, "conftree:absent").Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestName(t *testing.T) {
	_, client := newClient(t)
	src := redissource.New(client, "conftree:staging")
	if src.Name() != "redis:conftree:staging" {
		t.Errorf("Name() = %q", src.Name())
	}
}

func TestWatch_SignalsOnChange(t *testing.T) {
	mr, client := newClient(t)
	mr.HSet("cfg", "a", "1")

	src := redissource.New(client, "cfg", redissource.WithPollInterval(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := src.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	// Let the watcher take its baseline snapshot before mutating.
	time.Sleep(60 * time.Millisecond)
	mr.HSet("cfg", "a", "2")

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no change signal after hash update")
	}
}
