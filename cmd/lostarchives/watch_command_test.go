package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tiagogladstone/the-lost-archives/internal/api"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
)

func sampleSnapshot() watchSnapshot {
	return watchSnapshot{
		At:          time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		StoryCounts: map[queue.StoryStatus]int{queue.StoryProducing: 2, queue.StoryFailed: 1},
		JobStats: map[queue.JobType]map[queue.JobStatus]int{
			queue.JobGenerateImage: {queue.JobProcessing: 3, queue.JobQueued: 5},
		},
		Recent: []api.Story{{ID: 7, Topic: "Sunken city of Pavlopetri", Status: "producing"}},
	}
}

func TestWatchModelLoadsSnapshot(t *testing.T) {
	calls := 0
	load := func(context.Context) (watchSnapshot, error) {
		calls++
		return sampleSnapshot(), nil
	}
	m := newWatchModel(context.Background(), time.Second, load)

	if view := m.View(); !strings.Contains(view, "loading") {
		t.Fatalf("expected loading view, got %q", view)
	}

	msg := m.fetch()()
	updated, cmd := m.Update(msg)
	if cmd == nil {
		t.Fatalf("expected refresh tick after snapshot")
	}
	view := updated.View()
	for _, want := range []string{"Producing", "Sunken city of Pavlopetri", "generate_image", "q quit"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one load, got %d", calls)
	}
}

func TestWatchModelKeepsLastSnapshotOnError(t *testing.T) {
	m := newWatchModel(context.Background(), time.Second, nil)
	updated, _ := m.Update(snapshotMsg{snapshot: sampleSnapshot()})
	updated, _ = updated.Update(snapshotMsg{err: errors.New("database is locked")})

	view := updated.View()
	if !strings.Contains(view, "refresh failed: database is locked") {
		t.Fatalf("expected refresh error, got:\n%s", view)
	}
	if !strings.Contains(view, "Pavlopetri") {
		t.Fatalf("expected previous snapshot to stay visible:\n%s", view)
	}
}

func TestWatchModelQuitKeys(t *testing.T) {
	m := newWatchModel(context.Background(), time.Second, nil)
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyEsc},
		{Type: tea.KeyCtrlC},
	} {
		_, cmd := m.Update(key)
		if cmd == nil {
			t.Fatalf("key %q: expected quit command", key.String())
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatalf("key %q: expected QuitMsg", key.String())
		}
	}
}

func TestWatchOnceRendersSnapshot(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"story", "create", "Oak Island"}, env.configPath); err != nil {
		t.Fatalf("story create: %v", err)
	}

	out, _, err := runCLI(t, []string{"watch", "--once"}, env.configPath)
	if err != nil {
		t.Fatalf("watch --once: %v", err)
	}
	requireContains(t, out, "Oak Island")
	requireContains(t, out, "Recent stories")

	_, _, err = runCLI(t, []string{"watch", "--once", "--interval", "10ms"}, env.configPath)
	if err == nil {
		t.Fatalf("expected interval validation error")
	}
}
