package sources

import (
	"testing"
	"time"

	"github.com/HyphaGroup/sourcehub/internal/transport"
)

func TestHousekeeperSnapshotNeverTransitionsState(t *testing.T) {
	m := NewManager(nil)
	m.UpdateConfig(SourceConfig{Kind: KindNotion, Enabled: true, Command: ""})
	_ = m.StartServer(KindNotion) // lands in Error("Not configured")

	h := NewHousekeeper(m)
	h.snapshot()

	status := m.Statuses()[KindNotion]
	if status.State() != StateError {
		t.Fatalf("housekeeping must never transition state; got %v", status)
	}
	if _, ok := m.clients[KindNotion]; ok {
		t.Fatal("housekeeping must never spawn or reconnect a client")
	}
}

func TestConnectingDurationAbsentWhenNotConnecting(t *testing.T) {
	m := NewManager(nil)
	if _, ok := m.connectingDuration(KindGitHub); ok {
		t.Fatal("expected no connecting duration for a kind that was never started")
	}
}

func TestConnectingDurationTracksEntryIntoConnecting(t *testing.T) {
	m := NewManager(nil)
	m.setStatus(KindNotion, Connecting())

	d, ok := m.connectingDuration(KindNotion)
	if !ok {
		t.Fatal("expected a connecting duration once a kind is in Connecting")
	}
	if d < 0 || d > time.Second {
		t.Fatalf("expected a fresh duration close to zero, got %v", d)
	}

	m.setStatus(KindNotion, Connected(0))
	if _, ok := m.connectingDuration(KindNotion); ok {
		t.Fatal("expected no connecting duration once the kind has left Connecting")
	}
}

func TestHousekeeperWarnsOnStuckConnecting(t *testing.T) {
	m := NewManager(nil)
	m.setStatus(KindNotion, Connecting())
	m.mu.Lock()
	m.connectingSince[KindNotion] = time.Now().Add(-time.Minute)
	m.mu.Unlock()

	h := NewHousekeeper(m)
	h.snapshot() // must not panic or transition state despite the long Connecting duration

	status := m.Statuses()[KindNotion]
	if status.State() != StateConnecting {
		t.Fatalf("housekeeping must never transition a stuck-connecting kind; got %v", status)
	}
}

func TestToolCacheAgeAbsentForNeverStartedKind(t *testing.T) {
	m := NewManager(nil)
	if _, ok := m.toolCacheAge(KindGitHub); ok {
		t.Fatal("expected no tool cache age for a kind that was never started")
	}
}

func TestToolCacheAgeReflectsRecentFetch(t *testing.T) {
	m := NewManager(nil)
	tr, childReads, childWrites := newFakeTransport()
	scriptedChild(t, childReads, childWrites, `{"results":[]}`)
	m.spawnerFactory = func(cfg SourceConfig) (transport.Spawner, error) { return stubSpawner{tr: tr}, nil }
	m.UpdateConfig(SourceConfig{Kind: KindNotion, Enabled: true, Command: "notion-mcp", Args: []string{"--stdio"}})
	if err := m.StartServer(KindNotion); err != nil {
		t.Fatalf("StartServer failed: %v", err)
	}

	age, ok := m.toolCacheAge(KindNotion)
	if !ok {
		t.Fatal("expected a tool cache age after a successful start")
	}
	if age < 0 || age > time.Second {
		t.Fatalf("expected a fresh age close to zero, got %v", age)
	}
}
