package transport

import (
	"bufio"
	"strings"
	"testing"
)

func TestMergeEnvOverlayWins(t *testing.T) {
	base := []string{"PATH=/usr/bin", "FOO=base"}
	overlay := map[string]string{"FOO": "overlay", "BAR": "new"}

	merged := mergeEnv(base, overlay)

	got := make(map[string]string, len(merged))
	for _, kv := range merged {
		parts := strings.SplitN(kv, "=", 2)
		got[parts[0]] = parts[1]
	}

	if got["FOO"] != "overlay" {
		t.Fatalf("expected overlay to win for FOO, got %q", got["FOO"])
	}
	if got["BAR"] != "new" {
		t.Fatalf("expected BAR from overlay, got %q", got["BAR"])
	}
	if got["PATH"] != "/usr/bin" {
		t.Fatalf("expected inherited PATH preserved, got %q", got["PATH"])
	}
}

func TestSpawnLocalEcho(t *testing.T) {
	tr, err := (LocalSpawner{}).Spawn("cat", nil, nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer tr.Shutdown()

	line := `{"jsonrpc":"2.0","id":1,"result":{}}` + "\n"
	if _, err := tr.Stdin().Write([]byte(line)); err != nil {
		t.Fatalf("write stdin: %v", err)
	}

	reader := bufio.NewReader(tr.Stdout())
	got, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	if got != line {
		t.Fatalf("expected echoed line %q, got %q", line, got)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	tr, err := (LocalSpawner{}).Spawn("cat", nil, nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := tr.Shutdown(); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := tr.Shutdown(); err != nil {
		t.Fatalf("second Shutdown should be a no-op, got: %v", err)
	}
}
