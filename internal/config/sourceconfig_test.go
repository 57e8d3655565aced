package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/HyphaGroup/sourcehub/internal/sources"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadSourceConfigsStripsCommentsAndParses(t *testing.T) {
	path := writeTempConfig(t, `{
		// notion talks over stdio
		"sources": [
			{"kind": "notion", "enabled": true, "command": "notion-mcp", "args": ["--stdio"]},
			/* github is disabled for now */
			{"kind": "github", "enabled": false, "command": "github-mcp"}
		]
	}`)

	cfgs, err := LoadSourceConfigs(path)
	if err != nil {
		t.Fatalf("LoadSourceConfigs failed: %v", err)
	}
	if len(cfgs) != 2 {
		t.Fatalf("expected 2 configs, got %d", len(cfgs))
	}
	notion := cfgs[sources.KindNotion]
	if !notion.Enabled || notion.Command != "notion-mcp" {
		t.Fatalf("unexpected notion config: %+v", notion)
	}
}

func TestLoadSourceConfigsRejectsUnknownKind(t *testing.T) {
	path := writeTempConfig(t, `{"sources": [{"kind": "carrier-pigeon", "enabled": true, "command": "x"}]}`)
	if _, err := LoadSourceConfigs(path); err == nil {
		t.Fatal("expected an error for an unknown source kind")
	}
}

func TestValidateRejectsContainerizedWithoutImage(t *testing.T) {
	cfg := sources.SourceConfig{Kind: sources.KindNeo4j, Enabled: true, Containerized: true}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected an error for containerized config with no image")
	}
}

func TestValidateAllowsEnabledWithNoCommand(t *testing.T) {
	cfg := sources.SourceConfig{Kind: sources.KindNeo4j, Enabled: true}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate should defer 'enabled with no command' to startServer, got: %v", err)
	}
}

func TestFindConfigPathPrefersExplicitDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(`{"sources":[]}`), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	found, err := FindConfigPath(dir)
	if err != nil {
		t.Fatalf("FindConfigPath failed: %v", err)
	}
	if filepath.Base(found) != FileName {
		t.Fatalf("unexpected path: %s", found)
	}
}
