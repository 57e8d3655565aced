package history

import (
	"testing"
)

func TestRecordAndList(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	err = store.Record(&Entry{
		Kind: "notion", Operation: "search", Query: "alpha",
		ResultCount: 3, DurationMs: 42, Success: true,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	err = store.Record(&Entry{
		Kind: "github", Operation: "tool_call", ToolName: "search_code",
		Success: false, ErrorMessage: "timed out",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	all, err := store.List(Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}

	notionOnly, err := store.List(Filter{Kind: "notion"})
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(notionOnly) != 1 || notionOnly[0].Query != "alpha" {
		t.Fatalf("expected filtered notion entry, got %+v", notionOnly)
	}
}

func TestRecordAssignsID(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	e := &Entry{Kind: "obsidian", Operation: "search", Success: true}
	if err := store.Record(e); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if e.ID == "" {
		t.Fatal("expected an id to be assigned")
	}
}
