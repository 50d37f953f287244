package faq

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testTable() *Table {
	return NewTable([]Entry{
		{
			Question: "What are your business hours?",
			Answer:   "We are open 9-6 weekdays.",
			Keywords: []string{"hours", "open"},
		},
		{
			Question: "What is your refund policy?",
			Answer:   "Refunds within 14 days.",
			Keywords: []string{"refund"},
		},
	})
}

func TestMatch_KeywordHit(t *testing.T) {
	m := testTable().Match("What are your hours?")
	if m == nil {
		t.Fatalf("expected a match")
	}
	if !m.Matched {
		t.Fatalf("expected matched=true")
	}
	if m.Confidence != 85 {
		t.Fatalf("expected confidence 85, got %d", m.Confidence)
	}
	if m.Answer != "We are open 9-6 weekdays." {
		t.Fatalf("unexpected answer: %q", m.Answer)
	}
}

func TestMatch_CaseInsensitive(t *testing.T) {
	m := testTable().Match("I WANT A REFUND RIGHT NOW")
	if m == nil {
		t.Fatalf("expected a match")
	}
	if m.Question != "What is your refund policy?" {
		t.Fatalf("unexpected entry: %q", m.Question)
	}
}

func TestMatch_FirstEntryWins(t *testing.T) {
	// "open" belongs to the first entry; a query hitting both entries'
	// keywords must return the first in table order
	m := testTable().Match("are you open for refund requests")
	if m == nil {
		t.Fatalf("expected a match")
	}
	if m.Question != "What are your business hours?" {
		t.Fatalf("expected first entry, got %q", m.Question)
	}
}

func TestMatch_NoHit(t *testing.T) {
	if m := testTable().Match("tell me about the weather"); m != nil {
		t.Fatalf("expected no match, got %+v", m)
	}
}

func TestContext_NumberedBlocks(t *testing.T) {
	ctx := testTable().Context()
	if !strings.Contains(ctx, "1. Q: What are your business hours?") {
		t.Fatalf("missing first block:\n%s", ctx)
	}
	if !strings.Contains(ctx, "2. Q: What is your refund policy?") {
		t.Fatalf("missing second block:\n%s", ctx)
	}
	if !strings.Contains(ctx, "   A: Refunds within 14 days.") {
		t.Fatalf("missing answer line:\n%s", ctx)
	}
}

func TestLoad_MissingFileDegradesToEmpty(t *testing.T) {
	tbl := Load(filepath.Join(t.TempDir(), "nope.json"))
	if tbl.Len() != 0 {
		t.Fatalf("expected empty table, got %d entries", tbl.Len())
	}
	if m := tbl.Match("hours"); m != nil {
		t.Fatalf("empty table must never match")
	}
}

func TestLoad_MalformedFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faqs.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if tbl := Load(path); tbl.Len() != 0 {
		t.Fatalf("expected empty table, got %d entries", tbl.Len())
	}
}

func TestLoad_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faqs.json")
	body := `[{"question":"Q1","answer":"A1","keywords":["shipping"]}]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tbl := Load(path)
	if tbl.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", tbl.Len())
	}
	if m := tbl.Match("where is my shipping confirmation"); m == nil {
		t.Fatalf("expected a match from loaded table")
	}
}
