package faq

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Every keyword hit scores the same fixed confidence; the chat pipeline
// only uses FAQ answers above its own cutoff.
const matchConfidence = 85

type Entry struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Keywords []string `json:"keywords"`
}

type Match struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Confidence int    `json:"confidence"`
	Matched    bool   `json:"matched"`
}

// Table is an immutable FAQ table, loaded once at startup.
type Table struct {
	entries []Entry
}

func NewTable(entries []Entry) *Table {
	return &Table{entries: append([]Entry(nil), entries...)}
}

// Load reads the FAQ table from a JSON file. A missing or malformed file
// degrades to an empty table so the chat pipeline keeps working without
// FAQ answers.
func Load(path string) *Table {
	b, err := os.ReadFile(path)
	if err != nil {
		logrus.WithError(err).WithField("path", path).Warn("faq table unavailable, keyword matching disabled")
		return &Table{}
	}
	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		logrus.WithError(err).WithField("path", path).Warn("faq table unreadable, keyword matching disabled")
		return &Table{}
	}
	return &Table{entries: entries}
}

func (t *Table) Len() int { return len(t.entries) }

// Match returns the first entry whose any keyword appears case-insensitively
// in the query, or nil when nothing matches.
func (t *Table) Match(query string) *Match {
	q := strings.ToLower(query)
	for _, e := range t.entries {
		for _, kw := range e.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(q, strings.ToLower(kw)) {
				return &Match{
					Question:   e.Question,
					Answer:     e.Answer,
					Confidence: matchConfidence,
					Matched:    true,
				}
			}
		}
	}
	return nil
}

// Context renders the whole table as numbered Q/A blocks for LLM grounding.
func (t *Table) Context() string {
	var b strings.Builder
	b.WriteString("Available FAQs:\n\n")
	for i, e := range t.entries {
		fmt.Fprintf(&b, "%d. Q: %s\n   A: %s\n\n", i+1, e.Question, e.Answer)
	}
	return b.String()
}
