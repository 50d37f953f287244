package escalation

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/liushuo92/support-bot/internal/common"
)

type Status string

// Tickets are created pending and handed off to the human queue; no other
// transition happens inside this process.
const StatusPending Status = "pending"

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityNormal Priority = "normal"
)

var urgentKeywords = []string{"urgent", "emergency", "critical", "immediately", "asap"}

// ConversationMessage is the role/content pair snapshotted into a ticket.
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Ticket struct {
	TicketID    string    `json:"ticket_id"`
	SessionID   string    `json:"session_id"`
	Reason      string    `json:"reason"`
	Summary     string    `json:"summary"`
	EscalatedAt time.Time `json:"escalated_at"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
}

// Coordinator owns the process-lifetime escalation queue. A single mutex
// covers both the queue and the per-session index; the first ticket created
// for a session stays the externally visible one.
type Coordinator struct {
	mu        sync.Mutex
	queue     []*Ticket
	bySession map[string]*Ticket
}

func NewCoordinator() *Coordinator {
	return &Coordinator{bySession: make(map[string]*Ticket)}
}

// Escalate creates and enqueues a ticket. It always succeeds.
func (c *Coordinator) Escalate(sessionID, reason, summary string, msgs []ConversationMessage) *Ticket {
	now := time.Now().UTC()
	t := &Ticket{
		TicketID:    newTicketID(now),
		SessionID:   sessionID,
		Reason:      reason,
		Summary:     summary,
		EscalatedAt: now,
		Status:      StatusPending,
		Priority:    calculatePriority(reason, msgs),
	}

	c.mu.Lock()
	c.queue = append(c.queue, t)
	if _, ok := c.bySession[sessionID]; !ok {
		c.bySession[sessionID] = t
	}
	c.mu.Unlock()

	return t
}

// Status returns the earliest ticket for a session, or nil when the session
// was never escalated.
func (c *Coordinator) Status(sessionID string) *Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bySession[sessionID]
}

// Pending returns a snapshot of the queue in insertion order.
func (c *Coordinator) Pending() []*Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Ticket(nil), c.queue...)
}

// newTicketID keeps the human-readable escalation timestamp and appends a
// ULID tail so concurrent escalations in the same second cannot collide.
func newTicketID(now time.Time) string {
	suffix, err := common.NewULID()
	if err != nil || len(suffix) < 6 {
		suffix = fmt.Sprintf("%06d", now.Nanosecond()/1000%1000000)
	}
	return fmt.Sprintf("ESC-%s-%s", now.Format("20060102-150405"), suffix[len(suffix)-6:])
}

func calculatePriority(reason string, msgs []ConversationMessage) Priority {
	text := strings.ToLower(reason)
	start := 0
	if len(msgs) > 3 {
		start = len(msgs) - 3
	}
	for _, m := range msgs[start:] {
		text += " " + strings.ToLower(m.Content)
	}

	for _, kw := range urgentKeywords {
		if strings.Contains(text, kw) {
			return PriorityHigh
		}
	}
	if len(msgs) > 8 {
		return PriorityMedium
	}
	return PriorityNormal
}
