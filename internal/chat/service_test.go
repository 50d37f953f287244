package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/liushuo92/support-bot/internal/ai"
	"github.com/liushuo92/support-bot/internal/escalation"
	"github.com/liushuo92/support-bot/internal/faq"
)

// supportProvider answers each gateway operation by inspecting the prompt:
// classification and summary prompts get scripted results, everything else
// gets the canned reply.
type supportProvider struct {
	reply          string
	classification string
	summary        string
	calls          [][]ai.Message
}

func (p *supportProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	_ = ctx
	p.calls = append(p.calls, append([]ai.Message(nil), messages...))

	last := messages[len(messages)-1].Content
	switch {
	case strings.Contains(last, "requires human escalation"):
		if p.classification == "" {
			return `{"needs_escalation": false, "reason": "routine"}`, nil
		}
		return p.classification, nil
	case strings.Contains(last, "Summarize this customer support conversation"):
		if p.summary == "" {
			return "conversation summary", nil
		}
		return p.summary, nil
	default:
		if p.reply == "" {
			return "llm reply", nil
		}
		return p.reply, nil
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Session{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, prov ai.Provider, faqs *faq.Table, threshold int) (*Service, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	if faqs == nil {
		faqs = faq.NewTable(nil)
	}
	gateway := ai.NewGateway(prov, 14, threshold)
	svc := NewService(NewRepo(db), gateway, faqs, escalation.NewCoordinator(), nil)
	return svc, db
}

func hoursFAQ() *faq.Table {
	return faq.NewTable([]faq.Entry{{
		Question: "What are your business hours?",
		Answer:   "We are open 9-6 weekdays.",
		Keywords: []string{"hours"},
	}})
}

func TestSendMessage_FAQHit(t *testing.T) {
	prov := &supportProvider{}
	svc, db := newTestService(t, prov, hoursFAQ(), 3)

	sess, err := svc.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	res, err := svc.SendMessage(context.Background(), sess.SessionID, "What are your hours?")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if res.Response != "We are open 9-6 weekdays." {
		t.Fatalf("expected verbatim faq answer, got %q", res.Response)
	}
	if !res.FAQMatched {
		t.Fatalf("expected faq_matched=true")
	}
	if res.Confidence == nil || *res.Confidence != 85 {
		t.Fatalf("expected confidence 85, got %v", res.Confidence)
	}
	if res.Escalated {
		t.Fatalf("faq answer must not escalate")
	}

	var msgs []Message
	if err := db.Where("session_id = ?", sess.SessionID).Order("id ASC").Find(&msgs).Error; err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[0].FAQMatched {
		t.Fatalf("unexpected user msg: %+v", msgs[0])
	}
	if msgs[1].Role != RoleAssistant || !msgs[1].FAQMatched || msgs[1].ConfidenceScore == nil || *msgs[1].ConfidenceScore != 85 {
		t.Fatalf("unexpected assistant msg: %+v", msgs[1])
	}
}

func TestSendMessage_LLMReplyWhenNoFAQ(t *testing.T) {
	prov := &supportProvider{reply: "here is some help"}
	svc, _ := newTestService(t, prov, hoursFAQ(), 3)

	sess, _ := svc.CreateSession(context.Background())
	res, err := svc.SendMessage(context.Background(), sess.SessionID, "my widget exploded")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if res.Response != "here is some help" {
		t.Fatalf("unexpected reply: %q", res.Response)
	}
	if res.FAQMatched || res.Confidence != nil {
		t.Fatalf("expected no faq flags, got %+v", res)
	}
}

func TestSendMessage_HistoryRolesPreserved(t *testing.T) {
	prov := &supportProvider{}
	svc, _ := newTestService(t, prov, nil, 10)

	sess, _ := svc.CreateSession(context.Background())
	if _, err := svc.SendMessage(context.Background(), sess.SessionID, "first"); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), sess.SessionID, "second"); err != nil {
		t.Fatalf("second send: %v", err)
	}

	// calls: generate(1), classify(1), generate(2), classify(2)
	var secondGenerate []ai.Message
	for _, call := range prov.calls {
		if call[0].Role == "system" && call[len(call)-1].Content == "second" {
			secondGenerate = call
		}
	}
	if secondGenerate == nil {
		t.Fatalf("second generate call not found")
	}
	// system, prior user turn, prior assistant turn, current query
	if len(secondGenerate) != 4 {
		t.Fatalf("expected 4 provider messages, got %d", len(secondGenerate))
	}
	if secondGenerate[1].Role != RoleUser || secondGenerate[1].Content != "first" {
		t.Fatalf("prior user turn mangled: %+v", secondGenerate[1])
	}
	if secondGenerate[2].Role != RoleAssistant || secondGenerate[2].Content != "llm reply" {
		t.Fatalf("prior assistant turn mangled: %+v", secondGenerate[2])
	}
}

func TestSendMessage_EscalatesAtThreshold(t *testing.T) {
	prov := &supportProvider{}
	svc, db := newTestService(t, prov, nil, 3)

	sess, _ := svc.CreateSession(context.Background())

	var res *ChatResult
	var err error
	for i := 0; i < 3; i++ {
		res, err = svc.SendMessage(context.Background(), sess.SessionID, "nothing works, I am stuck")
		if err != nil {
			t.Fatalf("send %d: %v", i+1, err)
		}
	}

	if !res.Escalated {
		t.Fatalf("third attempt should escalate")
	}
	if res.Ticket == nil {
		t.Fatalf("expected a ticket")
	}
	if !strings.Contains(res.Response, "Your ticket ID is: "+res.Ticket.TicketID) {
		t.Fatalf("reply should carry the ticket id, got %q", res.Response)
	}
	if res.Ticket.Reason != "Query attempted 3 times without resolution" {
		t.Fatalf("unexpected ticket reason: %q", res.Ticket.Reason)
	}

	var stored Session
	if err := db.Where("session_id = ?", sess.SessionID).First(&stored).Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if !stored.Escalated {
		t.Fatalf("session escalated flag not set")
	}
	if stored.EscalationReason == nil || *stored.EscalationReason != res.Ticket.Reason {
		t.Fatalf("escalation reason not persisted: %v", stored.EscalationReason)
	}
	if svc.EscalationStatus(sess.SessionID) == nil {
		t.Fatalf("coordinator should know the ticket")
	}

	// the notice suffix must not leak into the stored assistant message
	var msgs []Message
	if err := db.Where("session_id = ?", sess.SessionID).Order("id ASC").Find(&msgs).Error; err != nil {
		t.Fatalf("query messages: %v", err)
	}
	lastStored := msgs[len(msgs)-1]
	if strings.Contains(lastStored.Content, "Your ticket ID") {
		t.Fatalf("ticket notice leaked into stored message: %q", lastStored.Content)
	}
}

func TestSendMessage_FrozenOnceEscalated(t *testing.T) {
	prov := &supportProvider{}
	svc, db := newTestService(t, prov, nil, 3)

	sess, _ := svc.CreateSession(context.Background())
	for i := 0; i < 3; i++ {
		if _, err := svc.SendMessage(context.Background(), sess.SessionID, "still broken"); err != nil {
			t.Fatalf("send %d: %v", i+1, err)
		}
	}

	var before int64
	db.Model(&Message{}).Where("session_id = ?", sess.SessionID).Count(&before)

	res, err := svc.SendMessage(context.Background(), sess.SessionID, "anyone there?")
	if err != nil {
		t.Fatalf("post-escalation send: %v", err)
	}
	if res.Response != "This conversation has been escalated to human support. A representative will contact you shortly." {
		t.Fatalf("expected frozen notice, got %q", res.Response)
	}
	if !res.Escalated {
		t.Fatalf("frozen branch must report escalated")
	}
	if res.Ticket == nil {
		t.Fatalf("frozen branch should return the existing ticket")
	}

	var after int64
	db.Model(&Message{}).Where("session_id = ?", sess.SessionID).Count(&after)
	if before != after {
		t.Fatalf("frozen session appended messages: before=%d after=%d", before, after)
	}
}

func TestSendMessage_ClassifierEscalation(t *testing.T) {
	prov := &supportProvider{
		classification: `{"needs_escalation": true, "reason": "Refund complaint"}`,
	}
	svc, _ := newTestService(t, prov, nil, 10)

	sess, _ := svc.CreateSession(context.Background())
	res, err := svc.SendMessage(context.Background(), sess.SessionID, "I demand a refund immediately")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !res.Escalated || res.Ticket == nil {
		t.Fatalf("classifier should have escalated: %+v", res)
	}
	if res.Ticket.Reason != "Refund complaint" {
		t.Fatalf("unexpected reason: %q", res.Ticket.Reason)
	}
	if res.Ticket.Summary != "conversation summary" {
		t.Fatalf("unexpected summary: %q", res.Ticket.Summary)
	}
	// "immediately" appears in the last user message
	if res.Ticket.Priority != escalation.PriorityHigh {
		t.Fatalf("expected high priority, got %q", res.Ticket.Priority)
	}
}

func TestSendMessage_ClosedSession(t *testing.T) {
	svc, _ := newTestService(t, &supportProvider{}, nil, 3)

	sess, _ := svc.CreateSession(context.Background())
	if err := svc.CloseSession(context.Background(), sess.SessionID); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err := svc.SendMessage(context.Background(), sess.SessionID, "hello?")
	if !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestSendMessage_UnknownSession(t *testing.T) {
	svc, _ := newTestService(t, &supportProvider{}, nil, 3)

	_, err := svc.SendMessage(context.Background(), "no-such-session", "hello")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}
}

func TestGetSession_CountsMessages(t *testing.T) {
	svc, _ := newTestService(t, &supportProvider{}, nil, 10)

	sess, _ := svc.CreateSession(context.Background())
	if _, err := svc.SendMessage(context.Background(), sess.SessionID, "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}

	got, count, err := svc.GetSession(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.SessionID != sess.SessionID || !got.IsActive {
		t.Fatalf("unexpected session: %+v", got)
	}
	if count != 2 {
		t.Fatalf("expected 2 messages, got %d", count)
	}
}
