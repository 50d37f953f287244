package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/liushuo92/support-bot/internal/ai"
	"github.com/liushuo92/support-bot/internal/escalation"
	"github.com/liushuo92/support-bot/internal/faq"
)

// ErrSessionClosed is returned when a message targets an inactive session.
var ErrSessionClosed = errors.New("session is closed")

const (
	// FAQ answers are only used verbatim above this cutoff.
	faqConfidenceCutoff = 80

	escalatedNotice  = "This conversation has been escalated to human support. A representative will contact you shortly."
	escalationSuffix = "\n\nI've escalated your query to our human support team who can better assist you. Your ticket ID is: "

	defaultEscalationReason = "User request"
)

// TicketPublisher hands freshly created tickets to the agent-facing queue.
// Publishing is best effort; the in-memory coordinator stays canonical.
type TicketPublisher interface {
	PublishTicket(ctx context.Context, t *escalation.Ticket) error
}

type Service struct {
	repo        *Repo
	gateway     *ai.Gateway
	faqs        *faq.Table
	escalations *escalation.Coordinator
	tickets     TicketPublisher
}

// NewService wires the chat pipeline. tickets may be nil when the escalation
// handoff queue is not configured.
func NewService(repo *Repo, gateway *ai.Gateway, faqs *faq.Table, escalations *escalation.Coordinator, tickets TicketPublisher) *Service {
	return &Service{
		repo:        repo,
		gateway:     gateway,
		faqs:        faqs,
		escalations: escalations,
		tickets:     tickets,
	}
}

func (s *Service) CreateSession(ctx context.Context) (*Session, error) {
	sess := &Session{
		SessionID: uuid.NewString(),
		IsActive:  true,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) GetSession(ctx context.Context, sessionID string) (*Session, int64, error) {
	sess, err := s.repo.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.repo.CountMessages(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}
	return sess, count, nil
}

func (s *Service) CloseSession(ctx context.Context, sessionID string) error {
	if _, err := s.repo.GetSessionBySessionID(ctx, sessionID); err != nil {
		return err
	}
	return s.repo.Deactivate(ctx, sessionID)
}

func (s *Service) History(ctx context.Context, sessionID string) ([]Message, error) {
	return s.repo.ListMessages(ctx, sessionID)
}

// EscalationStatus returns the earliest ticket for a session, nil if none.
func (s *Service) EscalationStatus(sessionID string) *escalation.Ticket {
	return s.escalations.Status(sessionID)
}

type ChatResult struct {
	SessionID  string
	Response   string
	FAQMatched bool
	Confidence *int
	Escalated  bool
	Ticket     *escalation.Ticket
}

// SendMessage runs the full pipeline for one inbound message: validate the
// session, append the user turn, answer from the FAQ table or the LLM,
// append the assistant turn, classify escalation need, and escalate when
// signalled. Escalated sessions are frozen: they get a fixed notice and no
// new messages are appended.
func (s *Service) SendMessage(ctx context.Context, sessionID string, content string) (*ChatResult, error) {
	sess, err := s.repo.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsActive {
		return nil, ErrSessionClosed
	}
	if sess.Escalated {
		return &ChatResult{
			SessionID: sessionID,
			Response:  escalatedNotice,
			Escalated: true,
			Ticket:    s.escalations.Status(sessionID),
		}, nil
	}

	userMsg := &Message{
		SessionID: sessionID,
		Role:      RoleUser,
		Content:   content,
	}
	if err := s.repo.InsertMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	all, err := s.repo.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// prior turns exclude the user message just appended
	prior := all
	if len(prior) > 0 {
		prior = prior[:len(prior)-1]
	}
	history := make([]ai.Message, 0, len(prior))
	for _, m := range prior {
		history = append(history, ai.Message{Role: m.Role, Content: m.Content})
	}

	var (
		reply      string
		matched    bool
		confidence *int
	)
	if m := s.faqs.Match(content); m != nil && m.Confidence > faqConfidenceCutoff {
		reply = m.Answer
		matched = true
		conf := m.Confidence
		confidence = &conf
	} else {
		reply = s.gateway.GenerateReply(ctx, content, history, s.faqs.Context())
	}

	assistantMsg := &Message{
		SessionID:       sessionID,
		Role:            RoleAssistant,
		Content:         reply,
		FAQMatched:      matched,
		ConfidenceScore: confidence,
	}
	if err := s.repo.InsertMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}

	// attempt count = user turns so far, including the one just appended
	attempts := 0
	for _, m := range all {
		if m.Role == RoleUser {
			attempts++
		}
	}
	check := s.gateway.ClassifyEscalation(ctx, content, attempts)

	var ticket *escalation.Ticket
	if check.NeedsEscalation {
		summary := s.gateway.Summarize(ctx, history)

		reason := check.Reason
		if reason == "" {
			reason = defaultEscalationReason
		}

		conv := make([]escalation.ConversationMessage, 0, len(all))
		for _, m := range all {
			conv = append(conv, escalation.ConversationMessage{Role: m.Role, Content: m.Content})
		}
		ticket = s.escalations.Escalate(sessionID, reason, summary, conv)

		if err := s.repo.MarkEscalated(ctx, sessionID, reason); err != nil {
			return nil, err
		}

		if s.tickets != nil {
			if err := s.tickets.PublishTicket(ctx, ticket); err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"session_id": sessionID,
					"ticket_id":  ticket.TicketID,
				}).Warn("escalation handoff publish failed")
			}
		}

		reply += escalationSuffix + ticket.TicketID
	}

	return &ChatResult{
		SessionID:  sessionID,
		Response:   reply,
		FAQMatched: matched,
		Confidence: confidence,
		Escalated:  check.NeedsEscalation,
		Ticket:     ticket,
	}, nil
}
