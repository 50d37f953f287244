package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Fallback texts returned when the provider fails. The gateway never
// surfaces provider errors to its callers.
const (
	replyFallback   = "I apologize, but I'm experiencing technical difficulties. Please try again in a moment."
	summaryFallback = "Unable to generate summary."
	reasonUnknown   = "Unable to determine"
)

const systemPromptFmt = `You are a helpful customer support assistant.
Your role:
- Answer customer queries professionally and concisely
- Use the FAQ context when relevant
- Be empathetic and solution-oriented
- If you cannot answer confidently, suggest escalation to human support

%s

Guidelines:
- Keep responses clear and under 3 paragraphs
- Provide actionable solutions
- If information is missing, ask clarifying questions`

const classifyPromptFmt = `Analyze if this customer query requires human escalation:
Query: %q

Escalate if the query involves:
- Complex technical issues
- Account-specific problems
- Complaints or refund requests
- Urgent/emergency matters
- Sensitive information

Respond in JSON format:
{"needs_escalation": true/false, "reason": "brief explanation"}`

const summaryPromptFmt = `Summarize this customer support conversation concisely:

%s
Provide a brief summary including:
1. Main issue/concern
2. Key points discussed
3. Current status

Summary:`

type EscalationCheck struct {
	NeedsEscalation bool   `json:"needs_escalation"`
	Reason          string `json:"reason"`
}

// Gateway exposes the three support-bot operations on top of a Provider.
// Every provider failure is absorbed into a fallback value.
type Gateway struct {
	provider            Provider
	maxContextMessages  int
	escalationThreshold int
}

func NewGateway(provider Provider, maxContextMessages, escalationThreshold int) *Gateway {
	if maxContextMessages <= 0 {
		maxContextMessages = 14
	}
	if escalationThreshold <= 0 {
		escalationThreshold = 3
	}
	return &Gateway{
		provider:            provider,
		maxContextMessages:  maxContextMessages,
		escalationThreshold: escalationThreshold,
	}
}

// GenerateReply answers a query given the prior conversation turns and the
// rendered FAQ context. Prior turns keep their stored roles; only the most
// recent maxContextMessages are forwarded.
func (g *Gateway) GenerateReply(ctx context.Context, query string, history []Message, faqContext string) string {
	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, Message{Role: "system", Content: fmt.Sprintf(systemPromptFmt, faqContext)})

	start := 0
	if len(history) > g.maxContextMessages {
		start = len(history) - g.maxContextMessages
	}
	msgs = append(msgs, history[start:]...)
	msgs = append(msgs, Message{Role: "user", Content: query})

	reply, err := g.provider.Chat(ctx, msgs)
	if err != nil || strings.TrimSpace(reply) == "" {
		logrus.WithError(err).Warn("reply generation failed, returning fallback")
		return replyFallback
	}
	return reply
}

// Summarize produces an escalation handoff summary of the conversation.
func (g *Gateway) Summarize(ctx context.Context, history []Message) string {
	var transcript strings.Builder
	for _, m := range history {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}

	prompt := fmt.Sprintf(summaryPromptFmt, transcript.String())
	out, err := g.provider.Chat(ctx, []Message{{Role: "user", Content: prompt}})
	if err != nil || strings.TrimSpace(out) == "" {
		logrus.WithError(err).Warn("conversation summary failed, returning fallback")
		return summaryFallback
	}
	return out
}

// ClassifyEscalation decides whether a query needs a human. Once attemptCount
// reaches the threshold the decision is made without a model call. A failed
// or unparseable model answer means no escalation.
func (g *Gateway) ClassifyEscalation(ctx context.Context, query string, attemptCount int) EscalationCheck {
	if attemptCount >= g.escalationThreshold {
		return EscalationCheck{
			NeedsEscalation: true,
			Reason:          fmt.Sprintf("Query attempted %d times without resolution", attemptCount),
		}
	}

	out, err := g.provider.Chat(ctx, []Message{{Role: "user", Content: fmt.Sprintf(classifyPromptFmt, query)}})
	if err != nil {
		logrus.WithError(err).Warn("escalation classification failed")
		return EscalationCheck{Reason: reasonUnknown}
	}

	var check EscalationCheck
	if err := json.Unmarshal([]byte(stripCodeFence(out)), &check); err != nil {
		logrus.WithError(err).Warn("escalation classification unparseable")
		return EscalationCheck{Reason: reasonUnknown}
	}
	return check
}

// stripCodeFence removes a surrounding markdown code fence, which several
// models wrap around JSON answers.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
