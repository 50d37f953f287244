package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/liushuo92/support-bot/internal/ai"
	"github.com/liushuo92/support-bot/internal/chat"
	"github.com/liushuo92/support-bot/internal/config"
	"github.com/liushuo92/support-bot/internal/db"
	"github.com/liushuo92/support-bot/internal/escalation"
	"github.com/liushuo92/support-bot/internal/faq"
	"github.com/liushuo92/support-bot/internal/httpapi"
	"github.com/liushuo92/support-bot/internal/store/rabbitmq"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	faqs := faq.Load(cfg.FAQPath)
	logrus.WithField("entries", faqs.Len()).Info("faq table loaded")

	reg := ai.NewRegistry()
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		if model == "" {
			model = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, model), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		if model == "" {
			model = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, model,
			cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})

	provider, err := reg.Get(context.Background(), cfg.AIProvider, "")
	if err != nil {
		logrus.Fatalf("ai provider: %v", err)
	}

	gateway := ai.NewGateway(provider, cfg.MaxContextMessages, cfg.EscalationThreshold)
	coordinator := escalation.NewCoordinator()

	var tickets chat.TicketPublisher
	if pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue); err != nil {
		logrus.WithError(err).Warn("escalation handoff disabled: queue unavailable")
	} else {
		defer pub.Close()
		tickets = pub
	}

	svc := chat.NewService(chat.NewRepo(gdb), gateway, faqs, coordinator, tickets)

	r := httpapi.NewRouter(svc, cfg)

	logrus.WithFields(logrus.Fields{
		"addr":     cfg.HTTPAddr,
		"provider": cfg.AIProvider,
	}).Info("support bot listening")

	if err := r.Run(cfg.HTTPAddr); err != nil {
		logrus.Fatalf("http server: %v", err)
	}
}
