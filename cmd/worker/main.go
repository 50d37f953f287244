package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/liushuo92/support-bot/internal/config"
	"github.com/liushuo92/support-bot/internal/escalation"
	"github.com/liushuo92/support-bot/internal/store/redisstore"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	agents := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer agents.Close()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logrus.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logrus.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	// declaration must match the publisher's main queue
	_, err = ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.RabbitQueue + ".dlq",
	})
	if err != nil {
		logrus.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		logrus.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		logrus.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logrus.WithFields(logrus.Fields{
		"queue":       cfg.RabbitQueue,
		"concurrency": concurrency,
	}).Info("escalation worker started")

	// worker pool
	tickets := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range tickets {
				if err := handoffTicket(ctx, agents, d.Body); err != nil {
					logrus.WithError(err).WithField("worker", workerID).Error("ticket handoff failed")
					_ = d.Nack(false, false)
					continue
				}
				if err := d.Ack(false); err != nil {
					logrus.WithError(err).WithField("worker", workerID).Error("ack failed")
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			logrus.Info("escalation worker shutting down")
			close(tickets)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				logrus.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			tickets <- d
		}
	}
}

// handoffTicket validates the payload and mirrors it into the agent-facing
// redis queue.
func handoffTicket(ctx context.Context, agents *redisstore.Store, body []byte) error {
	var t escalation.Ticket
	if err := json.Unmarshal(body, &t); err != nil {
		return err
	}

	if err := agents.PushPendingTicket(ctx, body); err != nil {
		return err
	}

	entry := logrus.WithFields(logrus.Fields{
		"ticket_id":  t.TicketID,
		"session_id": t.SessionID,
		"priority":   t.Priority,
	})
	if depth, err := agents.PendingCount(ctx); err == nil {
		entry = entry.WithField("queue_depth", depth)
	}
	entry.Info("ticket handed off to agents")

	return nil
}
