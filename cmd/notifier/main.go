package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mentormesh/mentormesh/internal/config"
	"github.com/mentormesh/mentormesh/internal/email"
	"github.com/mentormesh/mentormesh/internal/notify"
	"github.com/mentormesh/mentormesh/internal/store/rabbitmq"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	reg := notify.NewRegistry()
	reg.Register("smtp", func(ctx context.Context) (notify.Sender, error) {
		_ = ctx
		return notify.NewSMTPSender(email.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		}), nil
	})
	if url := os.Getenv("NOTIFY_WEBHOOK_URL"); url != "" {
		reg.Register("webhook", func(ctx context.Context) (notify.Sender, error) {
			_ = ctx
			return notify.NewWebhookSender(url), nil
		})
	}

	channel := os.Getenv("NOTIFY_CHANNEL")
	if channel == "" {
		channel = "smtp"
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := cfg.NotifierConcurrency

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender, err := reg.Get(ctx, channel)
	if err != nil {
		log.Fatalf("sender: %v", err)
	}

	log.Printf("notifier started queue=%s channel=%s concurrency=%d", cfg.RabbitQueue, channel, concurrency)

	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var n notify.Notification
				if err := json.Unmarshal(d.Body, &n); err != nil || n.ID == "" {
					log.Printf("worker=%d bad message err=%v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				err := sender.Send(sendCtx, n)
				cancel()
				if err != nil {
					log.Printf("worker=%d notification %s failed kind=%s to=%s cost=%s err=%v",
						workerID, n.ID, n.Kind, n.To, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed id=%s err=%v", workerID, n.ID, err)
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("notifier shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}
