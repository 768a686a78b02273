package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/mentormesh/mentormesh/internal/config"
	"github.com/mentormesh/mentormesh/internal/db"
	"github.com/mentormesh/mentormesh/internal/httpapi"
	"github.com/mentormesh/mentormesh/internal/notify"
	"github.com/mentormesh/mentormesh/internal/store/rabbitmq"
	"github.com/mentormesh/mentormesh/internal/store/redisstore"
	"github.com/mentormesh/mentormesh/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()

	// The fan-out hub is built once here and injected everywhere; nothing
	// reaches it through global state.
	hub := ws.NewHub()

	var dispatcher *notify.Dispatcher
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		// Notifications are best-effort: a dead broker degrades them, not the API.
		log.Printf("rabbit unavailable, notifications disabled err=%v", err)
		dispatcher = notify.NewDispatcher(nil)
	} else {
		defer pub.Close()
		dispatcher = notify.NewDispatcher(pub)
	}

	r := httpapi.NewRouter(gdb, cfg, rds, hub, dispatcher)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("api listening addr=%s", addr)
	log.Fatal(r.Run(addr))
}
