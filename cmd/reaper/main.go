// Command reaper runs the stale-presence sweep as a standalone process,
// for deployments that want the sweep decoupled from the recognition
// pipeline's process lifetime. cmd/server runs the same Reaper in-process
// by default; this binary is for operators who split the two out.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"

	"github.com/technosupport/campus-presence/internal/broadcast"
	"github.com/technosupport/campus-presence/internal/config"
	"github.com/technosupport/campus-presence/internal/data"
	"github.com/technosupport/campus-presence/internal/metrics"
	"github.com/technosupport/campus-presence/internal/presence"
	"github.com/technosupport/campus-presence/internal/reaper"
)

func main() {
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	instanceID := flag.String("instance-id", "reaper-standalone", "NATS relay instance id")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	rc := cfg.Recognition

	dbPass := os.Getenv("DB_PASSWORD")
	connStr := fmt.Sprintf("postgres://%s:%s@%s:5432/%s?sslmode=disable",
		cfg.DB.User, dbPass, cfg.DB.Host, cfg.DB.Name)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer db.Close()

	presenceModel := &data.PresenceModel{DB: db}
	cooldown := presence.NewCooldownTable(10000, rc.CooldownSeconds)
	presenceStore := presence.NewStore(presenceModel, cooldown)
	guests := presence.NewGuestTracker(10000, rc.PresenceTimeoutSeconds)
	rooms := &data.RoomModel{DB: db}
	m := metrics.NewCollector(metrics.Config{PerCamera: false})

	hub := broadcast.NewHub()
	if cfg.NATS.URL != "" {
		conn, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			log.Fatalf("nats connect failed: %v", err)
		}
		defer conn.Close()
		relay := broadcast.NewRelay(conn, *instanceID, 3)
		if err := relay.Subscribe(hub); err != nil {
			log.Fatalf("nats subscribe failed: %v", err)
		}
		defer relay.Close()
		hub.SetRelay(relay)
	}

	r := reaper.New(presenceStore, guests, rooms, hub, m, rc.PresenceCleanupInterval, rc.PresenceTimeoutSeconds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("reaper started: sweep every %ds, timeout %ds", rc.PresenceCleanupInterval, rc.PresenceTimeoutSeconds)
	r.Run(ctx)
	log.Println("reaper stopped")
}
