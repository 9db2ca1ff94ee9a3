package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/staypro/agenthub/internal/telemetry"
	"github.com/staypro/agenthub/pkg/config"
	"github.com/staypro/agenthub/pkg/server"
)

const version = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("agenthub v%s\n", version)
		return
	}

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("config file %s not found, using defaults", *configPath)
			cfg = config.Default()
			*configPath = ""
		} else {
			log.Fatalf("failed to load config from %s: %v", *configPath, err)
		}
	}

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(context.Background(), cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			log.Printf("telemetry init failed, tracing disabled: %v", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Printf("telemetry shutdown: %v", err)
				}
			}()
		}
	}

	srv, err := server.New(cfg, *configPath)
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}

	bootstrapAdmin(srv)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			log.Printf("server stopped: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// bootstrapAdmin creates the initial admin account from the environment so
// a fresh deployment with auth enabled is not locked out.
func bootstrapAdmin(srv *server.Server) {
	mgr := srv.Auth()
	if mgr == nil {
		return
	}

	username := os.Getenv("AGENTHUB_ADMIN_USER")
	password := os.Getenv("AGENTHUB_ADMIN_PASSWORD")
	if username == "" || password == "" {
		log.Printf("auth enabled but AGENTHUB_ADMIN_USER/AGENTHUB_ADMIN_PASSWORD unset; no bootstrap user created")
		return
	}

	if _, err := mgr.CreateUser(username, password, os.Getenv("AGENTHUB_ADMIN_TENANT"), "admin"); err != nil {
		log.Printf("failed to create bootstrap admin: %v", err)
		return
	}
	log.Printf("bootstrap admin %q created", username)
}
