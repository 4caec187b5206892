// Package main provides the entry point for the turnstream server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turnstream/turnstream/internal/agent"
	"github.com/turnstream/turnstream/internal/config"
	"github.com/turnstream/turnstream/internal/emitter"
	"github.com/turnstream/turnstream/internal/logging"
	"github.com/turnstream/turnstream/internal/server"
	"github.com/turnstream/turnstream/internal/session"
	"github.com/turnstream/turnstream/internal/tasks"
	"github.com/turnstream/turnstream/internal/user"
)

var port = flag.Int("port", 0, "server port (overrides PORT env var)")

const Version = "0.1.0"

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "turnstream-server: loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}

	logging.Init(logging.FromAppConfig(cfg))

	logging.Info().Str("version", Version).Str("env", cfg.Env).Msg("turnstream-server: starting")

	agents := agent.NewStore()
	users := user.NewStore()
	factory := agent.NewFactory()
	factory.RegisterRunner(agent.EchoRunnerType, agent.NewEchoRunner())

	em := emitter.New()
	defer em.Close()

	taskSvc := tasks.New()
	sessionStore := session.NewStore()
	sessionSvc := session.NewService(sessionStore, agents, factory, taskSvc, em)

	serverConfig := server.DefaultConfig()
	serverConfig.Port = cfg.Port
	serverConfig.SSEIdleTimeout = cfg.SSEIdleTimeout

	srv := server.New(serverConfig, sessionSvc, agents, users)

	go func() {
		logging.Info().Int("port", cfg.Port).Msg("turnstream-server: listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("turnstream-server: server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("turnstream-server: shutting down")
	taskSvc.CancelAll("server-shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("turnstream-server: shutdown error")
	}
	logging.Info().Msg("turnstream-server: stopped")
}
