// Command ponderer runs the agent's backend process: the scheduler's Core
// Loop, its REST/WebSocket surface, and the MCP tool server the capability
// gate wraps. Flags and environment follow §6.4; init order is store →
// memory registry → broadcaster → scheduler → HTTP, with teardown in
// reverse, the same layering cmd/bud/main.go uses for its subsystem start
// and shutdown sequence.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/MLTQ/Ponderer/internal/concerns"
	"github.com/MLTQ/Ponderer/internal/config"
	"github.com/MLTQ/Ponderer/internal/events"
	"github.com/MLTQ/Ponderer/internal/httpapi"
	"github.com/MLTQ/Ponderer/internal/journal"
	"github.com/MLTQ/Ponderer/internal/llm"
	"github.com/MLTQ/Ponderer/internal/memory"
	"github.com/MLTQ/Ponderer/internal/orientation"
	"github.com/MLTQ/Ponderer/internal/presence"
	"github.com/MLTQ/Ponderer/internal/scheduler"
	"github.com/MLTQ/Ponderer/internal/store"
	"github.com/MLTQ/Ponderer/internal/toolgate"
)

const version = "0.1.0"

func main() {
	log.Printf("ponderer %s starting", version)

	configPath := flag.String("config", "ponderer.yaml", "path to the configuration file")
	flag.Parse()

	env := config.LoadEnv()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[main] config load failed: %v", err)
	}
	log.Printf("[main] %s", cfg)

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("[main] store open failed: %v", err)
	}
	defer st.Close()

	kvBackend := memory.NewKVBackend(st)
	memRegistry := memory.NewRegistry(kvBackend)
	memRegistry.Register("fts_v2", memory.NewFTSBackend(kvBackend))
	memRegistry.Register("episodic_v3", memory.NewEpisodicBackend(st))

	bcast := events.New()

	gen := llm.NewClient(cfg.LLMAPIURL, cfg.LLMModel, cfg.LLMAPIKey)

	mcpServer := server.NewMCPServer("ponderer", version, server.WithToolCapabilities(true))
	gate := toolgate.New(mcpServer)
	toolgate.RegisterMemoryTools(gate, memRegistry, cfg.WorkspaceDir)

	go func() {
		log.Println("[main] MCP tool server listening on stdio")
		if err := server.ServeStdio(mcpServer); err != nil {
			log.Printf("[main] MCP server error: %v", err)
		}
	}()

	sched := scheduler.New(scheduler.Deps{
		Store:       st,
		Config:      cfg,
		Presence:    presence.New(),
		Orientation: orientation.NewEngine(gen),
		Journal:     journal.NewEngine(gen),
		Concerns:    concerns.NewManager(st, concerns.NoAutoCreatePolicy{}),
		Memory:      memRegistry,
		Gate:        gate,
		Broadcaster: bcast,
		Budget:      scheduler.NewEngagedBudget(1_000_000),
		Generator:   gen,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go sched.Run(ctx)
	log.Println("[main] scheduler started")

	api := httpapi.New(st, sched, gate, bcast, *configPath)
	httpSrv := &http.Server{Addr: env.BackendBind, Handler: api.Handler()}
	go func() {
		log.Printf("[main] HTTP API listening on %s", env.BackendBind)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[main] HTTP server error: %v", err)
		}
	}()

	log.Println("[main] all subsystems started, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[main] shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] HTTP shutdown error: %v", err)
	}

	sched.Stop()
	cancel()

	log.Println("[main] goodbye")
}
