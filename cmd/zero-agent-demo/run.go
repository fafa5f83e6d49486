package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/aaron-michaux/zero/internal/config"
	"github.com/aaron-michaux/zero/internal/logging"
	"github.com/aaron-michaux/zero/internal/metrics"
	"github.com/aaron-michaux/zero/internal/pool"
	"github.com/aaron-michaux/zero/internal/rpc"
	"github.com/aaron-michaux/zero/internal/stream"
	"github.com/aaron-michaux/zero/internal/timer"
	"github.com/rs/zerolog"
)

const echoCallID = 1

func buildRunCommand() *cobra.Command {
	var message string
	var deadlineMillis uint32

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Wire up the pool, timer manager, agents, and stream carrier, then perform one echo call",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(message, deadlineMillis)
		},
	}
	cmd.Flags().StringVar(&message, "message", "hello, zero", "payload to echo through the demo RPC call")
	cmd.Flags().Uint32Var(&deadlineMillis, "deadline-millis", 0, "deadline for the demo call, in milliseconds (0 = agent.default_deadline_millis from config)")
	return cmd
}

func runDemo(message string, deadlineMillis uint32) error {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := logging.New(nil, level)
	collector := metrics.NewCollector()

	if cfg.Metrics.Enabled {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: collector.Handler()}
		go func() { _ = srv.ListenAndServe() }()
		defer srv.Close()
	}

	workers := pool.New(pool.Config{
		ThreadCount:     cfg.Pool.ThreadCount,
		NSegments:       cfg.Pool.NSegments,
		SegmentCapacity: cfg.Pool.SegmentCapacity,
	})
	defer workers.Shutdown()

	timers := timer.New(workers, timer.Config{
		NSegments:       cfg.Timer.NSegments,
		SegmentCapacity: cfg.Timer.SegmentCapacity,
	})
	defer timers.Dispose()

	serverPipe, clientPipe := stream.NewPipePair(16)

	server := rpc.New(serverPipe, workers, timers, timers, rpc.Config{
		Logger:                logger,
		DefaultDeadlineMillis: cfg.Agent.DefaultDeadlineMillis,
		Handler: func(ctx *rpc.CallContext, payload []byte) {
			collector.RecordTaskCompleted()
			ctx.FinishWithPayload(rpc.OK, payload)
		},
	})
	client := rpc.New(clientPipe, workers, timers, timers, rpc.Config{
		Logger:                logger,
		DefaultDeadlineMillis: cfg.Agent.DefaultDeadlineMillis,
	})

	serverPipe.AddHandler(stream.AgentBridge{Agent: server})
	clientPipe.AddHandler(stream.AgentBridge{Agent: client})
	serverPipe.Start()
	clientPipe.Start()
	defer server.Close()
	defer client.Close()

	collector.RecordTaskSubmitted()
	collector.RPCCallStarted()

	done := make(chan struct{})
	var gotStatus rpc.StatusCode
	var gotPayload []byte
	client.PerformCall(echoCallID, deadlineMillis, func() ([]byte, error) {
		return []byte(message), nil
	}, func(status rpc.StatusCode, errMessage, errDetails string, payload []byte) {
		collector.RPCCallCompleted(status.String())
		gotStatus = status
		gotPayload = payload
		close(done)
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		return fmt.Errorf("echo call timed out")
	}

	logger.Info("echo call completed",
		logging.F("status", gotStatus.String()),
		logging.F("payload", string(gotPayload)),
	)
	fmt.Printf("status=%s payload=%q\n", gotStatus, gotPayload)
	return nil
}
