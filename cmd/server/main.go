package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homelink/auth"
	"homelink/internal/automation"
	"homelink/internal/config"
	"homelink/internal/engine"
	"homelink/internal/internet_bridge"
	"homelink/internal/logging"
	"homelink/internal/mqtt"
	"homelink/internal/queue"
	"homelink/internal/redis"
	"homelink/internal/registry"
	"homelink/internal/scheduler"
	"homelink/internal/taskqueue"
	"homelink/internal/telemetry"
	"homelink/internal/web"

	"github.com/pion/mdns/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	linkRetryDelay    = 5 * time.Second
	workerConcurrency = 4
	shutdownTimeout   = 10 * time.Second
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logging.InitLogging(cfg.Log.Level, cfg.Log.Format)
	log := logging.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, health, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to open store")
	}
	defer closeStore()

	reg := registry.NewRegistry(st)
	q := queue.NewQueue(st, reg, cfg.Queue)
	eng := engine.NewEngine(st, q, cfg.Engine)
	q.SetResolver(eng)
	links := engine.NewLinkService(st, reg)
	authModule := auth.NewAuthModule(st, cfg.JWT.Secret, cfg.JWT.TTL)

	rec, closeInflux, err := telemetry.Connect(ctx, cfg.Influx)
	if err != nil {
		log.Warn().Err(err).Msg("telemetry disabled")
	} else {
		defer closeInflux()
		if rec != nil {
			q.SetRecorder(rec)
			eng.SetRecorder(rec)
		}
	}

	var worker *taskqueue.Worker
	if cfg.Redis.Enabled {
		rc, err := redis.NewRedisClient(ctx, cfg.Redis.Addr)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, long polls fall back to polling and link retries stay in-process")
		} else {
			defer rc.Close()
			wake := redis.NewWake(rc)
			q.AddNotifier(wake)
			q.SetWakeSource(wake)

			tq := taskqueue.NewClient(cfg.Redis.Addr, linkRetryDelay)
			defer tq.Close()
			eng.SetDeferrer(tq)

			worker = taskqueue.NewWorker(cfg.Redis.Addr, workerConcurrency, eng)
			if err := worker.Start(); err != nil {
				log.Error().Err(err).Msg("failed to start task worker")
				worker = nil
			}
		}
	}

	var bridge *mqtt.Bridge
	if cfg.MQTT.Enabled {
		mc, err := mqtt.NewClient(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			log.Warn().Err(err).Str("broker", cfg.MQTT.Broker).Msg("mqtt unavailable")
		} else {
			bridge = mqtt.NewBridge(mc, q, st)
			if err := bridge.Start(); err != nil {
				log.Error().Err(err).Msg("failed to subscribe to device events")
			}
			q.AddNotifier(bridge)
		}
	}

	var assistant *automation.Assistant
	if cfg.LLM.BaseURL != "" {
		assistant = automation.NewAssistant(automation.NewClient(cfg.LLM), reg, q)
	}

	sched := scheduler.NewScheduler()
	if err := sched.SchedulePrune(cfg.Scheduler.PruneCron, scheduler.NewHistoryPruner(st, cfg.Scheduler.HistoryRetention)); err != nil {
		log.Fatal().Err(err).Msg("invalid prune schedule")
	}
	sched.Start()

	webServer := web.NewWebServer(web.Dependencies{
		Auth:      authModule,
		Users:     st,
		Registry:  reg,
		Queue:     q,
		Links:     links,
		Assistant: assistant,
		Health:    health,
	})
	go func() {
		if err := webServer.Start(fmt.Sprintf(":%d", cfg.App.Port)); err != nil {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	if cfg.MDNS.Enabled {
		go startMDNSServer(ctx, log, cfg.MDNS.LocalName)
	}

	if cfg.RemoteAccess.Enabled {
		agent := internet_bridge.NewAgent(internet_bridge.Config{
			PublicWS:       cfg.RemoteAccess.PublicWS,
			LocalURL:       fmt.Sprintf("http://127.0.0.1:%d", cfg.App.Port),
			ServerID:       cfg.App.AgentID,
			RetryDelay:     cfg.RemoteAccess.RetryDelay,
			RequestTimeout: cfg.RemoteAccess.RequestTimeout,
		})
		go agent.Start(ctx)
	} else {
		log.Info().Msg("remote access bridge is disabled")
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	sched.Stop()
	if worker != nil {
		worker.Stop()
	}
	if bridge != nil {
		bridge.Stop()
	}
	log.Info().Msg("shutdown complete")
}

func startMDNSServer(ctx context.Context, log zerolog.Logger, localName string) {
	addr4, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddressIPv4)
	if err != nil {
		log.Warn().Err(err).Msg("failed to resolve mDNS udp4 address")
		return
	}
	addr6, err := net.ResolveUDPAddr("udp6", mdns.DefaultAddressIPv6)
	if err != nil {
		log.Warn().Err(err).Msg("failed to resolve mDNS udp6 address")
		return
	}

	l4, err := net.ListenUDP("udp4", addr4)
	if err != nil {
		log.Warn().Err(err).Msg("failed to listen on mDNS udp4")
		return
	}
	l6, err := net.ListenUDP("udp6", addr6)
	if err != nil {
		l4.Close()
		log.Warn().Err(err).Msg("failed to listen on mDNS udp6")
		return
	}

	conn, err := mdns.Server(ipv4.NewPacketConn(l4), ipv6.NewPacketConn(l6), &mdns.Config{
		LocalNames: []string{localName},
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to start mDNS server")
		return
	}
	log.Info().Str("name", localName).Msg("answering mDNS")

	<-ctx.Done()
	conn.Close()
}
