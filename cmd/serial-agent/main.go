package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homelink/internal/agent"
	"homelink/internal/logging"

	"github.com/joho/godotenv"
)

func main() {
	serverURL := flag.String("server", "http://localhost:5069", "Command API base URL")
	portPath := flag.String("port", "/dev/ttyACM0", "Path to microcontroller serial port")
	baud := flag.Int("baud", 115200, "Serial baud rate")
	pollTimeout := flag.Duration("poll-timeout", 60*time.Second, "Long poll timeout")
	listPorts := flag.Bool("list", false, "List serial ports and exit")
	flag.Parse()

	_ = godotenv.Load()
	logging.InitLogging(envOr("LOG_LEVEL", "info"), envOr("LOG_FORMAT", "console"))
	log := logging.Component("serial-agent")

	if *listPorts {
		ports, err := agent.ListPorts()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to list serial ports")
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	username, password := os.Getenv("DEVICE_USERNAME"), os.Getenv("DEVICE_PASSWORD")
	if username == "" || password == "" {
		log.Fatal().Msg("DEVICE_USERNAME and DEVICE_PASSWORD must be set")
	}

	port, err := agent.OpenSerial(*portPath, *baud)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open serial port")
	}
	defer port.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := agent.NewClient(*serverURL, username, password, *pollTimeout)
	a := agent.New(client, port, agent.Config{PollTimeout: *pollTimeout})

	log.Info().Str("port", *portPath).Str("server", *serverURL).Msg("serial agent running")
	if err := a.Run(ctx); err != nil {
		log.Error().Err(err).Msg("serial agent stopped")
		os.Exit(1)
	}
	log.Info().Msg("serial agent stopped")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
