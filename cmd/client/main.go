package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blukai/wvnet/internal/netmgr"
	"github.com/blukai/wvnet/internal/transport"
	"github.com/blukai/wvnet/internal/world"
	"github.com/kelseyhightower/envconfig"
	"github.com/phuslu/log"
)

type Config struct {
	ServerAddress string  `envconfig:"WVNET_SERVER_ADDRESS" default:"127.0.0.1"`
	ServerPort    uint16  `envconfig:"WVNET_SERVER_PORT" default:"7777"`
	TickRate      float32 `envconfig:"WVNET_TICK_RATE" default:"30"`
}

func loadConfig() (*Config, error) {
	config := new(Config)
	if err := envconfig.Process("", config); err != nil {
		return nil, err
	}
	return config, nil
}

func configureLogger() *log.Logger {
	logger := log.DefaultLogger

	// https://github.com/phuslu/log?tab=readme-ov-file#pretty-console-writer
	logger.Caller = 1
	logger.TimeFormat = "15:04:05"
	logger.Writer = &log.ConsoleWriter{
		ColorOutput:    true,
		QuoteString:    true,
		EndWithMessage: true,
	}

	return &logger
}

// PlayerActor mirrors the server's actor of the same type name; properties
// stream in through replication.
type PlayerActor struct {
	world.ActorCore

	Health int32

	logger *log.Logger
}

func NewPlayerActor(logger *log.Logger) *PlayerActor {
	a := &PlayerActor{logger: logger}
	a.RegisterProperty("Health", &a.Health)
	a.RegisterProperty("Position", &a.Position)
	return a
}

func (a *PlayerActor) TypeName() string { return "PlayerActor" }

func (a *PlayerActor) OnSpawn() {
	a.logger.Info().Msgf("player actor spawned with net id %d", a.NetID())
}

func (a *PlayerActor) OnReplicated() {
	a.logger.Info().Msgf(
		"player %d replicated: health=%d position=(%.2f, %.2f, %.2f)",
		a.NetID(), a.Health, a.Position.X, a.Position.Y, a.Position.Z,
	)
}

func (a *PlayerActor) OnDestroy() {
	a.logger.Info().Msgf("player actor %d destroyed", a.NetID())
}

func erringMain() error {
	config, err := loadConfig()
	if err != nil {
		return fmt.Errorf("could not process config: %w", err)
	}

	logger := configureLogger()

	w := world.NewWorld(logger)
	w.RegisterActorType("PlayerActor", func() world.Actor { return NewPlayerActor(logger) })

	manager := netmgr.NewManager(netmgr.Config{
		Mode:          transport.ModeClient,
		ServerAddress: config.ServerAddress,
		ServerPort:    config.ServerPort,
		TickRate:      config.TickRate,
	}, w, logger)

	if err := manager.Initialize(); err != nil {
		return fmt.Errorf("could not initialize networking: %w", err)
	}
	defer manager.Shutdown()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case sig := <-signalChan:
			logger.Info().Msgf("received %v signal", sig)
			return nil
		case now := <-ticker.C:
			dt := float32(now.Sub(last).Seconds())
			last = now

			w.Tick(dt)
			manager.Tick(dt)
		}
	}
}

func main() {
	if err := erringMain(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
