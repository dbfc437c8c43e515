package main

import (
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blukai/wvnet/internal/netmgr"
	"github.com/blukai/wvnet/internal/rpc"
	"github.com/blukai/wvnet/internal/transport"
	"github.com/blukai/wvnet/internal/wire"
	"github.com/blukai/wvnet/internal/world"
	"github.com/kelseyhightower/envconfig"
	"github.com/phuslu/log"
)

type Config struct {
	Port           uint16  `envconfig:"WVNET_PORT" default:"7777"`
	MaxConnections uint32  `envconfig:"WVNET_MAX_CONNECTIONS" default:"64"`
	TickRate       float32 `envconfig:"WVNET_TICK_RATE" default:"30"`
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

// PlayerActor circles the origin and drains health, giving clients something
// to watch.
type PlayerActor struct {
	world.ActorCore

	Health int32
	age    float32

	logger *log.Logger
}

func NewPlayerActor(logger *log.Logger) *PlayerActor {
	a := &PlayerActor{Health: 100, logger: logger}
	a.SetReplicates(true)
	a.RegisterProperty("Health", &a.Health)
	a.RegisterProperty("Position", &a.Position)
	return a
}

func (a *PlayerActor) TypeName() string { return "PlayerActor" }

func (a *PlayerActor) OnSpawn() {
	a.logger.Info().Msgf("player actor spawned with net id %d", a.NetID())
}

func (a *PlayerActor) OnDestroy() {
	a.logger.Info().Msgf("player actor %d destroyed", a.NetID())
}

func (a *PlayerActor) Tick(dt float32) {
	prevAge := a.age
	a.age += dt

	a.Position.X = float32(math.Cos(float64(a.age))) * 5.0
	a.Position.Z = float32(math.Sin(float64(a.age))) * 5.0

	if a.Health > 0 {
		// 10 points per second of age, in whole points
		a.Health -= int32(a.age*10.0) - int32(prevAge*10.0)
		if a.Health < 0 {
			a.Health = 0
		}
	}
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
		Mode:           transport.ModeServer,
		ServerPort:     config.Port,
		MaxConnections: config.MaxConnections,
		TickRate:       config.TickRate,
	}, w, logger)

	if err := manager.Initialize(); err != nil {
		return fmt.Errorf("could not initialize networking: %w", err)
	}
	defer manager.Shutdown()

	w.Spawn(NewPlayerActor(logger))

	manager.RPC().Register("Heal", rpc.KindServer, func(a world.Actor, params *wire.Reader) {
		amount := params.ReadInt32()
		if p, ok := a.(*PlayerActor); ok {
			p.Health += amount
			logger.Info().Msgf("healed player %d by %d", p.NetID(), amount)
		}
	})

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)

	// 60 Hz host loop; replication runs at its own configured rate
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
