package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/lixenwraith/outbreak/config"
	"github.com/lixenwraith/outbreak/core"
	"github.com/lixenwraith/outbreak/render"
)

var (
	configFlag   = flag.String("config", "", "Path to outbreak.yaml (defaults when empty)")
	seedFlag     = flag.Uint64("seed", 0, "RNG seed, 0 uses spawn.seed or the clock")
	debugFlag    = flag.Bool("debug", false, "Write logs to logs/outbreak.log")
	logLevelFlag = flag.String("log-level", "info", "Log level with -debug: debug, info, warn, error")
	headlessFlag = flag.Bool("headless", false, "Run without a terminal UI")
	ticksFlag    = flag.Int("ticks", 1000, "Ticks to run in headless mode, 0 runs until interrupted")
	colorFlag    = flag.String("color", "", "Color mode override: auto, 256, truecolor, mono")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// run owns every deferred cleanup so failures still sync the log
func run() error {
	logger, closeLog, err := setupLogging(*debugFlag, *logLevelFlag)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closeLog()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		logger.Error("config load failed", zap.Error(err))
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *colorFlag != "" {
		cfg.Render.Color = *colorFlag
		cfg.Normalize()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid -color: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, *seedFlag, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return fmt.Errorf("failed to start: %w", err)
	}
	defer a.Close()
	a.startServers(ctx)

	if *headlessFlag {
		err = runHeadless(ctx, a, *ticksFlag)
	} else {
		err = runInteractive(ctx, a)
	}
	if err != nil {
		logger.Error("run failed", zap.Error(err))
	}
	return err
}

func runHeadless(ctx context.Context, a *app, ticks int) error {
	if ticks > 0 {
		return a.runHeadless(ctx, ticks, os.Stdout)
	}
	if err := a.loop.Run(ctx); err != nil {
		return err
	}
	a.writeSummary(os.Stdout)
	return nil
}

func runInteractive(ctx context.Context, a *app) error {
	if a.cfg.Render.Color == "256" {
		// tcell downsamples RGB to the palette when truecolor is off
		os.Setenv("TCELL_TRUECOLOR", "disable")
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("terminal init: %w", err)
	}
	core.SetCrashHook(screen.Fini)
	defer func() {
		core.SetCrashHook(nil)
		screen.Fini()
		a.writeSummary(os.Stdout)
	}()

	if a.cfg.Audio.Enabled {
		if err := a.player.Initialize(); err != nil {
			a.logger.Warn("audio unavailable, continuing without sound", zap.Error(err))
		}
	}

	r := render.New(screen, a.scene, a.coord, a.reg, a.hud, render.Options{
		EntranceTag: a.cfg.Spawn.EntranceTag,
		TargetTag:   a.cfg.Spawn.TargetTag,
		Color:       a.cfg.Render.Color != "mono",
		Paused:      a.loop.Paused,
		Muted:       a.player.Muted,
	})
	a.loop.AddSystem(r)
	a.loop.RunSafe(r.Draw)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan tcell.Event, 64)
	core.Go(func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	})

	loopErr := make(chan error, 1)
	core.Go(func() { loopErr <- a.loop.Run(ctx) })

	for {
		select {
		case ev := <-events:
			switch render.Translate(ev) {
			case render.ActionQuit:
				cancel()
				return <-loopErr
			case render.ActionPause:
				paused := a.loop.TogglePause()
				a.logger.Debug("pause toggled", zap.Bool("paused", paused))
				a.loop.RunSafe(r.Draw)
			case render.ActionMute:
				a.player.ToggleMute()
				a.loop.RunSafe(r.Draw)
			case render.ActionResize:
				a.loop.RunSafe(r.Sync)
			}
		case err := <-loopErr:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}
