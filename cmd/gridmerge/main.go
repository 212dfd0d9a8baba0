package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/sync/errgroup"

	"github.com/udisondev/gridmerge/internal/config"
	"github.com/udisondev/gridmerge/internal/db"
	"github.com/udisondev/gridmerge/internal/game"
	"github.com/udisondev/gridmerge/internal/movement"
	"github.com/udisondev/gridmerge/internal/savefile"
	"github.com/udisondev/gridmerge/internal/token"
	"github.com/udisondev/gridmerge/internal/world"
)

const ConfigPath = "config/gridmerge.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		fmt.Fprintf(os.Stderr, "gridmerge: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load config FIRST to determine log level
	cfgPath := ConfigPath
	if p := os.Getenv("GRIDMERGE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadGame(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// The terminal belongs to the renderer, so logs go to a file.
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	slog.SetDefault(slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	slog.Info("gridmerge starting",
		"config", cfgPath,
		"log_level", cfg.LogLevel,
		"persistence", cfg.Persistence.Backend,
		"movement", cfg.Movement.Source)

	engine, channel, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer channel.Close()

	restore(engine, channel.source)

	moves := make(chan world.LatLng, 16)
	buttons := movement.NewButtonSource(cfg.CellSize, engine.Position)
	geo := movement.NewGeolocationSource(openFeed(cfg.Movement.Feed), cfg.Movement.PollInterval)
	control := movement.NewController(moves, buttons, geo)

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("creating screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("initializing screen: %w", err)
	}
	defer screen.Fini()
	screen.EnableMouse()

	snd := newSounds(cfg.Sound)
	defer snd.Close()

	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stopLoop := context.WithCancel(gctx)
	defer stopLoop()

	if err := control.Use(loopCtx, movement.Kind(cfg.Movement.Source)); err != nil {
		slog.Warn("initial movement source unavailable, using buttons", "err", err)
		if err := control.Use(loopCtx, movement.KindButtons); err != nil {
			return fmt.Errorf("starting button movement: %w", err)
		}
	}

	g.Go(func() error {
		<-loopCtx.Done()
		control.Stop()
		slog.Info("movement stopped")
		return nil
	})

	g.Go(func() error {
		// Quitting the UI ends every other goroutine in the group.
		defer stopLoop()
		slog.Info("starting game loop")
		if err := newUI(screen, engine, control, buttons, snd, cfg.ViewRadius).Run(loopCtx, moves); err != nil {
			return fmt.Errorf("game loop: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	stats := engine.Stats()
	slog.Info("gridmerge stopped",
		"inventory", engine.Inventory(),
		"cached", stats.Cached,
		"archived", stats.Archived)
	return nil
}

// persistence bundles the configured snapshot channel.
type persistence struct {
	sink   game.SnapshotSink
	source game.SnapshotSource
	close  func()
}

func (p persistence) Close() {
	if p.close != nil {
		p.close()
	}
}

func newEngine(ctx context.Context, cfg config.Game) (*game.Engine, persistence, error) {
	grid, err := world.NewGrid(world.LatLng(cfg.Origin), cfg.CellSize)
	if err != nil {
		return nil, persistence{}, fmt.Errorf("creating grid: %w", err)
	}

	values := make([]token.Value, 0, len(cfg.TokenValues))
	for _, v := range cfg.TokenValues {
		values = append(values, token.Value(v))
	}
	gen, err := token.NewGenerator(cfg.Seed, cfg.SpawnProbability, values)
	if err != nil {
		return nil, persistence{}, fmt.Errorf("creating generator: %w", err)
	}

	channel, err := openPersistence(ctx, cfg.Persistence)
	if err != nil {
		return nil, persistence{}, err
	}

	engine, err := game.NewEngine(game.Config{
		Grid:              grid,
		Generator:         gen,
		Start:             world.LatLng(cfg.Start),
		InteractionRadius: cfg.InteractionRadius,
		VictoryThreshold:  token.Value(cfg.VictoryThreshold),
		Sink:              channel.sink,
	})
	if err != nil {
		channel.Close()
		return nil, persistence{}, fmt.Errorf("creating engine: %w", err)
	}
	return engine, channel, nil
}

func openPersistence(ctx context.Context, cfg config.Persistence) (persistence, error) {
	switch cfg.Backend {
	case config.BackendFile:
		store := savefile.New(cfg.File)
		slog.Info("file persistence", "path", store.Path())
		return persistence{sink: store, source: store}, nil

	case config.BackendPostgres:
		dsn := cfg.Database.DSN()
		database, err := db.New(ctx, dsn)
		if err != nil {
			return persistence{}, fmt.Errorf("connecting to database: %w", err)
		}
		slog.Info("database connected")

		if err := db.RunMigrations(ctx, dsn); err != nil {
			database.Close()
			return persistence{}, fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")

		ch := db.NewChannel(db.NewSnapshotRepository(database.Pool()), cfg.WriteTimeout)
		return persistence{sink: ch, source: ch, close: database.Close}, nil

	default:
		slog.Info("persistence disabled")
		return persistence{}, nil
	}
}

// restore loads the saved game. Any failure falls back to a fresh game.
func restore(engine *game.Engine, source game.SnapshotSource) {
	if source == nil {
		return
	}

	snap, ok, err := source.LoadSnapshot()
	if err != nil {
		slog.Error("loading snapshot, starting fresh", "err", err)
		return
	}
	if !ok {
		slog.Info("no saved game, starting fresh")
		return
	}

	if err := engine.ImportSnapshot(snap); err != nil {
		if errors.Is(err, game.ErrCorruptSnapshot) {
			// Rejected before any state changed.
			slog.Error("saved game is corrupt, starting fresh", "err", err)
			return
		}
		slog.Error("restoring saved game, starting fresh", "err", err)
		engine.Reset()
		return
	}
	slog.Info("saved game restored", "modifications", len(snap.Modifications))
}

func openFeed(path string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		if path == "" {
			return nil, errors.New("movement.feed is not configured")
		}
		return os.Open(path)
	}
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
