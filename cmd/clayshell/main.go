package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/clayshell/clayshell/internal/host"
	"github.com/clayshell/clayshell/internal/logging"
	"github.com/clayshell/clayshell/internal/overlay"
	"github.com/clayshell/clayshell/internal/session"
	"github.com/clayshell/clayshell/internal/state"
	"github.com/clayshell/clayshell/internal/web"
)

const Version = "0.4.0"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		addr        = flag.String("addr", "", "listen address for the UI server (default from config)")
		dataDir     = flag.String("data-dir", "", "data directory (default ~/.clayshell)")
		debug       = flag.Bool("debug", false, "enable debug logging")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println("clayshell", Version)
		return 0
	}

	dir := *dataDir
	if dir == "" {
		dir = session.DataDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "clayshell: create data dir: %v\n", err)
		return 1
	}

	cfg, err := session.LoadUserConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "clayshell: %v\n", err)
		return 1
	}

	logging.Init(logging.Config{
		LogDir: dir,
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Debug:  *debug,
	})
	defer logging.Shutdown()

	// Dump the in-memory log tail next to the data dir on panic, then
	// re-panic so the exit status stays honest.
	defer func() {
		if rec := recover(); rec != nil {
			_ = logging.DumpRingBuffer(filepath.Join(dir, "clayshell-crash.log"))
			panic(rec)
		}
	}()

	ui := overlay.New(filepath.Join(dir, "ui"))

	switch flag.Arg(0) {
	case "", "serve":
		// handled below
	case "reset-ui":
		return overlayCommand("reset-ui", ui.ResetEditableSource)
	case "reset-guidance":
		return overlayCommand("reset-guidance", ui.ResetGuidance)
	case "nuke":
		return overlayCommand("nuke", ui.Nuke)
	default:
		fmt.Fprintf(os.Stderr, "clayshell: unknown command %q\n\n", flag.Arg(0))
		usage()
		return 2
	}

	return serve(cfg, ui, dir, *addr)
}

func serve(cfg *session.UserConfig, ui *overlay.Overlay, dataDir, addrOverride string) int {
	log := logging.ForComponent(logging.CompHost)

	if err := ui.Sync(); err != nil {
		// A failed sync leaves a stale but usable overlay; keep serving.
		log.Warn("overlay_sync_failed", slog.String("error", err.Error()))
	}

	h := host.New(host.Config{
		Overlay:       ui,
		Store:         state.NewStore(filepath.Join(dataDir, "ui-state.json")),
		PickerCommand: cfg.PickerCommand,
	})
	defer h.Close()

	addr := addrOverride
	if addr == "" {
		addr = cfg.ListenAddr
	}
	server := web.NewServer(web.Config{
		ListenAddr: addr,
		Overlay:    ui,
		Host:       h,
	})

	// One registration, one guaranteed teardown: the signal context is
	// released on every exit path, and h.Close above pairs with host.New.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("clayshell_started",
		slog.String("version", Version),
		slog.String("addr", server.Addr()),
		slog.String("overlay", ui.Root()),
		slog.Bool("hot_reload", h.WatcherActive()),
	)
	fmt.Printf("clayshell %s serving http://%s (overlay: %s)\n", Version, server.Addr(), ui.Root())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(ctx) })
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "clayshell: %v\n", err)
		return 1
	}
	return 0
}

func overlayCommand(name string, op func() error) int {
	if err := op(); err != nil {
		fmt.Fprintf(os.Stderr, "clayshell %s: %v\n", name, err)
		return 1
	}
	fmt.Printf("clayshell %s: done\n", name)
	return 0
}

func usage() {
	fmt.Fprintf(os.Stderr, `clayshell: a moldable host for coding-assistant sessions

Usage:
  clayshell [flags] [command]

Commands:
  serve           run the host and UI server (default)
  reset-ui        restore the bundled editable UI files
  reset-guidance  regenerate the overlay guidance document
  nuke            reset UI, guidance, and delete all plugins

Flags:
`)
	flag.PrintDefaults()
}
