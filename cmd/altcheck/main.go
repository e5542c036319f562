// altcheck - alt account detection for proxy networks
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ernie/altcheck/internal/alts"
	"github.com/ernie/altcheck/internal/api"
	"github.com/ernie/altcheck/internal/auth"
	"github.com/ernie/altcheck/internal/collector"
	"github.com/ernie/altcheck/internal/config"
	"github.com/ernie/altcheck/internal/logger"
	"github.com/ernie/altcheck/internal/notify"
	"github.com/ernie/altcheck/internal/storage"
	flag "github.com/spf13/pflag"
)

var version = "dev"

const defaultConfigPath = "/etc/altcheck/config.yml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		cmdInit(os.Args[2:])
	case "serve":
		cmdServe(os.Args[2:])
	case "alts":
		cmdAlts(os.Args[2:])
	case "connect":
		cmdConnect(os.Args[2:])
	case "backfill":
		cmdBackfill(os.Args[2:])
	case "export":
		cmdExport(os.Args[2:])
	case "import":
		cmdImport(os.Args[2:])
	case "user":
		cmdUser(os.Args[2:])
	case "version":
		fmt.Printf("altcheck %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: altcheck <command> [options] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init                                Write a default config file")
	fmt.Println("  serve                               Start the alert server and log collectors")
	fmt.Println("  alts <account|ip>                   Show every account and IP linked to a seed")
	fmt.Println("  connect [--source S] <account> <ip> Record a connection and report alts")
	fmt.Println("  backfill [--format F] <logfile>     Record links from an existing proxy log")
	fmt.Println("  export [--out file]                 Dump all links (zstd-compressed JSON lines)")
	fmt.Println("  import <file>                       Load links written by export")
	fmt.Println("  user add [--admin] [--perm P,...] <username>")
	fmt.Println("                                      Add a user (prompts for password)")
	fmt.Println("  user remove <username>              Remove a user")
	fmt.Println("  user list                           List all users")
	fmt.Println("  user reset <username>               Reset a user's password")
	fmt.Println("  user admin <username>               Toggle admin status for a user")
	fmt.Println("  user perm <username> [P ...]        Replace a user's permissions")
	fmt.Println("  version                             Show version")
	fmt.Println("  help                                Show this help")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --config <path>    Path to configuration file (default /etc/altcheck/config.yml)")
	fmt.Println()
	fmt.Println("Seeds may be tagged to force a kind: ip:<value> or account:<value>.")
	fmt.Println("Permissions: " + fmt.Sprint(auth.AllPermissions))
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  sudo altcheck init")
	fmt.Println("  altcheck serve --config /etc/altcheck/config.yml")
	fmt.Println("  altcheck alts Notch")
	fmt.Println("  altcheck alts 203.0.113.7")
	fmt.Println("  altcheck user add --perm altcheck.alts,altcheck.notify moderator")
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// loadConfig parses --config from args and loads it, exiting on failure
func loadConfig(name string, args []string, fs *flag.FlagSet) (*config.Config, []string) {
	if fs == nil {
		fs = flag.NewFlagSet(name, flag.ExitOnError)
	}
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("failed to load config: %v", err)
	}
	return cfg, fs.Args()
}

// openStore opens the configured link store, exiting on failure
func openStore(ctx context.Context, cfg *config.Config) *storage.Store {
	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		fatalf("failed to open database: %v", err)
	}
	return store
}

// buildNotifier assembles the configured external publishers. hub may be nil.
func buildNotifier(ctx context.Context, cfg *config.Config, log *logger.Logger, hub *notify.Hub) (notify.Multi, func(), error) {
	var notifiers notify.Multi
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn("Failed to close notifier", "error", err)
			}
		}
	}

	if hub != nil {
		notifiers = append(notifiers, hub)
	}
	if cfg.Notify.NATS.URL != "" {
		pub, err := notify.NewNATSPublisher(cfg.Notify.NATS, log)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		notifiers = append(notifiers, pub)
		closers = append(closers, pub.Close)
		log.Info("Publishing alerts to NATS", "url", cfg.Notify.NATS.URL, "subject", cfg.Notify.NATS.Subject)
	}
	if cfg.Notify.Redis.Addr != "" {
		pub, err := notify.NewRedisPublisher(ctx, cfg.Notify.Redis, log)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		notifiers = append(notifiers, pub)
		closers = append(closers, pub.Close)
		log.Info("Publishing alerts to Redis", "addr", cfg.Notify.Redis.Addr, "channel", cfg.Notify.Redis.Channel)
	}
	return notifiers, closeAll, nil
}

// cmdServe starts the HTTP server, websocket hub and log collectors
func cmdServe(args []string) {
	cfg, _ := loadConfig("serve", args, nil)

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fatalf("failed to build logger: %v", err)
	}
	defer log.Sync()

	log.Info("altcheck starting", "version", version, "sources", len(cfg.Sources))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database", "driver", cfg.Database.Driver, "error", err)
	}
	defer store.Close()
	log.Info("Database initialized", "driver", store.Driver())

	hub := notify.NewHub(log)
	go hub.Run(ctx)

	notifier, closeNotifiers, err := buildNotifier(ctx, cfg, log, hub)
	if err != nil {
		log.Fatal("Failed to initialize notifier", "error", err)
	}
	defer closeNotifiers()

	join := alts.NewJoinHandler(store, log, cfg.Notify.Prefix)
	query := alts.NewQueryService(store, log)

	coll := collector.New(cfg.Sources, join, store, notifier, log)
	if err := coll.Start(ctx); err != nil {
		log.Fatal("Failed to start collector", "error", err)
	}

	authService := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)

	router := api.NewRouter(api.Deps{
		Store:     store,
		Join:      join,
		Query:     query,
		Hub:       hub,
		Notifier:  notifier,
		Auth:      authService,
		Log:       log,
		StaticDir: cfg.Server.StaticDir,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		log.Info("Received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		log.Fatal("HTTP server error", "error", err)
	}

	// Sequential shutdown
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpCtx); err != nil {
		log.Warn("HTTP server shutdown error", "error", err)
	}

	coll.Stop()
	cancel()
	log.Info("Shutdown complete")
}
