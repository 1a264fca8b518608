// SPDX-License-Identifier: AGPL-3.0-only
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/netwebdave/autodavesave/internal/config"
	"github.com/netwebdave/autodavesave/internal/dispatch"
	"github.com/netwebdave/autodavesave/internal/logging"
	"github.com/netwebdave/autodavesave/internal/loop"
	"github.com/netwebdave/autodavesave/internal/plugin"
	"github.com/netwebdave/autodavesave/internal/server"
	"github.com/netwebdave/autodavesave/internal/timer"
)

var (
	// buildVersion is set at build time via -ldflags "-X main.buildVersion=<version>"
	buildVersion   = "dev"
	workDir        = flag.String("work-dir", "", "Working directory for logs (default: ~/.autodavesave)")
	address        = flag.String("address", "", "The address to bind the MCP server to")
	port           = flag.Int("port", 0, "The port to bind the MCP server to")
	transport      = flag.String("transport", "", "Transport mode: sse or stdio")
	logLevel       = flag.String("log-level", "", "Logging level: debug, info, warn, error, fatal")
	hostAddress    = flag.String("host-address", "", "Address of the editor command endpoint")
	hostPort       = flag.Int("host-port", 0, "Port of the editor command endpoint")
	saveAllCommand = flag.Int("save-all-command", 0, "Editor command id posted on each autosave (default: 41007)")
	showVersion    = flag.Bool("version", false, "Show version information and exit")
)

func main() {
	flag.Parse()

	cfg := loadConfig()

	if buildVersion != "" {
		cfg.Server.Version = buildVersion
	}

	if *showVersion {
		log.Printf("%s version %s", cfg.Server.Name, cfg.Server.Version)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := createApp(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	waitForSignal(cancel, app)
}

// loadConfig loads configuration from environment and command line flags
func loadConfig() *config.Config {
	cfg := config.DefaultConfig()

	config.FromEnv(cfg)

	applyCommandLineFlagsToConfig(cfg)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	return cfg
}

// applyCommandLineFlagsToConfig applies command line flags to the configuration
func applyCommandLineFlagsToConfig(cfg *config.Config) {
	if *address != "" {
		cfg.Server.Address = *address
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *transport != "" {
		cfg.Server.TransportMode = *transport
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *hostAddress != "" {
		cfg.Host.Address = *hostAddress
	}
	if *hostPort != 0 {
		cfg.Host.Port = *hostPort
	}
	if *saveAllCommand != 0 {
		cfg.Host.SaveAllCommand = *saveAllCommand
	}

	// stdout carries JSON-RPC in stdio mode, so logs go to the work dir
	if cfg.Server.TransportMode == "stdio" && cfg.Logging.FilePath == "" {
		wd := *workDir
		if wd == "" {
			home := os.Getenv("HOME")
			if home == "" {
				home, _ = os.Getwd()
			}
			wd = filepath.Join(home, ".autodavesave")
		}
		_ = os.MkdirAll(wd, 0o755)
		cfg.Logging.FilePath = filepath.Join(wd, "autodavesave.log")
	}
}

// newLogger builds the process logger from cfg
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level := logging.ParseLevel(cfg.Logging.Level)
	if cfg.Logging.FilePath != "" {
		logger, err := logging.FileLogger(cfg.Logging.FilePath, level)
		if err != nil {
			return nil, fmt.Errorf("failed to create file logger: %w", err)
		}
		return logger, nil
	}
	return logging.New(logging.Options{Level: level}), nil
}

// Application represents the running application
type Application struct {
	config     *config.Config
	loop       *loop.Loop
	cron       *cron.Cron
	timers     timer.Factory
	dispatcher *dispatch.HTTPDispatcher
	host       *server.Host
	plugin     *plugin.Plugin
	server     *server.MCPServer
	logger     *logging.Logger
}

// createApp creates a new application instance
func createApp(cfg *config.Config) (*Application, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	logging.SetDefaultLogger(logger)

	l := loop.New(64, logger)
	c := timer.NewCron(logger)
	dispatcher := dispatch.NewHTTPDispatcher(cfg.Host, logger)

	app := &Application{
		config:     cfg,
		loop:       l,
		cron:       c,
		timers:     timer.NewCronFactory(c, l.Post, logger),
		dispatcher: dispatcher,
		host:       server.NewHost(dispatcher, logger),
		logger:     logger,
	}

	return app, nil
}

// Start starts the application
func (a *Application) Start(ctx context.Context) error {
	if err := a.loadPlugin(ctx); err != nil {
		return err
	}

	mcpServer, err := server.NewMCPServer(a.config, a.plugin, a.host, a.loop)
	if err != nil {
		return err
	}
	a.server = mcpServer

	if err := a.server.Start(ctx); err != nil {
		return err
	}
	a.logger.Infof("MCP server started")

	// The control surface is up, so the menu is complete from here on
	return a.loop.Do(ctx, a.plugin.OnHostReady)
}

// loadPlugin starts the event loop, timers and dispatcher, then loads the
// plugin on the loop
func (a *Application) loadPlugin(ctx context.Context) error {
	// The loop outlives ctx so Stop can still unload on it
	go func() {
		if err := a.loop.Run(context.Background()); err != nil {
			a.logger.Errorf("Event loop stopped: %v", err)
		}
	}()
	a.cron.Start()
	a.dispatcher.Start(ctx)

	err := a.loop.Do(ctx, func() {
		a.plugin = plugin.Load(a.host, plugin.Options{
			Timers:    a.timers,
			Logger:    a.logger,
			CommandID: a.config.Host.SaveAllCommand,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to load plugin: %w", err)
	}
	a.logger.Infof("Plugin %s loaded", a.plugin.Name())
	return nil
}

// Stop stops the application
func (a *Application) Stop() error {
	if a.server != nil {
		if err := a.server.Stop(); err != nil {
			a.logger.Errorf("Error stopping MCP server: %v", err)
		}
		a.logger.Infof("MCP server stopped")
	}

	return a.unloadPlugin()
}

// unloadPlugin unloads the plugin on the loop and stops the timers,
// dispatcher and loop
func (a *Application) unloadPlugin() error {
	var err error
	if a.plugin != nil {
		err = a.loop.Do(context.Background(), a.plugin.Unload)
	}

	<-a.cron.Stop().Done()
	a.loop.Close()
	if cerr := a.dispatcher.Close(); cerr != nil && err == nil {
		err = cerr
	}
	a.logger.Infof("Plugin unloaded")
	return err
}

// waitForSignal waits for termination signals and performs cleanup
func waitForSignal(cancel context.CancelFunc, app *Application) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	<-signalCh
	app.logger.Infof("Received termination signal, shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	shutdownDone := make(chan struct{})
	go func() {
		if err := app.Stop(); err != nil {
			app.logger.Errorf("Error during shutdown: %v", err)
		}
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		app.logger.Infof("Graceful shutdown completed")
	case <-shutdownCtx.Done():
		app.logger.Warnf("Shutdown timed out")
	}

	cancel()
	_ = app.logger.Close()
}
