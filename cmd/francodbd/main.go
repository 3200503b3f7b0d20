// Command francodbd is the francodb server process: it loads a
// configuration file, opens the engine instance rooted at its data
// directory, and serves the framed wire protocol spec.md §6 describes
// on the configured TCP port.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/francodb/francodb/pkg/config"
	"github.com/francodb/francodb/pkg/engine"
	"github.com/francodb/francodb/pkg/server"
)

func main() {
	configPath := flag.String("config", "francodb.conf", "path to the server configuration file")
	dev := flag.Bool("dev", false, "use a human-readable development logger instead of JSON")
	flag.Parse()

	logger, err := newLogger(*dev)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("loading configuration", zap.Error(err))
	}

	eng, err := engine.New(cfg, logger.Named("engine"))
	if err != nil {
		logger.Fatal("opening engine", zap.Error(err))
	}
	defer eng.Close()

	handler := newConnHandler(eng, logger.Named("conn"))

	srvCfg := server.Config{
		Address:     fmt.Sprintf(":%d", cfg.Port),
		MetricsAddr: ":9701",
	}
	srv, err := server.New(srvCfg, handler, logger.Named("server"))
	if err != nil {
		logger.Fatal("building server", zap.Error(err))
	}
	handler.srv = srv

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("francodb starting", zap.Int("port", cfg.Port), zap.String("data_directory", cfg.DataDirectory))
	if err := srv.Serve(ctx); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
