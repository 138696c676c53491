package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/chit-chat/internal/config"
	"github.com/omochice/chit-chat/internal/logging"
	"github.com/omochice/chit-chat/internal/server"
	"github.com/omochice/chit-chat/internal/store"
	"github.com/omochice/chit-chat/internal/store/memory"
	"github.com/omochice/chit-chat/internal/store/mongo"
	"github.com/omochice/chit-chat/internal/store/sqlite"
)

var (
	cfgPath   string
	addr      string
	storeKind string
)

var rootCmd = &cobra.Command{
	Use:          "chitchat-server",
	Short:        "Reference chat server with /ws and /history",
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", config.DefaultPath, "Config file path")
	rootCmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	rootCmd.Flags().StringVar(&storeKind, "store", "", "Message store: memory, mongo or sqlite (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if storeKind != "" {
		cfg.Server.Store = storeKind
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Server)
	if err != nil {
		return err
	}
	logger.Info("store ready", zap.String("store", cfg.Server.Store))

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		_ = st.Close(context.Background())
		return fmt.Errorf("failed to start server: %w", err)
	}

	srv := server.New(server.Options{
		Store:        st,
		HistoryLimit: cfg.Server.HistoryLimit,
		SendQueue:    cfg.Server.SendQueue,
		Logger:       logger.Named("server"),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, ln)
	})
	g.Go(func() error {
		reportClients(gctx, srv.Hub(), logger.Named("server"))
		return nil
	})

	err = g.Wait()
	// Serve has returned, so no handler still uses the store.
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if cerr := st.Close(closeCtx); cerr != nil {
		logger.Warn("store close failed", zap.Error(cerr))
	}
	return err
}

const reportInterval = time.Minute

// reportClients logs the number of connected clients until ctx is done.
func reportClients(ctx context.Context, hub *server.Hub, logger *zap.Logger) {
	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("clients connected", zap.Int("count", hub.ClientCount()))
		}
	}
}

func openStore(ctx context.Context, cfg config.ServerConfig) (store.Store, error) {
	switch cfg.Store {
	case store.KindMongo:
		s, err := mongo.Open(ctx, mongo.Config{URI: cfg.MongoURI})
		if err != nil {
			return nil, err
		}
		return s, nil
	case store.KindSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return memory.New(), nil
	}
}
