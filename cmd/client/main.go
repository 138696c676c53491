package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omochice/chit-chat/internal/chat"
	"github.com/omochice/chit-chat/internal/client"
	"github.com/omochice/chit-chat/internal/config"
	"github.com/omochice/chit-chat/internal/history"
	"github.com/omochice/chit-chat/internal/logging"
	"github.com/omochice/chit-chat/internal/transport"
)

var (
	cfgPath       string
	username      string
	room          string
	recipient     string
	wsURL         string
	httpURL       string
	transportName string
)

var rootCmd = &cobra.Command{
	Use:   "chitchat",
	Short: "Terminal client for the chit-chat server",
	Long: `Joins a room as the given user and prints the room transcript.

Every line read from stdin is sent to the room. Commands:
  /to <name>    send following lines privately to <name>
  /to           go back to the room
  /room <room>  leave and join another room
  /quit         exit`,
	SilenceUsage: true,
	RunE:         runClient,
}

func init() {
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", config.DefaultPath, "Config file path")
	rootCmd.Flags().StringVarP(&username, "username", "u", "", "Display name (required)")
	rootCmd.Flags().StringVarP(&room, "room", "r", string(chat.DefaultRoom), "Room to join")
	rootCmd.Flags().StringVar(&recipient, "recipient", "", "Send privately to this user")
	rootCmd.Flags().StringVar(&wsURL, "ws-url", "", "Websocket base URL (overrides config)")
	rootCmd.Flags().StringVar(&httpURL, "http-url", "", "History base URL (overrides config)")
	rootCmd.Flags().StringVar(&transportName, "transport", "", "Websocket library: gorilla, gobwas or nhooyr")
	_ = rootCmd.MarkFlagRequired("username")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runClient(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if wsURL != "" {
		cfg.Client.WSURL = wsURL
	}
	if httpURL != "" {
		cfg.Client.HTTPURL = httpURL
	}
	if transportName != "" {
		cfg.Client.Transport = transportName
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	key, err := chat.NewKey(username, room)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	dialer, err := client.NewDialer(cfg.Client.Transport, transport.Options{
		HandshakeTimeout: cfg.GetHandshakeTimeout(),
	})
	if err != nil {
		return err
	}

	out := newPrinter(cmd.OutOrStdout())
	c := client.New(client.Options{
		Manager: client.NewManager(dialer, cfg.Client.WSURL, cfg.Client.EventBuffer, logger.Named("client")),
		History: history.NewLoader(cfg.Client.HTTPURL,
			history.WithTimeout(cfg.GetHistoryTimeout()),
			history.WithLogger(logger.Named("history")),
		),
		TypingInterval: cfg.GetTypingInterval(),
		Listener:       out.listener(),
		Logger:         logger.Named("client"),
	})
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting",
		zap.Stringer("key", key),
		zap.String("ws_url", cfg.Client.WSURL),
		zap.String("transport", cfg.Client.Transport),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "joining %s as %s\n", key.Room(), key.Identity())

	r := newREPL(c, out, key, recipient)
	return r.run(ctx, cmd.InOrStdin())
}
