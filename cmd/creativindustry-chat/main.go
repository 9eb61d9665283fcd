package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Youssouf13001/creativindustry-chat/client"
	"github.com/Youssouf13001/creativindustry-chat/internal/config"
	"github.com/Youssouf13001/creativindustry-chat/internal/models"
	"github.com/Youssouf13001/creativindustry-chat/internal/observability"
	"github.com/Youssouf13001/creativindustry-chat/internal/protocol"
	"github.com/Youssouf13001/creativindustry-chat/internal/rest"
	"github.com/Youssouf13001/creativindustry-chat/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	sessions, err := session.NewStore(cfg.Session.DBPath)
	if err != nil {
		logger.Fatal("opening session store", zap.Error(err))
	}
	defer sessions.Close()

	sess, err := sessions.Session()
	if err != nil {
		logger.Fatal("no console session; sign in first", zap.Error(err))
	}

	channelURL, err := protocol.DeriveChannelURL(cfg.API.BaseURL, sess.SelfID, sess.Token)
	if err != nil {
		logger.Fatal("deriving channel url", zap.Error(err))
	}

	api := rest.NewClient(cfg.API.BaseURL, sess.Token, cfg.API.Timeout())
	notifier := &client.BellNotifier{Out: os.Stdout, Log: logger}

	supportStore := client.NewConversationStore(sess.SelfID, sess.DisplayName, models.RoleAdmin, logger)
	support := client.NewSupportChat(api, supportStore, notifier, channelURL,
		cfg.Reconnect.Base(), cfg.Reconnect.Max(), logger)

	teamStore := client.NewConversationStore(sess.SelfID, sess.DisplayName, models.RoleMember, logger)
	team := client.NewTeamChat(api, teamStore, notifier, cfg.Poll.Interval(), logger)

	bridge := client.NewBridge(support, supportStore, team, teamStore, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", bridge.HandleWebSocket)
	mux.HandleFunc("/api/attachment", bridge.HandleAttachment)

	httpServer := &http.Server{
		Addr:    cfg.Bridge.Addr,
		Handler: mux,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down")
		support.Close()
		team.Close()
		httpServer.Shutdown(context.Background())
	}()

	logger.Info("chat bridge listening", zap.String("addr", cfg.Bridge.Addr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("bridge server", zap.Error(err))
	}
}
