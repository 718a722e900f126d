package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bbrks/ocado-ha/internal/config"
	"github.com/bbrks/ocado-ha/internal/connectors"
	gmailconnector "github.com/bbrks/ocado-ha/internal/connectors/gmail"
	imapconnector "github.com/bbrks/ocado-ha/internal/connectors/imap"
	"github.com/bbrks/ocado-ha/internal/logging"
	"github.com/bbrks/ocado-ha/internal/pipeline"
	"github.com/bbrks/ocado-ha/internal/storage"
	"github.com/bbrks/ocado-ha/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	must(err)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	mailbox, err := makeMailbox(cfg)
	must(err)

	runner := pipeline.NewRunner(cfg, mailbox, db, logging.New("runner"))
	svc := watcher.NewService(runner, cfg, logging.New("watcher"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func makeMailbox(cfg config.Config) (connectors.Mailbox, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
