package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

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

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.Provider, "imap|gmail")
		_ = fs.Parse(os.Args[2:])
		mailbox, err := makeMailbox(cfg, *provider)
		must(err)
		runner := pipeline.NewRunner(cfg, mailbox, db, logging.New("runner"))
		snap, err := runner.RunCycle()
		if errors.Is(err, pipeline.ErrUnchanged) {
			fmt.Println("mailbox unchanged, previous snapshot still current")
			return
		}
		must(err)
		fmt.Printf("cycle done messages=%d live=%d next=%s upcoming=%s\n",
			len(snap.MessageIDs), len(snap.LiveOrderNumbers), snap.Next.OrderNumber, snap.Upcoming.OrderNumber)
	case "watch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.Provider, "imap|gmail")
		_ = fs.Parse(os.Args[2:])
		mailbox, err := makeMailbox(cfg, *provider)
		must(err)
		runner := pipeline.NewRunner(cfg, mailbox, db, logging.New("runner"))
		svc := watcher.NewService(runner, cfg, logging.New("watcher"))
		must(svc.Run(context.Background()))
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.Provider, "imap|gmail")
		_ = fs.Parse(os.Args[2:])
		fetched, err := fetchAndArchive(cfg, db, *provider)
		must(err)
		fmt.Printf("mail fetch done provider=%s archived=%d\n", *provider, fetched)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", filepath.Join(cfg.OutputDir, "snapshot.xlsx"), "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		snap, err := db.LoadLastSnapshot()
		must(err)
		if snap == nil {
			must(fmt.Errorf("no snapshot persisted yet, run a cycle first"))
		}
		must(pipeline.SnapshotToXLSX(snap, *out))
		fmt.Printf("exported %d orders to %s\n", len(snap.Orders), *out)
	default:
		usage()
		os.Exit(1)
	}
}

// fetchAndArchive pulls every matching message and stores the raw bytes
// without running the pipeline. Useful for building a local corpus.
func fetchAndArchive(cfg config.Config, db *storage.DB, provider string) (int, error) {
	mailbox, err := makeMailbox(cfg, provider)
	if err != nil {
		return 0, err
	}
	session, err := mailbox.Open()
	if err != nil {
		return 0, err
	}
	defer session.Close()

	ids, err := session.Search(connectors.SearchQuery{
		Since:            time.Now().AddDate(0, 0, -cfg.LookbackDays),
		From:             cfg.RetailerAddress,
		ExcludedSubjects: pipeline.ExcludedSubjects(),
	})
	if err != nil {
		return 0, err
	}

	store := connectors.NewMailStore(cfg.RawMailDir)
	archived := 0
	for _, id := range ids {
		raw, err := session.Fetch(id)
		if err != nil {
			return archived, err
		}
		path, hash, err := store.Archive(raw)
		if err != nil {
			return archived, err
		}
		if err := db.UpsertEmail(id, "", "", "", hash, path); err != nil {
			return archived, err
		}
		archived++
	}
	return archived, nil
}

func makeMailbox(cfg config.Config, provider string) (connectors.Mailbox, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func usage() {
	fmt.Println("usage: ocado <command>")
	fmt.Println("commands:")
	fmt.Println("  run --provider=imap|gmail")
	fmt.Println("  watch --provider=imap|gmail")
	fmt.Println("  mail:fetch --provider=imap|gmail")
	fmt.Println("  export:xlsx --out=./out/snapshot.xlsx")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
