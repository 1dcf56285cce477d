package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"polecheck/internal/config"
	"polecheck/internal/listener"
	"polecheck/internal/storage"
	"polecheck/internal/sweeper"
)

func main() {
	cfg, err := config.Load()
	must(err)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Mail artifacts share the processed directory, so expire them here too.
	go func() { _ = sweeper.New(db, cfg).Run(ctx) }()

	fmt.Printf("mail listener started provider=%s label=%s interval=%ds\n",
		cfg.MailListenerProvider, cfg.MailListenerLabel, cfg.MailListenerIntervalSec)
	must(listener.NewService(db, cfg).Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
