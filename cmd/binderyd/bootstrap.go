package main

import (
	"log/slog"

	"bindery/internal/artifacts"
	"bindery/internal/books"
	"bindery/internal/config"
	"bindery/internal/daemon"
	"bindery/internal/notifications"
	"bindery/internal/orchestrator"
	"bindery/internal/orders"
	"bindery/internal/services/lulu"
)

// bootstrap wires the stores, vendor client, and orchestrator into a daemon.
// The returned cleanup closes both database handles.
func bootstrap(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, func(), error) {
	orderStore, err := orders.Open(cfg)
	if err != nil {
		return nil, nil, err
	}

	bookStore, err := books.Open(cfg)
	if err != nil {
		orderStore.Close()
		return nil, nil, err
	}

	closeStores := func() {
		bookStore.Close()
		orderStore.Close()
	}

	documents, err := artifacts.NewFileStore(cfg)
	if err != nil {
		closeStores()
		return nil, nil, err
	}

	vendor := lulu.NewClient(cfg, logger)
	notifier := notifications.NewService(cfg)
	orch := orchestrator.New(cfg, orderStore, bookStore, documents, vendor, notifier, logger)

	d, err := daemon.New(cfg, orderStore, orch, logger)
	if err != nil {
		closeStores()
		return nil, nil, err
	}
	return d, closeStores, nil
}
