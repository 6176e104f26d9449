package main

import (
	"context"
	"fmt"

	"github.com/mschirtzinger/offsync/internal/offline/auth"
	"github.com/mschirtzinger/offsync/internal/offline/db"
	"github.com/mschirtzinger/offsync/internal/offline/remote"
	offsync "github.com/mschirtzinger/offsync/internal/offline/sync"
)

// openStore opens and migrates the local database.
func openStore(ctx context.Context) (*db.DB, error) {
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := store.InitSchemaContext(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// loadTokens seeds a token source from the token file.
func loadTokens() (*auth.TokenSource, error) {
	token, err := auth.ReadTokenFile(cfg.TokenFile)
	if err != nil {
		return nil, err
	}
	return auth.NewTokenSource(token), nil
}

func newClient(creds remote.CredentialSource) (*remote.Client, error) {
	rc := remote.DefaultConfig()
	rc.BaseURL = cfg.API.BaseURL
	rc.Timeout = cfg.API.Timeout
	rc.RateLimit = cfg.API.RateLimit
	rc.RateBurst = cfg.API.RateBurst
	return remote.New(rc, creds)
}

func newReconciler(store *db.DB, tokens *auth.TokenSource, notifier offsync.Notifier) (offsync.Reconciler, error) {
	client, err := newClient(tokens)
	if err != nil {
		return nil, err
	}
	return offsync.New(store, client, tokens, offsync.Config{
		Notifier: notifier,
		Logger:   sink.New("sync"),
	}), nil
}
