package sync_test

import (
	"context"
	"fmt"
	"log"

	"github.com/mschirtzinger/offsync/internal/offline/auth"
	"github.com/mschirtzinger/offsync/internal/offline/db"
	"github.com/mschirtzinger/offsync/internal/offline/remote"
	"github.com/mschirtzinger/offsync/internal/offline/schema"
	"github.com/mschirtzinger/offsync/internal/offline/sync"
)

// This example demonstrates a single reconciliation pass.
// Note: This is for documentation only and won't run as a test.
func ExampleNew() {
	ctx := context.Background()

	store, err := db.Open("offsync.db")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	if err := store.InitSchema(); err != nil {
		log.Fatal(err)
	}

	tokens := auth.NewTokenSource("my-token")
	client, err := remote.New(remote.Config{BaseURL: "http://localhost:3000"}, tokens)
	if err != nil {
		log.Fatal(err)
	}

	// Edits are queued locally whether or not the server is reachable
	if _, err := store.CreateLocal(ctx, &schema.Record{Name: "Azul", Players: 4}); err != nil {
		log.Fatal(err)
	}

	rec := sync.New(store, client, tokens, sync.Config{})
	report, err := rec.Reconcile(ctx)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(report)
}

// This example demonstrates pulling server copies into the local store.
func ExampleReconciler_Refresh() {
	store, err := db.Open("offsync.db")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	tokens := auth.NewTokenSource("my-token")
	client, err := remote.New(remote.Config{BaseURL: "http://localhost:3000"}, tokens)
	if err != nil {
		log.Fatal(err)
	}

	rec := sync.New(store, client, tokens, sync.Config{})

	// Records with local changes are left alone
	report, err := rec.Refresh(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%+v\n", *report)
}
