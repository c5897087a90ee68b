// twin-qwikbasket serves the QwikBasket admin catalog: categories, products,
// orders, offers and customers over a JSON API, with an admin control plane
// for resets, fault injection and time travel.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"github.com/wondertwin-ai/twin-qwikbasket/internal/app"
	"github.com/wondertwin-ai/twin-qwikbasket/internal/config"
)

func main() {
	cfg, err := config.Load("twin-qwikbasket", os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	a, err := app.Build(cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	policy, transitions := cfg.CatalogPolicies()
	a.Twin.Logger.Info("twin-qwikbasket ready",
		"port", cfg.Port,
		"seed", cfg.Seed,
		"seed_file", cfg.SeedFile,
		"webhook_url", cfg.WebhookURL,
		"delete_policy", policy,
		"transitions", transitions,
		"require_session", cfg.RequireSession,
	)

	if err := a.Twin.Serve(context.Background()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
