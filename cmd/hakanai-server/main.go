// Command hakanai-server runs the HTTP API and the static browser client
// behind it, backed by Redis for secret and token storage.
package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/teal-finance/hakanai/internal/config"
	"github.com/teal-finance/hakanai/internal/httpapi"
	"github.com/teal-finance/hakanai/internal/notifier"
	"github.com/teal-finance/hakanai/internal/restriction"
	"github.com/teal-finance/hakanai/internal/store"
	"github.com/teal-finance/hakanai/internal/token"
	"github.com/teal-finance/hakanai/internal/webui"
	"github.com/teal-finance/hakanai/metrics"
	"github.com/teal-finance/hakanai/pprof"
	"github.com/teal-finance/hakanai/reserr"
)

func main() {
	cfg := config.Load()

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	defer rdb.Close()

	secretStore := store.NewRedisStore(rdb)
	authorizer := token.NewAuthorizer(token.NewKVStore(secretStore.AsKV("")), cfg.AnonymousUploadLimit)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if cfg.AdminToken != "" {
		if err := authorizer.Bootstrap(ctx, cfg.AdminToken, 0); err != nil {
			cancel()
			log.Fatalf("hakanai-server: bootstrap admin token: %v", err)
		}
	}
	cancel()

	adminPolicy, err := restriction.LoadAdminPolicy(cfg.AdminPolicyFiles)
	if err != nil {
		log.Fatalf("hakanai-server: load admin policy: %v", err)
	}

	httpClient := &http.Client{Timeout: 5 * time.Second}
	notifyCtx, stopNotify := context.WithCancel(context.Background())
	defer stopNotify()
	queue := notifier.NewAsyncQueue(notifyCtx, notifier.New(cfg.WebhookURL, cfg.WebhookToken, httpClient))

	m := metrics.New()
	domain := metrics.NewDomain()
	resErr := reserr.New("")

	srv := &httpapi.Server{
		Store:           secretStore,
		Attempts:        secretStore,
		Authorizer:      authorizer,
		Notifier:        queue,
		Metrics:         m,
		Domain:          domain,
		AdminPolicy:     adminPolicy,
		MaxTTL:          cfg.MaxTTL,
		TrustedProxies:  restriction.TrustedIPs{Prefixes: cfg.TrustedProxies},
		TrustedIPHeader: cfg.TrustedIPHeader,
		CountryHeader:   cfg.CountryHeader,
		ASNHeader:       cfg.ASNHeader,
		AdminAPIEnabled: cfg.AdminAPIEnabled,
		ResErr:          resErr,
	}

	r := chi.NewRouter()
	r.Mount("/", srv.Router(cfg.CORSAllowedOrigins, cfg.DevMode))
	webui.Mount(r, "webui/dist", resErr)
	r.NotFound(webui.NotFoundHandler(resErr))

	pprof.StartServer(cfg.PprofPort)
	m.StartServer(cfg.MetricsPort)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ConnState:         m.ConnStateCounter(cfg.DevMode),
		ErrorLog:          log.Default(),
	}

	log.Print("hakanai-server: listening on ", cfg.ListenAddr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
