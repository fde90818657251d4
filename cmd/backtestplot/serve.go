package main

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"backtestplot/internal/cache"
	"backtestplot/internal/openai"
	"backtestplot/internal/server"
	"backtestplot/internal/telegram"
)

func init() {
	rootCmd.AddCommand(newServeCmd())
}

func newCache() (cache.Cache, func()) {
	if cfg.RedisAddr == "" {
		log.Info().Dur("ttl", cfg.CacheTTL).Msg("cache: in-memory")
		return cache.NewMemory(cfg.CacheTTL), func() {}
	}
	r := cache.NewRedis(cfg.RedisAddr, cfg.RedisDB, cfg.CacheTTL)
	log.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.CacheTTL).Msg("cache: redis")
	return r, func() { _ = r.Close() }
}

func newServeCmd() *cobra.Command {
	var sf sizeFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve figures, previews and stored runs over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			size, err := sf.size()
			if err != nil {
				return err
			}
			store, closeDB, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeDB()
			c, closeCache := newCache()
			defer closeCache()

			var limiter *rate.Limiter
			if cfg.RateLimit > 0 {
				limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
			}
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			srv := server.New(store, c, size, limiter, reg)
			router := srv.Router()

			if cfg.TelegramToken != "" {
				api, err := telegram.NewAPI(cfg.TelegramToken, cfg.TelegramWebhookURL)
				if err != nil {
					return fmt.Errorf("telegram: %w", err)
				}
				var commenter telegram.Commenter
				if cfg.OpenAIKey != "" {
					commenter = openai.NewNarrator(cfg.OpenAIKey, cfg.OpenAIModel)
				}
				h := telegram.NewHandlers(telegram.NewPublisher(api, size), store, commenter)
				router.HandleFunc("/telegram/webhook", telegram.WebhookHandler(h)).Methods(http.MethodPost)
				log.Info().Str("webhook", cfg.TelegramWebhookURL).Msg("telegram: bot initialized")
			}

			addr := ":" + cfg.Port
			log.Info().Str("addr", addr).Str("size", size.String()).Msg("http: listening")
			return server.ListenAndServe(ctx, addr, router)
		},
	}
	sf.register(cmd)
	return cmd
}
