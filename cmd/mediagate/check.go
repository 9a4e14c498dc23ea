package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"mediagate/internal/config"
	"mediagate/internal/service"

	"github.com/spf13/cobra"
)

// errNoSharedStore is returned when check-limit would only see a private
// in-memory window that every run starts empty.
var errNoSharedStore = errors.New("check-limit needs a shared store: set REDIS_ADDR or redis.addr")

var checkClient string

var checkLimitCmd = &cobra.Command{
	Use:   "check-limit",
	Short: "Record one request for a client against the configured store and print the decision",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		return checkLimit(ctx, cfg, checkClient, cmd.OutOrStdout())
	},
}

func checkLimit(ctx context.Context, cfg config.Config, client string, out io.Writer) error {
	if cfg.RedisAddr == "" {
		return errNoSharedStore
	}
	store, _, closeStore, err := storeFor(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	l := service.NewLimiter(store, service.Policy{WindowMs: cfg.RateLimitWindowMs, MaxRequests: cfg.RateLimitMax})
	d, err := l.CheckAndRecord(ctx, client)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"client":            client,
		"allowed":           d.Allowed,
		"retryAfterSeconds": d.RetryAfterSeconds,
		"limit":             d.Limit,
		"remaining":         d.Remaining,
		"resetAt":           d.ResetAt.UTC(),
	})
}

func init() {
	checkLimitCmd.Flags().StringVar(&checkClient, "client", service.UnknownClient, "client identifier, usually an IP address")
}
