// upsctl is the operator CLI for the upscaler ledger: VIP grants, usage
// resets, and usage statistics, run against the same backend the bot uses.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/silviaroy/upscalerd/internal/config"
	"github.com/silviaroy/upscalerd/internal/ledger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "upsctl",
		Short:         "Administer the upscaler bot's usage ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newGrantVIPCmd(),
		newRevokeVIPCmd(),
		newResetUsageCmd(),
		newStatsCmd(),
	)
	return root
}

func newGrantVIPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant-vip <user-id>",
		Short: "Grant VIP status to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd.Context(), func(ctx context.Context, l *ledger.Ledger) error {
				found, err := l.SetVIP(ctx, args[0], true)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("user %s not found", args[0])
				}
				fmt.Printf("user %s is now a VIP member\n", args[0])
				return nil
			})
		},
	}
}

func newRevokeVIPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke-vip <user-id>",
		Short: "Revoke a user's VIP status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd.Context(), func(ctx context.Context, l *ledger.Ledger) error {
				found, err := l.SetVIP(ctx, args[0], false)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("user %s not found", args[0])
				}
				fmt.Printf("user %s is no longer a VIP member\n", args[0])
				return nil
			})
		},
	}
}

func newResetUsageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-usage <user-id>",
		Short: "Reset a user's usage counter to zero",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd.Context(), func(ctx context.Context, l *ledger.Ledger) error {
				found, err := l.ResetUsage(ctx, args[0])
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("user %s not found", args[0])
				}
				fmt.Printf("usage counter for user %s reset\n", args[0])
				return nil
			})
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate usage statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd.Context(), func(ctx context.Context, l *ledger.Ledger) error {
				stats, err := l.Stats(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("total users:       %d\n", stats.TotalUsers)
				fmt.Printf("vip users:         %d\n", stats.VIPUsers)
				fmt.Printf("total conversions: %d\n", stats.TotalUsage)
				fmt.Printf("active (7 days):   %d\n", stats.ActiveUsers)
				return nil
			})
		},
	}
}

func withLedger(ctx context.Context, fn func(context.Context, *ledger.Ledger) error) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	return fn(ctx, ledger.New(store, cfg.AdminID, cfg.MaxFreeUses))
}

func openStore(ctx context.Context, cfg *config.Config) (ledger.Store, func(), error) {
	switch cfg.LedgerBackend {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("pinging database: %w", err)
		}
		store := ledger.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrating database: %w", err)
		}
		return store, pool.Close, nil

	case "redis":
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing redis url: %w", err)
		}
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return ledger.NewRedisStore(client), func() { _ = client.Close() }, nil

	case "memory":
		return nil, nil, fmt.Errorf("the memory backend has no shared state to administer")

	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}
