package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/storefront/internal/server"
	"github.com/shashiranjanraj/storefront/pkg/auth"
	"github.com/shashiranjanraj/storefront/pkg/queue"
)

var (
	queueWorkersFlag int
	tokenUserFlag    string
	tokenRoleFlag    string
	tokenTTLFlag     time.Duration
)

// storefront queue:work
var queueWorkCmd = &cobra.Command{
	Use:   "queue:work",
	Short: "Start the queue workers without the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := server.Boot()
		if err != nil {
			return err
		}
		defer rt.Close()

		workers := queueWorkersFlag
		if workers < 1 {
			workers = 5
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Queue worker started (%d workers). Press Ctrl+C to stop.\n", workers)
		queue.StartWorkers(ctx, workers)

		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		n, err := queue.Shutdown(drainCtx)
		fmt.Fprintf(out, "Queue worker stopped (%d buffered jobs drained).\n", n)
		return err
	},
}

// storefront auth:token
var authTokenCmd = &cobra.Command{
	Use:   "auth:token",
	Short: "Sign a bearer token for local testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch tokenRoleFlag {
		case auth.RoleAdmin, auth.RoleCustomer:
		default:
			return fmt.Errorf("unknown role %q", tokenRoleFlag)
		}
		token, err := auth.GenerateToken(tokenUserFlag, tokenRoleFlag, tokenTTLFlag)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	queueWorkCmd.Flags().IntVarP(&queueWorkersFlag, "workers", "w", 5, "Number of concurrent workers")

	authTokenCmd.Flags().StringVar(&tokenUserFlag, "user", "", "User id to put in the token")
	authTokenCmd.Flags().StringVar(&tokenRoleFlag, "role", auth.RoleCustomer, "Role: customer or admin")
	authTokenCmd.Flags().DurationVar(&tokenTTLFlag, "ttl", 24*time.Hour, "Token lifetime")
	_ = authTokenCmd.MarkFlagRequired("user")
}
