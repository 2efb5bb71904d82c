package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/internal/kernel"
	"github.com/shashiranjanraj/storefront/internal/server"
	"github.com/shashiranjanraj/storefront/pkg/router"
)

var serveWorkersFlag int

// storefront serve
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run"},
	Short:   "Start the HTTP and gRPC servers with queue workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := server.Boot()
		if err != nil {
			return err
		}
		defer rt.Close()
		return rt.Serve(ctx, serveWorkersFlag)
	},
}

// storefront route:list
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all registered named routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return err
		}
		r, err := kernel.NewRouter(kernel.NewServices(nil, nil))
		if err != nil {
			return err
		}
		return printRoutes(cmd.OutOrStdout(), r)
	},
}

// printRoutes writes the named routes as a table, sorted by path then method.
func printRoutes(out io.Writer, r *router.Router) error {
	infos := r.Routes()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No named routes registered.")
		return nil
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Path != infos[j].Path {
			return infos[i].Path < infos[j].Path
		}
		return infos[i].Method < infos[j].Method
	})

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "METHOD\tPATH\tNAME")
	fmt.Fprintln(w, "------\t----\t----")
	for _, ri := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
	}
	return w.Flush()
}

func init() {
	serveCmd.Flags().IntVarP(&serveWorkersFlag, "workers", "w", 2, "Queue workers to run in-process (0 disables)")
}
