package main

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/potlucklabs/potluck"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCommand() *cobra.Command {
	var (
		listen    string
		advertise string
		store     string
		peers     []string
		identity  string
		verbose   bool
	)
	cmd := &cobra.Command{
		Use:           "potluck",
		Short:         "a peer-to-peer recipe sharing node",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			opts := []potluck.Option{
				potluck.WithLogger(logger),
				potluck.WithAdvertiseAddr(advertise),
			}
			if identity != "" {
				opts = append(opts, potluck.WithIdentity(potluck.PeerID(identity)))
			}
			node, err := potluck.Open(store, listen, peers, opts...)
			if err != nil {
				return err
			}
			logger.Info("node started",
				zap.String("identity", string(node.Identity())),
				zap.String("listen", listen),
			)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			runREPL(ctx, node, bufio.NewScanner(cmd.InOrStdin()), cmd.OutOrStdout())
			return node.Close()
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":4001", "address the gossip channel listens on")
	cmd.Flags().StringVar(&advertise, "advertise", "", "address peers dial back (defaults to --listen)")
	cmd.Flags().StringVar(&store, "store", "recipes.json", "path of the recipe store document")
	cmd.Flags().StringSliceVar(&peers, "peer", nil, "bootstrap peer address (repeatable)")
	cmd.Flags().StringVar(&identity, "identity", "", "node identity (generated when unset)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
