// Package cmd implements the stablegen command line: one-shot image
// generation against a running server, and the server itself.
package cmd

import (
	"fmt"
	"log"
	"net"

	"github.com/spf13/cobra"

	"github.com/stablegen/stablegen/backend"
	"github.com/stablegen/stablegen/envconfig"
	"github.com/stablegen/stablegen/pipeline"
	"github.com/stablegen/stablegen/server"
)

// NewCLI builds the root command.
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "stablegen",
		Short:         "Latent diffusion image generator",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.AddCommand(
		generateCmd(),
		serveCmd(),
	)

	return rootCmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the stablegen server",
		Args:    cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			models, err := backend.Load(envconfig.Models())
			if err != nil {
				return err
			}

			p, err := pipeline.New(models)
			if err != nil {
				return err
			}

			host := envconfig.Host()
			ln, err := net.Listen("tcp", host.Host)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", host.Host, err)
			}

			return server.Serve(ln, p)
		},
	}

	return cmd
}
