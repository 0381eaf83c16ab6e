package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"whoami/config"

	"github.com/spf13/cobra"
)

const releaseVersion = "1.0.0"

func main() {
	config.LoadDotEnv(".env", "../.env")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &config.Config{}
	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		log.Printf("ERROR: %v", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "whoami",
		Short:         "Backend for the Who Am I? character guessing game.",
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Resolve(cmd.Flags(), configFile); err != nil {
				return err
			}
			return cfg.Validate()
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVarP(&configFile, "config", "c", os.Getenv(config.EnvPrefix+"_CONFIG"), "path to a yaml, toml or json config file (env: WHOAMI_CONFIG)")
	config.RegisterFlags(fs, cfg)

	cmd.AddCommand(newServeCmd(cfg), newSeedCmd(cfg))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("whoami v{{.Version}}\n")

	return cmd
}
