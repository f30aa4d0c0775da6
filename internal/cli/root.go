// Package cli implements the live-suhbat-client command line.
package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("LIVESUHBAT_CLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "live-suhbat-client",
		Short: "Join live-suhbat rooms from the terminal",
		Long: `live-suhbat-client joins a room on a live-suhbat server, negotiates a
WebRTC connection with every other participant and relays chat from stdin.

Examples:
  live-suhbat-client rooms
  live-suhbat-client join lobby --user alice
  live-suhbat-client history lobby --limit 20`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(v.GetString("log-level"))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.String("server", "http://localhost:3000", "server base URL")
	pf.String("log-level", "warn", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("server", pf.Lookup("server"))
	_ = v.BindPFlag("log-level", pf.Lookup("log-level"))

	root.AddCommand(newJoinCmd(v), newRoomsCmd(v), newHistoryCmd(v))
	return root
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := NewRootCmd()
	root.SilenceErrors = true
	root.SilenceUsage = true
	if err := root.ExecuteContext(ctx); err != nil {
		pterm.Error.Println(err.Error())
		cancel()
		os.Exit(1)
	}
}
