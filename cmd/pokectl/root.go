package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/birbparty/pokenest/sdk"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries what every subcommand needs.
type app struct {
	v      *viper.Viper
	out    io.Writer
	log    *logrus.Logger
	client *sdk.Client
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out, log: logrus.New()}

	rootCmd := &cobra.Command{
		Use:           "pokectl",
		Short:         "Query PokeAPI with reference expansion",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.client != nil {
				return a.client.Close()
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (yaml, json or toml)")
	flags.String("base-url", sdk.DefaultBaseURL, "PokeAPI root URL")
	flags.Duration("timeout", 10*time.Second, "Timeout for a single HTTP attempt")
	flags.Int("retries", 2, "Retries for 5xx and network errors")
	flags.Bool("no-cache", false, "Disable the in-memory response cache")
	flags.Bool("compact", false, "Print JSON without indentation")
	flags.BoolP("verbose", "v", false, "Log retries and breaker transitions to stderr")
	_ = a.v.BindPFlags(flags)

	a.v.SetEnvPrefix("POKENEST")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	a.v.AutomaticEnv()

	rootCmd.AddCommand(
		a.getCmd(),
		a.listCmd(),
		a.searchCmd(),
		a.expandCmd(),
		a.rankingsCmd(),
		a.detailCmd(),
	)
	return rootCmd
}

// setup reads the optional config file and builds the SDK client.
func (a *app) setup(cmd *cobra.Command) error {
	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	a.log.SetOutput(os.Stderr)
	a.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	a.log.SetLevel(logrus.WarnLevel)
	if a.v.GetBool("verbose") {
		a.log.SetLevel(logrus.DebugLevel)
	}

	cfg := sdk.DefaultConfig().
		WithBaseURL(a.v.GetString("base-url")).
		WithTimeout(a.v.GetDuration("timeout")).
		WithRetries(a.v.GetInt("retries")).
		WithLogger(logrus.NewEntry(a.log).WithField("component", "sdk"))
	if a.v.GetBool("no-cache") {
		cfg = cfg.WithoutCache()
	}

	client, err := sdk.NewClient(cfg)
	if err != nil {
		return err
	}
	a.client = client
	return nil
}

func (a *app) print(v interface{}) error {
	enc := json.NewEncoder(a.out)
	if !a.v.GetBool("compact") {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
