package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	cli "go.dedis.ch/mpcsum/cmd"
	"go.dedis.ch/mpcsum/types"
)

func main() {
	command := &cobra.Command{
		Use:           "mpcsum",
		Short:         "Secure summation of private values with Shamir secret sharing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addPartyCmd(command)
	addSendCmd(command)

	err := command.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// addPartyCmd starts a party of the summation
func addPartyCmd(command *cobra.Command) {
	var (
		configPath   string
		threshold    int
		prime        uint64
		secret       uint64
		roundTimeout time.Duration
		metricsAddr  string
		interactive  bool
		logLevel     string
	)

	partyCmd := &cobra.Command{
		Use:   "party <current_party_id> <id>:<port>...",
		Short: "Start a party",
		Long: "Start a party listening on the port listed for its id. Every party of the run, " +
			"this one included, is listed as <id>:<port>.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := cli.DefaultConfig()
			if configPath != "" {
				var err error
				conf, err = cli.LoadConfig(configPath)
				if err != nil {
					return err
				}
			}

			id, err := types.ParsePartyID(args[0])
			if err != nil {
				return xerrors.Errorf("%v: %w", err, cli.ErrConfig)
			}
			conf.PartyID = id
			if len(args) > 1 {
				conf.Parties = args[1:]
			}

			flags := cmd.Flags()
			if flags.Changed("threshold") {
				conf.Threshold = &threshold
			}
			if flags.Changed("prime") {
				conf.Prime = prime
			}
			if flags.Changed("secret") {
				conf.Secret = &secret
			}
			if flags.Changed("round-timeout") {
				conf.RoundTimeout = roundTimeout
			}
			if flags.Changed("metrics-addr") {
				conf.MetricsAddr = metricsAddr
			}
			if flags.Changed("interactive") {
				conf.Interactive = interactive
			}
			if flags.Changed("log-level") {
				conf.LogLevel = logLevel
			}

			return cli.StartParty(conf)
		},
	}

	flags := partyCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "Read the configuration from a yaml file")
	flags.IntVarP(&threshold, "threshold", "t", 0, "Degree of the sharing polynomials, default (n-1)/2")
	flags.Uint64Var(&prime, "prime", 0, "Order of the field")
	flags.Uint64Var(&secret, "secret", 0, "Use this secret instead of a random one")
	flags.DurationVar(&roundTimeout, "round-timeout", 0, "Wait at most this long for the other parties")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Serve metrics and status on this address")
	flags.BoolVarP(&interactive, "interactive", "i", false, "Drive the party from a prompt")
	flags.StringVar(&logLevel, "log-level", "info", "Log level")

	command.AddCommand(partyCmd)
}

// addSendCmd writes a command to a running party
func addSendCmd(command *cobra.Command) {
	var timeout time.Duration

	sendCmd := &cobra.Command{
		Use:   "send <addr> <COMMAND> [args...]",
		Short: "Send a command to a party",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.SendCommand(args[0], args[1], args[2:], timeout)
		},
	}

	sendCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Dial and write timeout")

	command.AddCommand(sendCmd)
}
