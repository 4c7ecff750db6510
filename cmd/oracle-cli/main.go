package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ArkLabsHQ/oracle-node/internal/config"
	"github.com/ArkLabsHQ/oracle-node/internal/core/application"
	"github.com/ArkLabsHQ/oracle-node/internal/core/ports"
	"github.com/ArkLabsHQ/oracle-node/internal/infrastructure/bitcoind"
	"github.com/ArkLabsHQ/oracle-node/internal/infrastructure/charter"
	"github.com/ArkLabsHQ/oracle-node/internal/infrastructure/esplora"
	"github.com/ArkLabsHQ/oracle-node/internal/infrastructure/nostr"
	"github.com/ArkLabsHQ/oracle-node/pkg/protocol"
	"github.com/jedib0t/go-pretty/v6/table"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "oracle-cli",
	Short: "Oracle federation client",
	Long: `oracle-cli creates bounties secured by the oracle federation.
- charter: show the federation described by the charter.
- main: create the multisig address to fund with the bounty.
- bounty: ask the oracles to sign the transaction returning the funds after the locktime.
- wait: print the transactions signed by a quorum of oracles.
- ping: list the oracles that are online.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ORACLE_CLI")
	viper.AutomaticEnv()
	log.SetLevel(log.WarnLevel)
	if viper.GetBool("verbose") {
		log.SetLevel(log.DebugLevel)
	}
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logs")
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(charterCmd())
	rootCmd.AddCommand(mainCmd())
	rootCmd.AddCommand(bountyCmd())
	rootCmd.AddCommand(waitCmd())
	rootCmd.AddCommand(pingCmd())
}

func charterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "charter",
		Short: "Show the federation charter",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), false, func(ctx context.Context, client *application.ClientService) error {
				summary, err := client.Charter(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(summary.Charter)
				}

				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"Pubkey", "Address", "Fee (BTC)"})
				for _, node := range summary.Charter.Nodes {
					t.AppendRow(table.Row{node.PubKey, node.Address, node.Fee})
				}
				t.AppendFooter(table.Row{"", "Org " + summary.Charter.OrgAddress, summary.Charter.OrgFee})
				t.Render()

				fmt.Printf("number of nodes: %d\n", summary.Nodes)
				fmt.Printf("required signatures: %d\n", summary.MinSigs)
				fmt.Printf("fees: %d sats\n", summary.FeesSatoshi)
				return nil
			})
		},
	}
}

func mainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "main",
		Short: "Create the multisig address to fund with the bounty",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), false, func(ctx context.Context, client *application.ClientService) error {
				multisig, err := client.CreateMultisig(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(multisig)
				}

				fmt.Printf("client pubkey: %s\n", multisig.ClientPubKey)
				fmt.Printf("multisig address: %s\n", multisig.Address)
				fmt.Printf("redeem script: %s\n", multisig.RedeemScript)
				fmt.Printf("required signatures: %d\n", multisig.MinSigs)
				fmt.Printf("send at least %d sats, then run: oracle-cli bounty %s <locktime> <return address>\n",
					multisig.MinAmount, multisig.ClientPubKey)
				return nil
			})
		},
	}
}

func bountyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bounty <client pubkey> <locktime> <return address>",
		Short: "Ask the oracles to sign the bounty transaction",
		Long:  "The locktime is a unix timestamp in seconds or a duration from now (e.g. 24h).",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			locktime, err := parseLocktime(args[1])
			if err != nil {
				return err
			}
			return withClient(cmd.Context(), true, func(ctx context.Context, client *application.ClientService) error {
				req, err := client.RequestBounty(ctx, args[0], locktime, args[2])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(req)
				}

				fmt.Printf("bounty %s requested\n", req.MessageId)
				fmt.Printf("amount: %d sats, returned after %s\n",
					req.ReturnAmount(), time.Unix(req.Locktime, 0).Format(time.RFC3339))
				return nil
			})
		},
	}
}

func waitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wait",
		Short: "Print the transactions signed by a quorum of oracles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return withClient(ctx, true, func(ctx context.Context, client *application.ClientService) error {
				err := client.WaitFinalSignatures(ctx, func(msg protocol.FinalSignMessage) {
					if viper.GetBool("json") {
						// nolint:all
						printJSON(msg)
						return
					}
					fmt.Printf("%s: %s\n", msg.Pwtxid, msg.Transaction)
				})
				if ctx.Err() != nil {
					return nil
				}
				return err
			})
		},
	}
}

func pingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "List the oracles that are online",
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, err := cmd.Flags().GetDuration("timeout")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			return withClient(ctx, true, func(ctx context.Context, client *application.ClientService) error {
				return client.Ping(ctx, func(source, version string) {
					fmt.Printf("%s active, protocol version %s\n", source, version)
				})
			})
		},
	}
	cmd.Flags().Duration("timeout", 10*time.Second, "how long to wait for responses")
	return cmd
}

// withClient builds the client service, connecting to the relays only if
// withTransport is set.
func withClient(
	ctx context.Context, withTransport bool,
	fn func(context.Context, *application.ClientService) error,
) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.CharterURL == "" {
		return fmt.Errorf("missing charter url, set ORACLE_CHARTER_URL")
	}

	bitcoinSvc, err := bitcoind.NewService(bitcoind.Config{
		Host:    cfg.BitcoindRpcHost,
		User:    cfg.BitcoindRpcUser,
		Pass:    cfg.BitcoindRpcPass,
		Network: cfg.ChainParams(),
	})
	if err != nil {
		return err
	}
	defer bitcoinSvc.Close()

	var transportSvc ports.TransportService
	if withTransport {
		transportSvc, err = nostr.NewService(ctx, nostr.Config{
			Relays:     cfg.Relays(),
			PrivateKey: cfg.NostrKey(),
		})
		if err != nil {
			return err
		}
		defer transportSvc.Close()
	}

	client := application.NewClientService(
		charter.NewService(cfg.CharterURL, 0),
		bitcoinSvc,
		esplora.NewService(cfg.EsploraURL),
		transportSvc,
		cfg.ChainParams(),
	)
	return fn(ctx, client)
}

func parseLocktime(arg string) (int64, error) {
	if locktime, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return locktime, nil
	}
	delay, err := time.ParseDuration(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid locktime %s", arg)
	}
	return time.Now().Add(delay).Unix(), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
