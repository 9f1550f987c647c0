// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface for Foothold using the Cobra
// library: the root command (which launches the interactive form), the
// bootstrap, trust-host, keys and audit subcommands, and the process exit
// code contract.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/toeirei/foothold/internal/bootstrap"
	"github.com/toeirei/foothold/internal/config"
	"github.com/toeirei/foothold/internal/db"
	"github.com/toeirei/foothold/internal/deploy"
	"github.com/toeirei/foothold/internal/i18n"
	"github.com/toeirei/foothold/internal/keysource"
	"github.com/toeirei/foothold/internal/logging"
	"github.com/toeirei/foothold/internal/model"
	"github.com/toeirei/foothold/internal/provision"
	"github.com/toeirei/foothold/internal/sshkey"
	"github.com/toeirei/foothold/internal/state"
	"github.com/toeirei/foothold/internal/tui"
)

var version = "dev" // set by the linker

var (
	cfgFile   string
	appConfig config.Config

	flagForce      bool
	flagAlign      bool
	flagNoSnapshot bool
)

// Sentinels for the argument preconditions; each maps to its own exit code.
var (
	errMissingHost     = errors.New("missing target host")
	errMissingUsername = errors.New("missing target username")
)

// Exit code contract. 0 is success, including the default-mode "account
// already present" branch; 1 is any other failure.
const (
	exitMissingHost     = 2
	exitMissingUsername = 3
	exitOperatorRoot    = 4
	exitNoKeySource     = 5
	exitStoreMissing    = 6
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps the error taxonomy onto the process exit status.
func exitCode(err error) int {
	switch {
	case errors.Is(err, errMissingHost):
		return exitMissingHost
	case errors.Is(err, errMissingUsername):
		return exitMissingUsername
	case errors.Is(err, bootstrap.ErrOperatorIsRoot):
		return exitOperatorRoot
	case errors.Is(err, keysource.ErrNoKeySource):
		return exitNoKeySource
	case errors.Is(err, provision.ErrStoreMissing):
		return exitStoreMissing
	}
	return 1
}

var rootCmd *cobra.Command

func init() {
	rootCmd = newRootCmd()
}

// newRootCmd creates and configures a new root cobra command. Tests build
// fresh instances through this function for isolation.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "foothold",
		Short: "Foothold plants a user account and its SSH keys on a remote host.",
		Long: `Foothold provisions a user account and its SSH public keys on a remote
host, idempotently, over a single SSH connection. Re-running against the
same host never duplicates keys or clobbers existing access.

Running without a subcommand launches the interactive form.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var cfgPath *string
			if cfgFile != "" {
				cfgPath = &cfgFile
			}

			defaults := map[string]any{
				"database.type": "sqlite",
				"database.dsn":  defaultDSN(),
				"language":      "en",
				"login":         "root",
				"identity":      "",
			}
			var err error
			appConfig, err = config.LoadConfig[config.Config](cmd, defaults, cfgPath)
			if errors.As(err, &viper.ConfigFileNotFoundError{}) {
				// First run: persist a default config so settings are
				// discoverable. Failure to write is not fatal.
				if writeErr := config.WriteConfigFile(&appConfig, false); writeErr != nil {
					logging.Warnf("could not write default config file: %v", writeErr)
				}
			} else if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}

			i18n.Init(appConfig.Language)
			if err := db.InitDB(appConfig.Database.Type, appConfig.Database.DSN); err != nil {
				return fmt.Errorf("%s", i18n.T("config.error_init_db", err))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(appConfig.Login, bootstrap.Options{
				Identity:   appConfig.Identity,
				NoSnapshot: flagNoSnapshot,
			})
		},
	}

	cmd.AddCommand(newBootstrapCmd())
	cmd.AddCommand(newTrustHostCmd())
	cmd.AddCommand(newKeysCmd())
	cmd.AddCommand(newAuditCmd())

	cmd.Version = version

	// Flags are named after their config keys so LoadConfig's BindPFlags
	// call maps them without a separate binding table.
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is foothold.yaml in the user config dir)")
	cmd.PersistentFlags().String("database.type", "sqlite", "Database type (sqlite, postgres, mysql)")
	cmd.PersistentFlags().String("database.dsn", defaultDSN(), "Database connection string (DSN)")
	cmd.PersistentFlags().String("language", "en", `Output language ("en", "de")`)
	cmd.PersistentFlags().String("login", "root", "Remote login used for the SSH connection")
	cmd.PersistentFlags().String("identity", "", "Private key file for the SSH connection")
	cmd.PersistentFlags().BoolVar(&flagNoSnapshot, "no-snapshot", false, "Skip local snapshots of remote files before changing them")
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	cobra.OnInitialize(func() {
		if debug, _ := cmd.PersistentFlags().GetBool("debug"); debug {
			logging.SetDebug(true)
		}
	})

	return cmd
}

// defaultDSN places the SQLite database next to the user's config.
func defaultDSN() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./foothold.db"
	}
	return dir + "/foothold/foothold.db"
}

func newBootstrapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap [user@]host [username]",
		Short: "Provision an account and its SSH keys on a remote host",
		Long: `Bootstrap resolves your local public key material, connects to the target
host as the remote superuser, ensures the account exists, and merges the
key material into its authorized_keys without ever duplicating a line.`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, username, err := parseTarget(args)
			if err != nil {
				return err
			}

			req := model.Request{
				Host:     host,
				Username: username,
				Login:    appConfig.Login,
				Force:    flagForce,
				Align:    flagAlign,
			}
			opts := bootstrap.Options{
				Identity:   appConfig.Identity,
				NoSnapshot: flagNoSnapshot,
			}

			report, err := runWithPassphraseRetry(req, opts)
			if err != nil {
				return err
			}

			for _, warning := range report.Warnings {
				fmt.Fprintln(os.Stderr, warning)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagForce, "force", false, "Reconcile keys even when the account already exists")
	cmd.Flags().BoolVar(&flagAlign, "align", false, "Rewire sshd's authorized-keys lookup and restart it")
	return cmd
}

// parseTarget extracts host and username from "user@host" or the pair of
// positional arguments.
func parseTarget(args []string) (host, username string, err error) {
	switch len(args) {
	case 0:
		return "", "", fmt.Errorf("%w: %s", errMissingHost, i18n.T("error.missing_host"))
	case 1:
		if at := strings.Index(args[0], "@"); at >= 0 {
			username, host = args[0][:at], args[0][at+1:]
		} else {
			host = args[0]
		}
	case 2:
		host, username = args[0], args[1]
	}
	if host == "" {
		return "", "", fmt.Errorf("%w: %s", errMissingHost, i18n.T("error.missing_host"))
	}
	if username == "" {
		return "", "", fmt.Errorf("%w: %s", errMissingUsername, i18n.T("error.missing_username"))
	}
	return host, username, nil
}

// runWithPassphraseRetry runs a bootstrap and, when the identity file turns
// out to be encrypted, prompts for its passphrase once and retries.
func runWithPassphraseRetry(req model.Request, opts bootstrap.Options) (*model.Report, error) {
	report, err := bootstrap.Run(req, opts)
	if err == nil || !errors.Is(err, deploy.ErrPassphraseRequired) {
		return report, err
	}

	fmt.Fprintf(os.Stderr, "Enter passphrase for %s: ", opts.Identity)
	passphrase, promptErr := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if promptErr != nil {
		return nil, fmt.Errorf("could not read passphrase: %w", promptErr)
	}
	state.PassphraseCache.Set(passphrase)
	for i := range passphrase {
		passphrase[i] = 0
	}
	defer state.PassphraseCache.Clear()

	return bootstrap.Run(req, opts)
}

func newTrustHostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trust-host <host>",
		Short: "Fetch and pin a host's SSH key before the first bootstrap",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host := args[0]
			key, err := deploy.GetRemoteHostKey(host)
			if err != nil {
				return err
			}
			presented := string(ssh.MarshalAuthorizedKey(key))

			known, err := db.GetKnownHostKey(host)
			if err != nil {
				return err
			}
			switch known {
			case presented:
				fmt.Println(i18n.T("trusthost.known", host))
				return nil
			case "":
				if err := db.AddKnownHostKey(host, presented); err != nil {
					return err
				}
				_ = db.LogAction("TRUST_HOST", fmt.Sprintf("%s %s", host, ssh.FingerprintSHA256(key)))
				fmt.Println(i18n.T("trusthost.added", host))
				fmt.Printf("  %s\n", ssh.FingerprintSHA256(key))
				return nil
			default:
				return fmt.Errorf("%s", i18n.T("trusthost.mismatch", host))
			}
		},
	}
}

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Show the local key material a bootstrap would push",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, source, err := bootstrap.ResolvePayload()
			if err != nil {
				return err
			}
			fmt.Println(i18n.T("keys.source", source))
			for _, line := range strings.Split(string(payload), "\n") {
				if strings.TrimSpace(line) == "" {
					continue
				}
				algorithm, _, comment, parseErr := sshkey.Parse(line)
				if parseErr != nil {
					fmt.Println(i18n.T("keys.unparsed", line))
					continue
				}
				fingerprint, fpErr := sshkey.Fingerprint(line)
				if fpErr != nil {
					fingerprint = "-"
				}
				fmt.Printf("  %-19s %-47s %s\n", algorithm, fingerprint, comment)
			}
			return nil
		},
	}
}

func newAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Show the history of bootstrap runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := db.GetAllAuditLogEntries()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println(i18n.T("audit.empty"))
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %-18s %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Action, e.Details)
			}
			return nil
		},
	}
}
