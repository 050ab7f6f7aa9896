// Package cli implements the ordvault command line: publishing and reading
// articles, unlocking or decrypting sealed ones and inspecting the
// inscription store.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/ordvault/internal/bootstrap"
	"github.com/dmitrijs2005/ordvault/internal/config"
	"github.com/dmitrijs2005/ordvault/internal/logging"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// loadConfig is a test seam for config.Load.
var loadConfig = config.Load

type App struct {
	configPath string
	dataDir    string
	network    string
	logLevel   string
	output     string

	in  *bufio.Reader
	out io.Writer
	err io.Writer
}

// NewRootCommand builds the ordvault command tree reading from in and
// writing to out and errOut.
func NewRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &App{in: bufio.NewReader(in), out: out, err: errOut}

	root := &cobra.Command{
		Use:           "ordvault",
		Short:         "Publish content and anchor it on the ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "JSON config file")
	root.PersistentFlags().StringVar(&a.dataDir, "data", "", "data directory (overrides DATA_DIR)")
	root.PersistentFlags().StringVarP(&a.network, "network", "n", "", "ledger network (overrides BITCOIN_NETWORK)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "WARN", "log level: DEBUG, INFO, WARN, ERROR")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "text", "output format: text, json")

	root.AddCommand(
		a.publishCmd(),
		a.showCmd(),
		a.listCmd(),
		a.unlockCmd(),
		a.decryptCmd(),
		a.verifyCmd(),
		a.retryCmd(),
		a.signCmd(),
		a.inscriptionsCmd(),
		a.keygenCmd(),
		versionCmd(),
	)
	return root
}

// Execute runs the CLI against the process streams.
func Execute(ctx context.Context) int {
	root := NewRootCommand(os.Stdin, os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ordvault version %s\n", version)
		},
	}
}

func (a *App) resolveConfig() (*config.Config, error) {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	if a.network != "" {
		cfg.Network = a.network
	}
	cfg.LogLevel = a.logLevel
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withComponents wires the pipeline for one command and tears it down after.
func (a *App) withComponents(ctx context.Context, fn func(*config.Config, *bootstrap.Components) error) error {
	cfg, err := a.resolveConfig()
	if err != nil {
		return err
	}

	log := logging.New(cfg.LogLevel, a.err)
	c, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			log.Error(ctx, "close stores", "error", cerr)
		}
	}()

	return fn(cfg, c)
}

func (a *App) jsonOutput() bool {
	return a.output == "json"
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
