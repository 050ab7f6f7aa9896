package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/ordvault/internal/attest"
	"github.com/dmitrijs2005/ordvault/internal/bootstrap"
	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/dmitrijs2005/ordvault/internal/config"
	"github.com/dmitrijs2005/ordvault/internal/models"
	"github.com/dmitrijs2005/ordvault/internal/storage"
	"github.com/spf13/cobra"
)

func (a *App) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <inscription-id>",
		Short: "Re-check a stored inscription against its content and the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withComponents(cmd.Context(), func(_ *config.Config, c *bootstrap.Components) error {
				v, err := c.Inscriptions.Verify(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if a.jsonOutput() {
					if err := a.printJSON(v); err != nil {
						return err
					}
				} else {
					status := "VALID"
					if !v.Valid {
						status = "INVALID"
					}
					fmt.Fprintf(a.out, "%s %s: %s\n", status, v.InscriptionID, v.Message)
					fmt.Fprintf(a.out, "network: %s  hash: %s  attested: %t  confirmations: %d\n",
						v.Network, v.ContentHash, v.Attested, v.Confirmations)
					if v.ExplorerURL != "" {
						fmt.Fprintf(a.out, "explorer: %s\n", v.ExplorerURL)
					}
					if v.OffChain {
						fmt.Fprintln(a.out, "off-chain copy: verified")
					}
					if v.OffChainURL != "" {
						fmt.Fprintf(a.out, "off-chain download: %s\n", v.OffChainURL)
					}
				}
				if !v.Valid {
					return fmt.Errorf("%w: %s", common.ErrCorruptData, v.Message)
				}
				return nil
			})
		},
	}
}

func (a *App) inscriptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inscriptions",
		Short: "Inspect and migrate the inscription store",
	}
	cmd.AddCommand(a.inscriptionsListCmd(), a.inscriptionsImportCmd())
	return cmd
}

func (a *App) inscriptionsListCmd() *cobra.Command {
	var (
		filter models.InscriptionFilter
		mock   string
		since  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored inscriptions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch strings.ToLower(mock) {
			case "":
			case "true", "false":
				m := strings.EqualFold(mock, "true")
				filter.Mock = &m
			default:
				return fmt.Errorf("%w: --mock must be true or false", common.ErrValidation)
			}
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("%w: --since must be RFC 3339", common.ErrValidation)
				}
				filter.Since = t
			}

			return a.withComponents(cmd.Context(), func(_ *config.Config, c *bootstrap.Components) error {
				recs, err := c.Store.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if a.jsonOutput() {
					return a.printJSON(recs)
				}
				if len(recs) == 0 {
					fmt.Fprintln(a.out, "No inscriptions found.")
					return nil
				}

				w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "INSCRIPTION\tNETWORK\tMODE\tSIZE\tMOCK\tCREATED")
				for _, r := range recs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\t%s\n",
						r.InscriptionID, r.Network, r.StorageMode, r.SizeBytes, r.Mock, r.CreatedAt.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&filter.Network, "network-filter", "", "only this network")
	cmd.Flags().StringVar(&filter.ContentHash, "hash", "", "only this content hash")
	cmd.Flags().StringVar(&mock, "mock", "", "true or false")
	cmd.Flags().StringVar(&since, "since", "", "only records created at or after this RFC 3339 time")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum number of records")
	return cmd
}

func (a *App) inscriptionsImportCmd() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy the JSON inscription file into the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withComponents(cmd.Context(), func(cfg *config.Config, c *bootstrap.Components) error {
				if c.DB() == nil {
					return fmt.Errorf("%w: import needs DATABASE_DSN", common.ErrValidation)
				}
				driver, _, err := storage.DriverFor(cfg.DatabaseDSN)
				if err != nil {
					return err
				}

				if from == "" {
					from = cfg.InscriptionStorePath()
				}
				recs, err := storage.NewFileRepository(from).List(cmd.Context(), models.InscriptionFilter{})
				if err != nil {
					return err
				}

				n, err := storage.Import(cmd.Context(), c.DB(), driver, recs)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Imported %d of %d inscription(s) from %s\n", n, len(recs), from)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "inscriptions JSON file (default <data>/inscriptions.json)")
	return cmd
}

func (a *App) keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a secp256k1 key for ATTESTATION_KEY or document signing",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, key, err := attest.GenerateSigner()
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.printJSON(map[string]string{"privateKey": key, "publicKey": s.PublicKey()})
			}
			fmt.Fprintf(a.out, "private key: %s\npublic key:  %s\n", key, s.PublicKey())
			return nil
		},
	}
}

// signWithPrompt signs hash with a private key read from the terminal.
func signWithPrompt(a *App, hash string) (*models.Attestation, error) {
	secret, err := GetSecret(a.err, "Enter signing key: ")
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(secret)

	s, err := attest.NewSigner(strings.TrimSpace(string(secret)))
	if err != nil {
		return nil, err
	}
	return s.Sign(strings.ToLower(hash))
}
