package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/ordvault/internal/bootstrap"
	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/dmitrijs2005/ordvault/internal/config"
	"github.com/dmitrijs2005/ordvault/internal/models"
	"github.com/dmitrijs2005/ordvault/internal/publish"
	"github.com/spf13/cobra"
)

func (a *App) publishCmd() *cobra.Command {
	var (
		d        publish.Draft
		file     string
		class    string
		unlockAt string
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish an article and inscribe it",
		Long: "Publish an article. Content is read from --file, or from stdin when no file is given.\n" +
			"Whistleblower, anonymous and --encrypt articles are sealed with a random key that is printed once.\n" +
			"--unlock-at time-locks the content until the given RFC 3339 time instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			d.Classification = models.Classification(class)

			if unlockAt != "" {
				at, err := time.Parse(time.RFC3339, unlockAt)
				if err != nil {
					return fmt.Errorf("%w: --unlock-at must be RFC 3339", common.ErrValidation)
				}
				d.UnlockAt = &at
			}

			if file != "" {
				b, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				d.Content = string(b)
			} else {
				text, err := GetMultiline(a.in, "Enter article content", a.err)
				if err != nil {
					return err
				}
				d.Content = text
			}

			return a.withComponents(cmd.Context(), func(_ *config.Config, c *bootstrap.Components) error {
				pub, err := c.Publisher.Publish(cmd.Context(), d)
				if err != nil {
					return err
				}
				if a.jsonOutput() {
					return a.printJSON(pub)
				}
				return a.printPublication(pub)
			})
		},
	}

	cmd.Flags().StringVarP(&d.Title, "title", "t", "", "article title (required)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read content from file")
	cmd.Flags().StringVar(&d.Excerpt, "excerpt", "", "short excerpt shown in listings")
	cmd.Flags().StringVar(&class, "classification", string(models.ClassificationPublic), "public, authenticated or whistleblower")
	cmd.Flags().BoolVar(&d.Encrypt, "encrypt", false, "encrypt with a random key")
	cmd.Flags().BoolVar(&d.Anonymous, "anonymous", false, "publish without author (implies encryption)")
	cmd.Flags().StringVar(&unlockAt, "unlock-at", "", "time-lock until this RFC 3339 time")
	cmd.Flags().StringSliceVar(&d.Tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringVar(&d.AuthorID, "author-id", "", "author id")
	cmd.Flags().StringVar(&d.AuthorName, "author", "", "author display name")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func (a *App) printPublication(pub *publish.Publication) error {
	art := pub.Article
	fmt.Fprintf(a.out, "Article %s %s\n", art.ID, art.Status)
	if art.InscriptionID != "" {
		fmt.Fprintf(a.out, "Inscription: %s\n", art.InscriptionID)
	}
	if pub.Inscription != nil {
		if pub.Inscription.Mock {
			fmt.Fprintln(a.out, "Mode: mock")
		}
		if pub.Inscription.ExplorerURL != "" {
			fmt.Fprintf(a.out, "Explorer: %s\n", pub.Inscription.ExplorerURL)
		}
	}
	if art.LastError != "" {
		fmt.Fprintf(a.out, "Inscription will be retried: %s\n", art.LastError)
	}
	if art.Encryption != nil && art.Encryption.TimeLocked {
		fmt.Fprintf(a.out, "Time-locked until %s\n", art.Encryption.UnlockAt.Format(time.RFC3339))
	}
	if pub.DecryptionKey != "" {
		fmt.Fprintf(a.out, "Decryption key: %s\n%s\n", pub.DecryptionKey, pub.Warning)
	}
	return nil
}

func (a *App) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an article by id or inscription id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withComponents(cmd.Context(), func(_ *config.Config, c *bootstrap.Components) error {
				art, err := c.Publisher.View(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if a.jsonOutput() {
					return a.printJSON(art)
				}

				fmt.Fprintf(a.out, "%s\n", art.Title)
				fmt.Fprintf(a.out, "id: %s  status: %s  classification: %s  views: %d\n", art.ID, art.Status, art.Classification, art.Views)
				fmt.Fprintf(a.out, "author: %s  published: %s\n", art.AuthorName, art.PublishedAt.Format(time.RFC3339))
				if art.InscriptionID != "" {
					fmt.Fprintf(a.out, "inscription: %s\n", art.InscriptionID)
				}
				if len(art.Tags) > 0 {
					fmt.Fprintf(a.out, "tags: %s\n", strings.Join(art.Tags, ", "))
				}
				fmt.Fprintln(a.out)
				switch {
				case art.Encryption != nil && art.Encryption.TimeLocked:
					fmt.Fprintf(a.out, "[TIME-LOCKED until %s, use 'ordvault unlock %s']\n", art.Encryption.UnlockAt.Format(time.RFC3339), art.ID)
				case art.Encrypted:
					fmt.Fprintf(a.out, "[ENCRYPTED, use 'ordvault decrypt %s']\n", art.ID)
				default:
					fmt.Fprintln(a.out, art.Content)
				}
				return nil
			})
		},
	}
}

func (a *App) listCmd() *cobra.Command {
	var class, author, status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List articles, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := models.ArticleFilter{
				Classification: models.Classification(class),
				Author:         author,
				Status:         models.ArticleStatus(status),
			}
			return a.withComponents(cmd.Context(), func(_ *config.Config, c *bootstrap.Components) error {
				list, err := c.Publisher.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if a.jsonOutput() {
					return a.printJSON(list)
				}
				if len(list) == 0 {
					fmt.Fprintln(a.out, "No articles found.")
					return nil
				}

				w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSTATUS\tCLASSIFICATION\tTITLE\tINSCRIPTION")
				for _, art := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", art.ID, art.Status, art.Classification, art.Title, art.InscriptionID)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&class, "classification", "", "filter by classification")
	cmd.Flags().StringVar(&author, "author", "", "filter by author id or name")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (published, pending)")
	return cmd
}

func (a *App) unlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <id>",
		Short: "Open a time-locked article after its unlock time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withComponents(cmd.Context(), func(_ *config.Config, c *bootstrap.Components) error {
				text, err := c.Publisher.Unlock(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printPlaintext(args[0], text)
			})
		},
	}
}

func (a *App) decryptCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "decrypt <id>",
		Short: "Decrypt an article with the key printed at publish time",
		Long:  "Decrypt an article. Without --key the key is read from the terminal without echo.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				secret, err := GetSecret(a.err, "Enter decryption key: ")
				if err != nil {
					return err
				}
				key = string(secret)
				common.WipeByteArray(secret)
			}

			return a.withComponents(cmd.Context(), func(_ *config.Config, c *bootstrap.Components) error {
				text, err := c.Publisher.Decrypt(cmd.Context(), args[0], key)
				if err != nil {
					return err
				}
				return a.printPlaintext(args[0], text)
			})
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "hex decryption key")
	return cmd
}

func (a *App) printPlaintext(id, text string) error {
	if a.jsonOutput() {
		return a.printJSON(map[string]string{"id": id, "content": text})
	}
	fmt.Fprintln(a.out, text)
	return nil
}

func (a *App) retryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Re-inscribe pending articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withComponents(cmd.Context(), func(_ *config.Config, c *bootstrap.Components) error {
				n, err := c.Publisher.RetryPending(cmd.Context())
				fmt.Fprintf(a.out, "Published %d pending article(s)\n", n)
				return err
			})
		},
	}
}

func (a *App) signCmd() *cobra.Command {
	var sig publish.DocumentSignature

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Inscribe a signature over a document hash",
		Long: "Inscribe a secp256k1 signature over a SHA-256 document hash.\n" +
			"Pass --public-key and --signature, or omit them to sign with a private key read from the terminal.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sig.Signature == "" {
				att, err := signWithPrompt(a, sig.DocumentHash)
				if err != nil {
					return err
				}
				sig.Signature, sig.PublicKey = att.Signature, att.PublicKey
			}

			return a.withComponents(cmd.Context(), func(_ *config.Config, c *bootstrap.Components) error {
				receipt, err := c.Publisher.SignDocument(cmd.Context(), sig)
				if err != nil {
					return err
				}
				if a.jsonOutput() {
					return a.printJSON(receipt)
				}
				fmt.Fprintf(a.out, "Signature inscribed: %s\n", receipt.InscriptionID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sig.DocumentHash, "hash", "", "hex SHA-256 of the document (required)")
	cmd.Flags().StringVar(&sig.SignerName, "name", "", "signer name")
	cmd.Flags().StringVar(&sig.SignerAddress, "address", "", "signer address")
	cmd.Flags().StringVar(&sig.PublicKey, "public-key", "", "hex compressed public key")
	cmd.Flags().StringVar(&sig.Signature, "signature", "", "hex DER signature")
	_ = cmd.MarkFlagRequired("hash")
	return cmd
}
