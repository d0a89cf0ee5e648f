package cmd

import (
	"fmt"
	"os"
	"path"

	"github.com/spf13/cobra"

	"github.com/skwf/portal/portal"
)

func newFileCmd(c *cli) *cobra.Command {
	var output string
	fetch := &cobra.Command{
		Use:   "fetch PATH",
		Short: "Download an uploaded document",
		Long: `Download an uploaded document such as a CNIC scan or payment
screenshot. PATH is the reference shown by the portal, for example
/files/payments/receipt.png. The file is written to --output, or to its
own name in the current directory.`,
		Args: cobra.ExactArgs(1),
		RunE: c.withApp(func(cmd *cobra.Command, args []string, app *portal.App) error {
			d, err := app.FetchFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := output
			if out == "" {
				out = path.Base(args[0])
			}
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(d.Data)
				return err
			}
			if err := os.WriteFile(out, d.Data, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s (%s, %d bytes)\n", out, d.ContentType, len(d.Data))
			return nil
		}),
	}
	fetch.Flags().StringVarP(&output, "output", "o", "", `Destination file, "-" for stdout`)

	cmd := &cobra.Command{
		Use:   "file",
		Short: "Work with uploaded documents",
	}
	cmd.AddCommand(fetch)
	return cmd
}
