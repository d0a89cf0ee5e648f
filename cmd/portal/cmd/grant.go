package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/portal"
)

func newGrantCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "grant",
		Aliases: []string{"grants"},
		Short:   "Browse and apply for business grants",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "opportunities",
			Short: "List grants open to applications",
			Args:  cobra.NoArgs,
			RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
				list, err := app.GrantOpportunities(cmd.Context())
				if err != nil {
					return err
				}
				printGrantOpportunities(cmd.OutOrStdout(), list)
				return nil
			}),
		},
		newGrantApplyCmd(c),
		&cobra.Command{
			Use:   "list",
			Short: "List your grant applications",
			Args:  cobra.NoArgs,
			RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
				list, err := app.MyGrants(cmd.Context())
				if err != nil {
					return err
				}
				printGrants(cmd.OutOrStdout(), list)
				return nil
			}),
		},
	)
	return cmd
}

func newGrantApplyCmd(c *cli) *cobra.Command {
	var (
		req      apiclient.GrantRequest
		proposal string
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply for a business grant",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			var err error
			if req.Proposal, err = readFile(proposal); err != nil {
				return err
			}
			a, err := app.ApplyGrant(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Application %s submitted (%s).\n", a.ID, a.Status)
			return nil
		}),
	}
	f := cmd.Flags()
	f.StringVar(&req.Title, "title", "", "Business title")
	f.StringVar(&req.Description, "description", "", "What the grant is for")
	f.StringVar(&req.OpportunityID, "opportunity", "", "Grant listing ID")
	f.StringVar(&proposal, "proposal", "", "Business proposal document")
	return cmd
}

func printGrantOpportunities(w io.Writer, list []apiclient.GrantOpportunity) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No grants open.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tCITY\tAMOUNT\tACTIVE\tDESCRIPTION")
	for _, o := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.City, formatPKR(o.Amount), yesNo(o.IsActive, "yes", "no"), orDash(o.Description))
	}
	tw.Flush()
}

func printGrants(w io.Writer, list []apiclient.GrantApplication) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No grant applications.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tSUBMITTED")
	for _, a := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.ID, a.Title, a.Status, formatDate(a.CreatedAt))
	}
	tw.Flush()
}
