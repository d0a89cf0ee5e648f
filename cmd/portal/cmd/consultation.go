package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/portal"
)

func newConsultationCmd(c *cli) *cobra.Command {
	var req apiclient.ConsultationRequest
	request := &cobra.Command{
		Use:   "request",
		Short: "Ask for a career consultation",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			r, err := app.RequestConsultation(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Consultation %s requested (%s).\n", r.ID, r.Status)
			return nil
		}),
	}
	request.Flags().StringVar(&req.Category, "category", "", "Consultation category")
	request.Flags().StringVar(&req.Description, "description", "", "What you would like to discuss")

	cmd := &cobra.Command{
		Use:     "consultation",
		Aliases: []string{"consultations"},
		Short:   "Request career consultations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "categories",
			Short: "List consultation categories",
			Args:  cobra.NoArgs,
			RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
				cats, err := app.ConsultationCategories(cmd.Context())
				if err != nil {
					return err
				}
				for _, cat := range cats {
					fmt.Fprintln(cmd.OutOrStdout(), cat)
				}
				return nil
			}),
		},
		request,
		&cobra.Command{
			Use:   "list",
			Short: "List your consultation requests",
			Args:  cobra.NoArgs,
			RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
				list, err := app.MyConsultations(cmd.Context())
				if err != nil {
					return err
				}
				printConsultations(cmd.OutOrStdout(), list)
				return nil
			}),
		},
	)
	return cmd
}

func printConsultations(w io.Writer, list []apiclient.Consultation) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No consultation requests.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tCATEGORY\tSTATUS\tSUBMITTED")
	for _, r := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Category, r.Status, formatDate(r.CreatedAt))
	}
	tw.Flush()
}
