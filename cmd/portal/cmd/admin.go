package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/portal"
	"github.com/skwf/portal/session"
)

func newAdminCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Review payments, users and applications",
		Long:  `Administrator commands. They require a session with the admin role.`,
	}
	cmd.AddCommand(
		newAdminPaymentsCmd(c),
		newAdminReviewPaymentCmd(c),
		newAdminUsersCmd(c),
		newAdminUserCmd(c),
		newAdminScholarshipsCmd(c),
		newAdminReviewCmd(c, "review-scholarship", "scholarship application",
			func(cmd *cobra.Command, app *portal.App, id string, s apiclient.ApplicationStatus) (apiclient.ApplicationStatus, error) {
				a, err := app.ReviewScholarship(cmd.Context(), id, s)
				if err != nil {
					return "", err
				}
				return a.Status, nil
			}),
		newAdminGrantsCmd(c),
		newAdminReviewCmd(c, "review-grant", "grant application",
			func(cmd *cobra.Command, app *portal.App, id string, s apiclient.ApplicationStatus) (apiclient.ApplicationStatus, error) {
				a, err := app.ReviewGrant(cmd.Context(), id, s)
				if err != nil {
					return "", err
				}
				return a.Status, nil
			}),
		newAdminConsultationsCmd(c),
		newAdminReviewCmd(c, "review-consultation", "consultation request",
			func(cmd *cobra.Command, app *portal.App, id string, s apiclient.ApplicationStatus) (apiclient.ApplicationStatus, error) {
				r, err := app.ReviewConsultation(cmd.Context(), id, s)
				if err != nil {
					return "", err
				}
				return r.Status, nil
			}),
		newScholarshipOpportunityCmd(c),
		newGrantOpportunityCmd(c),
	)
	return cmd
}

// listFlags binds the paging and filter flags shared by admin listings.
func listFlags(f *pflag.FlagSet, opts *apiclient.ListOptions, search bool) {
	f.IntVar(&opts.Page, "page", 1, "Page number")
	f.IntVar(&opts.Limit, "limit", 10, "Records per page")
	f.StringVar(&opts.Status, "status", "", "Only records with this status")
	if search {
		f.StringVar(&opts.Search, "search", "", "Match name or email")
	}
}

func printPageFooter[T any](w io.Writer, p *apiclient.Page[T]) {
	fmt.Fprintf(w, "page %d of %d, %d records\n", p.CurrentPage, p.TotalPages, p.TotalRecords)
}

func refName(r apiclient.UserRef) string {
	if r.Value != nil && r.Value.Email != "" {
		return r.Value.Email
	}
	return orDash(r.ID)
}

func newAdminPaymentsCmd(c *cli) *cobra.Command {
	var opts apiclient.ListOptions
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "List submitted payments",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			page, err := app.Payments(cmd.Context(), opts)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			tw := newTable(w)
			fmt.Fprintln(tw, "ID\tUSER\tAMOUNT\tSTATUS\tSUBMITTED")
			for _, p := range page.Data {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					p.ID, refName(p.User), formatPKR(p.Amount), apiclient.StatusOf(&p), formatDate(p.CreatedAt))
			}
			tw.Flush()
			printPageFooter(w, page)
			return nil
		}),
	}
	listFlags(cmd.Flags(), &opts, false)
	return cmd
}

func newAdminReviewPaymentCmd(c *cli) *cobra.Command {
	var status, notes string
	cmd := &cobra.Command{
		Use:   "review-payment ID",
		Short: "Verify or reject a payment",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(cmd *cobra.Command, args []string, app *portal.App) error {
			p, err := app.ReviewPayment(cmd.Context(), args[0], apiclient.PaymentStatus(status), notes)
			if err != nil {
				return err
			}
			printPayment(cmd.OutOrStdout(), p)
			return nil
		}),
	}
	cmd.Flags().StringVar(&status, "status", string(apiclient.PaymentVerified), "verified or rejected")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes shown to the applicant")
	return cmd
}

func newAdminUsersCmd(c *cli) *cobra.Command {
	var opts apiclient.ListOptions
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			page, err := app.Users(cmd.Context(), opts)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			tw := newTable(w)
			fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tPROFILE\tPAYMENT\tCREDIT")
			for _, u := range page.Data {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
					u.ID, u.Name, u.Email, u.Role,
					yesNo(u.ProfileCompleted, "complete", "incomplete"),
					yesNo(u.PaymentVerified, "verified", "-"),
					u.CreditHours)
			}
			tw.Flush()
			printPageFooter(w, page)
			return nil
		}),
	}
	listFlags(cmd.Flags(), &opts, true)
	return cmd
}

func newAdminUserCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "user ID",
		Short: "Show a user and everything they submitted",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(cmd *cobra.Command, args []string, app *portal.App) error {
			d, err := app.UserDetails(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if d.User != nil {
				printUser(cmd, d.User)
				printHistory(w, d.User)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Payment")
			printPayment(w, d.Applications.Payment)
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Scholarships")
			printScholarships(w, d.Applications.Scholarships)
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Grants")
			printGrants(w, d.Applications.Grants)
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Consultations")
			printConsultations(w, d.Applications.Consultations)
			return nil
		}),
	}
}

func printHistory(w io.Writer, u *session.User) {
	for _, e := range u.Education {
		fmt.Fprintf(w, "Education: %s, %s (%s to %s)\n", e.Degree, e.Institute, orDash(e.StartDate), orDash(e.EndDate))
	}
	for _, e := range u.Experience {
		fmt.Fprintf(w, "Experience: %s, %s (%s to %s)\n", e.Role, e.Institute, orDash(e.StartDate), orDash(e.EndDate))
	}
}

func newAdminScholarshipsCmd(c *cli) *cobra.Command {
	var opts apiclient.ListOptions
	cmd := &cobra.Command{
		Use:   "scholarships",
		Short: "List scholarship applications",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			page, err := app.Scholarships(cmd.Context(), opts)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			printScholarships(w, page.Data)
			printPageFooter(w, page)
			return nil
		}),
	}
	listFlags(cmd.Flags(), &opts, false)
	return cmd
}

func newAdminGrantsCmd(c *cli) *cobra.Command {
	var opts apiclient.ListOptions
	cmd := &cobra.Command{
		Use:   "grants",
		Short: "List grant applications",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			page, err := app.Grants(cmd.Context(), opts)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			printGrants(w, page.Data)
			printPageFooter(w, page)
			return nil
		}),
	}
	listFlags(cmd.Flags(), &opts, false)
	return cmd
}

func newAdminConsultationsCmd(c *cli) *cobra.Command {
	var opts apiclient.ListOptions
	cmd := &cobra.Command{
		Use:   "consultations",
		Short: "List consultation requests",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			page, err := app.Consultations(cmd.Context(), opts)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			printConsultations(w, page.Data)
			printPageFooter(w, page)
			return nil
		}),
	}
	listFlags(cmd.Flags(), &opts, false)
	return cmd
}

type reviewFunc func(cmd *cobra.Command, app *portal.App, id string, status apiclient.ApplicationStatus) (apiclient.ApplicationStatus, error)

func newAdminReviewCmd(c *cli, use, what string, review reviewFunc) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   use + " ID",
		Short: "Set the status of a " + what,
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(cmd *cobra.Command, args []string, app *portal.App) error {
			got, err := review(cmd, app, args[0], apiclient.ApplicationStatus(status))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s.\n", args[0], got)
			return nil
		}),
	}
	cmd.Flags().StringVar(&status, "status", string(apiclient.ApplicationApproved), "pending, approved or rejected")
	return cmd
}

func newScholarshipOpportunityCmd(c *cli) *cobra.Command {
	var (
		opts     apiclient.ListOptions
		in       apiclient.ScholarshipOpportunity
		inactive bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List scholarship listings",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			page, err := app.ScholarshipOpportunities(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printScholarshipOpportunities(cmd.OutOrStdout(), page.Data)
			printPageFooter(cmd.OutOrStdout(), page)
			return nil
		}),
	}
	listFlags(list.Flags(), &opts, true)

	save := &cobra.Command{
		Use:   "save",
		Short: "Create a scholarship listing, or replace it with --id",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			in.IsActive = !inactive
			o, err := app.SaveScholarshipOpportunity(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved scholarship %s.\n", o.ID)
			return nil
		}),
	}
	f := save.Flags()
	f.StringVar(&in.ID, "id", "", "Listing to replace")
	f.StringVar(&in.DegreeLevel, "degree", "", "Degree level")
	f.StringVar(&in.Course, "course", "", "Course")
	f.StringVar(&in.Country, "country", "", "Country")
	f.StringVar(&in.QualificationType, "qualification", "", "Qualification type")
	f.StringVar(&in.Description, "description", "", "Description")
	f.BoolVar(&inactive, "inactive", false, "Hide the listing from applicants")

	cmd := &cobra.Command{
		Use:   "scholarship-opportunity",
		Short: "Manage scholarship listings",
	}
	cmd.AddCommand(list, save, newDeleteCmd(c, "scholarship", (*portal.App).DeleteScholarshipOpportunity))
	return cmd
}

func newGrantOpportunityCmd(c *cli) *cobra.Command {
	var (
		opts     apiclient.ListOptions
		in       apiclient.GrantOpportunity
		amount   string
		inactive bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List grant listings",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			page, err := app.AdminGrantOpportunities(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printGrantOpportunities(cmd.OutOrStdout(), page.Data)
			printPageFooter(cmd.OutOrStdout(), page)
			return nil
		}),
	}
	listFlags(list.Flags(), &opts, true)

	save := &cobra.Command{
		Use:   "save",
		Short: "Create a grant listing, or replace it with --id",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("--amount: %w", err)
			}
			in.Amount = amt
			in.IsActive = !inactive
			o, err := app.SaveGrantOpportunity(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved grant %s (%s).\n", o.ID, formatPKR(o.Amount))
			return nil
		}),
	}
	f := save.Flags()
	f.StringVar(&in.ID, "id", "", "Listing to replace")
	f.StringVar(&in.City, "city", "", "City")
	f.StringVar(&amount, "amount", "0", "Grant amount in PKR")
	f.StringVar(&in.Description, "description", "", "Description")
	f.BoolVar(&inactive, "inactive", false, "Hide the listing from applicants")

	cmd := &cobra.Command{
		Use:   "grant-opportunity",
		Short: "Manage grant listings",
	}
	cmd.AddCommand(list, save, newDeleteCmd(c, "grant", (*portal.App).DeleteGrantOpportunity))
	return cmd
}

func newDeleteCmd(c *cli, what string, del func(*portal.App, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a " + what + " listing",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(cmd *cobra.Command, args []string, app *portal.App) error {
			if err := del(app, cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s.\n", what, args[0])
			return nil
		}),
	}
}
