package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/portal"
)

func newScholarshipCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scholarship",
		Aliases: []string{"scholarships"},
		Short:   "Browse and apply for scholarships",
	}
	cmd.AddCommand(
		newScholarshipCatalogCmd(c),
		newScholarshipSearchCmd(c),
		newScholarshipApplyCmd(c),
		newScholarshipListCmd(c),
	)
	return cmd
}

func newScholarshipCatalogCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List degree levels, courses and countries on offer",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			cat, err := app.ScholarshipCatalog(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Degree levels:  %s\n", strings.Join(cat.DegreeLevels, ", "))
			fmt.Fprintf(w, "Courses:        %s\n", strings.Join(cat.Courses, ", "))
			fmt.Fprintf(w, "Countries:      %s\n", strings.Join(cat.Countries, ", "))
			return nil
		}),
	}
}

func newScholarshipSearchCmd(c *cli) *cobra.Command {
	var degree, course string
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find open scholarships for a degree level and course",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			list, err := app.SearchScholarships(cmd.Context(), degree, course)
			if err != nil {
				return err
			}
			printScholarshipOpportunities(cmd.OutOrStdout(), list)
			return nil
		}),
	}
	cmd.Flags().StringVar(&degree, "degree", "", "Degree level")
	cmd.Flags().StringVar(&course, "course", "", "Course")
	return cmd
}

func newScholarshipApplyCmd(c *cli) *cobra.Command {
	var (
		req                   apiclient.ScholarshipRequest
		passport              string
		documents, experience []string
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply for a scholarship",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			var err error
			if req.Passport, err = readFile(passport); err != nil {
				return err
			}
			if req.Documents, err = readFiles(documents); err != nil {
				return err
			}
			if req.ExperienceDocuments, err = readFiles(experience); err != nil {
				return err
			}
			a, err := app.ApplyScholarship(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Application %s submitted (%s).\n", a.ID, a.Status)
			return nil
		}),
	}
	f := cmd.Flags()
	f.StringVar(&req.DegreeLevel, "degree", "", "Degree level")
	f.StringVar(&req.Course, "course", "", "Course")
	f.StringVar(&req.OpportunityID, "opportunity", "", "Scholarship listing ID from search")
	f.StringVar(&passport, "passport", "", "Passport scan")
	f.StringArrayVar(&documents, "document", nil, "Supporting document (repeatable)")
	f.StringArrayVar(&experience, "experience-document", nil, "Experience letter (repeatable)")
	return cmd
}

func newScholarshipListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your scholarship applications",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			list, err := app.MyScholarships(cmd.Context())
			if err != nil {
				return err
			}
			printScholarships(cmd.OutOrStdout(), list)
			return nil
		}),
	}
}

func printScholarshipOpportunities(w io.Writer, list []apiclient.ScholarshipOpportunity) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No scholarships found.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tDEGREE\tCOURSE\tCOUNTRY\tQUALIFICATION\tACTIVE")
	for _, o := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.DegreeLevel, o.Course, o.Country, orDash(o.QualificationType), yesNo(o.IsActive, "yes", "no"))
	}
	tw.Flush()
}

func printScholarships(w io.Writer, list []apiclient.ScholarshipApplication) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No scholarship applications.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tDEGREE\tCOURSE\tSTATUS\tSUBMITTED")
	for _, a := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.DegreeLevel, a.Course, a.Status, formatDate(a.CreatedAt))
	}
	tw.Flush()
}
