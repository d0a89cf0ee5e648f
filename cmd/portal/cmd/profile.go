package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/portal"
	"github.com/skwf/portal/session"
)

func newProfileCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage your applicant profile",
	}
	cmd.AddCommand(newProfileCompleteCmd(c))
	return cmd
}

func newProfileCompleteCmd(c *cli) *cobra.Command {
	var (
		education, experience []string
		from                  string
	)
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Submit your education and experience history",
		Long: `Submit your education and experience history. Entries are comma
separated key=value lists:

  portal profile complete \
    --education institute=NUST,degree="BS Computer Science",cgpa=3.4,start=2018,end=2022 \
    --experience institute="Systems Ltd",role=Intern,start=2022-06

Alternatively --from reads a JSON document with "education" and
"experience" arrays.`,
		Args: cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			req, err := profileRequest(from, education, experience)
			if err != nil {
				return err
			}
			next, err := app.CompleteProfile(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Profile completed.")
			printNext(cmd.OutOrStdout(), next)
			return nil
		}),
	}
	cmd.Flags().StringArrayVar(&education, "education", nil, "Education entry: institute=,degree=,cgpa=,start=,end=")
	cmd.Flags().StringArrayVar(&experience, "experience", nil, "Experience entry: institute=,role=,start=,end=")
	cmd.Flags().StringVar(&from, "from", "", "Read the profile from a JSON file")
	return cmd
}

func profileRequest(from string, education, experience []string) (apiclient.ProfileRequest, error) {
	var req apiclient.ProfileRequest
	if from != "" {
		data, err := os.ReadFile(from)
		if err != nil {
			return req, fmt.Errorf("reading profile: %w", err)
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("parsing profile: %w", err)
		}
	}
	for _, s := range education {
		kv, err := parseFields(s, "institute", "degree", "cgpa", "start", "end")
		if err != nil {
			return req, fmt.Errorf("--education: %w", err)
		}
		req.Education = append(req.Education, session.Education{
			Institute: kv["institute"],
			Degree:    kv["degree"],
			CGPA:      kv["cgpa"],
			StartDate: kv["start"],
			EndDate:   kv["end"],
		})
	}
	for _, s := range experience {
		kv, err := parseFields(s, "institute", "role", "start", "end")
		if err != nil {
			return req, fmt.Errorf("--experience: %w", err)
		}
		req.Experience = append(req.Experience, session.Experience{
			Institute: kv["institute"],
			Role:      kv["role"],
			StartDate: kv["start"],
			EndDate:   kv["end"],
		})
	}
	return req, nil
}

// parseFields splits a comma separated key=value list. Values may be double
// quoted to contain commas.
func parseFields(s string, allowed ...string) (map[string]string, error) {
	known := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		known[k] = true
	}
	out := make(map[string]string)
	for _, part := range splitUnquoted(s) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("%q is not key=value", part)
		}
		k = strings.ToLower(strings.TrimSpace(k))
		if !known[k] {
			return nil, fmt.Errorf("unknown key %q (want one of %s)", k, strings.Join(allowed, ", "))
		}
		out[k] = strings.Trim(strings.TrimSpace(v), `"`)
	}
	return out, nil
}

func splitUnquoted(s string) []string {
	var (
		parts   []string
		b       strings.Builder
		inQuote bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == ',' && !inQuote:
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	return append(parts, b.String())
}
