package cmd

import (
	"errors"
	"fmt"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/guard"
	"github.com/skwf/portal/portal"
	"github.com/skwf/portal/session"
)

func newSignupCmd(c *cli) *cobra.Command {
	var (
		req           apiclient.SignupRequest
		front, back   string
		fake          bool
		generatedPass bool
	)
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Long: `Create an account and sign in. With --fake, any of name, email, phone
and password left empty are filled with generated values, which is handy
against a development API.`,
		Args: cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			if fake {
				generatedPass = fillFake(&req)
			}
			var err error
			if req.CNICFront, err = readFile(front); err != nil {
				return err
			}
			if req.CNICBack, err = readFile(back); err != nil {
				return err
			}
			next, err := app.Signup(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Signed up as %s (%s)\n", req.Email, app.Session().Role())
			if generatedPass {
				fmt.Fprintf(out, "Generated password: %s\n", req.Password)
			}
			printNext(out, next)
			return nil
		}),
	}
	f := cmd.Flags()
	f.StringVar(&req.Name, "name", "", "Full name")
	f.StringVar(&req.Email, "email", "", "Email address")
	f.StringVar(&req.Phone, "phone", "", "Phone number")
	f.StringVar(&req.CNIC, "cnic", "", "CNIC number")
	f.StringVar(&req.Address, "address", "", "Postal address")
	f.StringVar(&req.Password, "password", "", "Password (at least 6 characters)")
	f.StringVar(&req.ConfirmPassword, "confirm-password", "", "Repeat the password")
	f.StringVar(&req.AdminSecretKey, "admin-secret", "", "Register an administrator with this key")
	f.StringVar(&front, "cnic-front", "", "Image of the CNIC front")
	f.StringVar(&back, "cnic-back", "", "Image of the CNIC back")
	f.BoolVar(&fake, "fake", false, "Fill missing fields with generated values")
	return cmd
}

// fillFake completes req with generated values. It reports whether the
// password was generated.
func fillFake(req *apiclient.SignupRequest) bool {
	if req.Name == "" {
		req.Name = gofakeit.Name()
	}
	if req.Email == "" {
		req.Email = gofakeit.Email()
	}
	if req.Phone == "" {
		req.Phone = gofakeit.Phone()
	}
	if req.Address == "" {
		req.Address = gofakeit.Address().Address
	}
	if req.Password != "" {
		return false
	}
	req.Password = gofakeit.Password(true, true, true, false, false, 12)
	req.ConfirmPassword = req.Password
	return true
}

func newLoginCmd(c *cli) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			next, err := app.Login(cmd.Context(), email, password)
			var apiErr *apiclient.Error
			if errors.As(err, &apiErr) && apiErr.PaymentPending {
				fmt.Fprintln(cmd.ErrOrStderr(), "Your payment is awaiting verification. Try again once it has been reviewed.")
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", app.Session().User.Email)
			printNext(cmd.OutOrStdout(), next)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			if err := app.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		}),
	}
}

func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			s := app.Session()
			if !s.IsLoggedIn || s.User == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Not signed in.")
				fmt.Fprintf(cmd.ErrOrStderr(), "→ %s\n", guard.AreaLogin)
				return errRedirected
			}
			printUser(cmd, s.User)
			printNext(cmd.OutOrStdout(), app.Landing())
			return nil
		}),
	}
}

func newRefreshCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload your account from the portal",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			u, err := app.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			printUser(cmd, u)
			printNext(cmd.OutOrStdout(), app.Landing())
			return nil
		}),
	}
}

func printUser(cmd *cobra.Command, u *session.User) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "ID:       %s\n", u.ID)
	fmt.Fprintf(w, "Name:     %s\n", u.Name)
	fmt.Fprintf(w, "Email:    %s\n", u.Email)
	fmt.Fprintf(w, "Role:     %s\n", u.Role)
	if u.Role == session.RoleAdmin {
		return
	}
	fmt.Fprintf(w, "Profile:  %s\n", yesNo(u.ProfileCompleted, "complete", "incomplete"))
	fmt.Fprintf(w, "Payment:  %s\n", yesNo(u.PaymentVerified, "verified", "not verified"))
	fmt.Fprintf(w, "Credit:   %d hours\n", u.CreditHours)
}

func yesNo(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}
