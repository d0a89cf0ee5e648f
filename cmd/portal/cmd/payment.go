package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/portal"
)

func newPaymentCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Pay and track the verification fee",
	}
	cmd.AddCommand(
		newPaymentSubmitCmd(c),
		newPaymentStatusCmd(c),
		newPaymentWatchCmd(c),
	)
	return cmd
}

func newPaymentSubmitCmd(c *cli) *cobra.Command {
	var amount, screenshot string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit the fee with a transfer screenshot",
		Long: fmt.Sprintf(`Submit the verification fee. The amount is %s or %s; the screenshot
is an image of the bank transfer.`, formatPKR(apiclient.AmountStandard), formatPKR(apiclient.AmountExtended)),
		Args: cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("--amount: %w", err)
			}
			shot, err := readFile(screenshot)
			if err != nil {
				return err
			}
			p, err := app.SubmitPayment(cmd.Context(), amt, shot)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Payment submitted for review.")
			printPayment(cmd.OutOrStdout(), p)
			return nil
		}),
	}
	cmd.Flags().StringVar(&amount, "amount", apiclient.AmountExtended.String(), "Amount in PKR")
	cmd.Flags().StringVar(&screenshot, "screenshot", "", "Image of the transfer")
	return cmd
}

func newPaymentStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the payment once",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			p, err := app.PaymentStatus(cmd.Context())
			if err != nil {
				return err
			}
			printPayment(cmd.OutOrStdout(), p)
			return nil
		}),
	}
}

func newPaymentWatchCmd(c *cli) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Wait until the payment is verified or rejected",
		Long: `Check the payment at a fixed interval until an administrator verifies
or rejects it. Ctrl-C stops watching.`,
		Args: cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, _ []string) {
			if cmd.Flags().Changed("interval") {
				c.cfg.Poll.Interval = interval
			}
		},
		RunE: c.withApp(func(cmd *cobra.Command, _ []string, app *portal.App) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			res, err := app.WatchPayment(ctx, func(status apiclient.PaymentStatus, _ *apiclient.Payment) {
				fmt.Fprintf(out, "%s  %s\n", time.Now().Format("15:04:05"), status)
			})
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(out, "Stopped watching.")
				return nil
			}
			if err != nil {
				return err
			}
			switch res.Status {
			case apiclient.PaymentVerified:
				fmt.Fprintln(out, "Payment verified.")
			case apiclient.PaymentRejected:
				fmt.Fprintln(out, "Payment rejected. You can submit it again.")
			}
			printPayment(out, res.Payment)
			printNext(out, res.Next)
			return nil
		}),
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between checks (PORTAL_POLL_INTERVAL)")
	return cmd
}
