package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/contact-relay/pkg/mail"
)

// NewVerifyCommand dials the configured SMTP server, authenticates and quits without
// sending anything. It exits non-zero when the connection cannot be established.
func NewVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the SMTP connection and credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), startupVerifyTimeout)
			defer cancel()

			sender := mail.NewSender(rt.cfg.Mail, nil)
			if err := sender.Verify(ctx); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "SMTP connection to %s:%d verified\n", sender.GetHost(), sender.GetPort())
			return nil
		},
	}
}
