package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/MGallo-Code/styx/internal/signing"
	"github.com/MGallo-Code/styx/internal/token"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint and inspect admission tokens",
	}
	cmd.AddCommand(newTokenMintCmd(), newTokenInspectCmd())
	return cmd
}

func newTokenMintCmd() *cobra.Command {
	var (
		eventID, secret, queueID, redirectType, ip string
		validity                                   int
		extendable                                 bool
		ttl                                        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Print a signed admission token",
		Example: `  styxctl token mint --event e1 --secret s3cret --queue-id q1 --extendable
  styxctl token mint --event e1 --secret s3cret --validity 3 --ip 203.0.113.7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := token.Params{
				EventID:          eventID,
				QueueID:          queueID,
				Timestamp:        time.Now().Add(ttl).Unix(),
				ExtendableCookie: extendable,
				RedirectType:     redirectType,
			}
			if cmd.Flags().Changed("validity") {
				p.CookieValidityMinutes = &validity
			}
			if ip != "" {
				p.HashedIP = signing.Sign(secret, ip)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token.Mint(p, secret))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&eventID, "event", "", "Event id the token admits to (required)")
	f.StringVar(&secret, "secret", "", "Customer secret key (required)")
	f.StringVar(&queueID, "queue-id", "", "Queue id to embed")
	f.IntVar(&validity, "validity", 0, "Fixed cookie validity in minutes")
	f.BoolVar(&extendable, "extendable", false, "Allow the session cookie to be extended")
	f.StringVar(&redirectType, "redirect-type", "queue", "Redirect type (queue, safetynet, idle, disabled, debug)")
	f.DurationVar(&ttl, "ttl", 3*time.Minute, "Time until the token expires")
	f.StringVar(&ip, "ip", "", "Bind the token to this client IP")
	_ = cmd.MarkFlagRequired("event")
	_ = cmd.MarkFlagRequired("secret")
	return cmd
}

func newTokenInspectCmd() *cobra.Command {
	var eventID, secret, ip string

	cmd := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Decode a token and validate it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := token.Parse(args[0])
			if p == nil {
				return fmt.Errorf("token is empty")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "event:       %s\n", p.EventID)
			fmt.Fprintf(out, "queue id:    %s\n", p.QueueID)
			fmt.Fprintf(out, "expires:     %s\n", time.Unix(p.Timestamp, 0).UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "extendable:  %t\n", p.ExtendableCookie)
			validity := "-"
			if p.CookieValidityMinutes != nil {
				validity = strconv.Itoa(*p.CookieValidityMinutes)
			}
			fmt.Fprintf(out, "validity:    %s\n", validity)
			fmt.Fprintf(out, "redirect:    %s\n", p.RedirectType)
			fmt.Fprintf(out, "ip bound:    %t\n", p.HashedIP != "")

			if secret == "" {
				fmt.Fprintln(out, "verdict:     skipped (no --secret)")
				return nil
			}
			target := eventID
			if target == "" {
				target = p.EventID
			}
			if code := p.Validate(secret, target, ip, time.Now()); code != token.CodeNone {
				fmt.Fprintf(out, "verdict:     invalid (%s)\n", code)
				return fmt.Errorf("token rejected: %s", code)
			}
			fmt.Fprintln(out, "verdict:     ok")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&secret, "secret", "", "Customer secret key; validation is skipped without it")
	f.StringVar(&eventID, "event", "", "Event id to validate against (default: the token's own)")
	f.StringVar(&ip, "ip", "", "Client IP to check an IP-bound token against")
	return cmd
}
