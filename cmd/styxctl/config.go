package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MGallo-Code/styx/internal/httpctx"
	"github.com/MGallo-Code/styx/internal/rules"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Interact with integration configs",
	}
	cmd.AddCommand(newConfigCheckCmd())
	return cmd
}

func newConfigCheckCmd() *cobra.Command {
	var (
		rawURL, userAgent, body string
		headers, cookies        []string
	)

	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Parse an integration config and show which integration a request matches",
		Example: `  styxctl config check integration.json
  styxctl config check integration.json --url https://shop.example.com/checkout --cookie segment=vip`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading config: %w", err)
			}
			ci, err := rules.Parse(data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version %d, %d integrations\n", ci.Version, len(ci.Integrations))
			if rawURL == "" {
				return nil
			}

			req, err := syntheticRequest(rawURL, userAgent, body, headers, cookies)
			if err != nil {
				return err
			}
			matched, err := rules.Match(ci, rawURL, req)
			if err != nil {
				return err
			}
			if matched == nil {
				fmt.Fprintln(out, "no integration matched")
				return nil
			}
			action := matched.ActionType
			if action == "" {
				action = rules.ActionQueue
			}
			fmt.Fprintf(out, "matched %q (action %s, event %s)\n", matched.Name, action, matched.EventID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&rawURL, "url", "", "Absolute request URL to evaluate")
	f.StringVar(&userAgent, "user-agent", "", "User-Agent header")
	f.StringVar(&body, "body", "", "Request body for body triggers")
	f.StringArrayVar(&headers, "header", nil, "Request header as name=value (repeatable)")
	f.StringArrayVar(&cookies, "cookie", nil, "Request cookie as name=value (repeatable)")
	return cmd
}

// syntheticRequest builds the request the rules engine evaluates.
func syntheticRequest(rawURL, userAgent, body string, headers, cookies []string) (httpctx.Request, error) {
	r, err := http.NewRequest(http.MethodGet, rawURL, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if userAgent != "" {
		r.Header.Set("User-Agent", userAgent)
	}
	for _, h := range headers {
		name, value, ok := strings.Cut(h, "=")
		if !ok {
			return nil, fmt.Errorf("header %q: expected name=value", h)
		}
		r.Header.Add(name, value)
	}
	for _, c := range cookies {
		name, value, ok := strings.Cut(c, "=")
		if !ok {
			return nil, fmt.Errorf("cookie %q: expected name=value", c)
		}
		r.AddCookie(&http.Cookie{Name: name, Value: url.QueryEscape(value)})
	}
	req, err := httpctx.NewRequest(r, int64(len(body)))
	if err != nil {
		return nil, err
	}
	return req, nil
}
