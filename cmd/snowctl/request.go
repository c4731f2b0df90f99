package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/IshaanChat/ubiquitous-octo-pancake/errors"
	"github.com/IshaanChat/ubiquitous-octo-pancake/httpclient"
)

type requestOptions struct {
	query   []string
	headers []string
	data    string
	raw     bool
	noAuth  bool
}

func newRequestCommand(root *rootOptions) *cobra.Command {
	opts := &requestOptions{}
	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Send one request and print the response body",
		Example: `  snowctl request GET /api/now/table/incident --query sysparm_limit=5
  snowctl request POST /api/now/table/incident --data '{"short_description":"disk full"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.build(args[0], args[1])
			if err != nil {
				return err
			}
			return withClient(cmd.Context(), root, func(ctx context.Context, client *httpclient.Client) error {
				resp, err := client.Execute(ctx, req)
				if resp != nil {
					if werr := writeBody(cmd.OutOrStdout(), resp.Body, opts.raw); werr != nil {
						return werr
					}
				}
				return err
			})
		},
	}
	f := cmd.Flags()
	f.StringArrayVarP(&opts.query, "query", "q", nil, "query parameter key=value (repeatable)")
	f.StringArrayVarP(&opts.headers, "header", "H", nil, "request header key=value (repeatable)")
	f.StringVarP(&opts.data, "data", "d", "", "JSON request body")
	f.BoolVar(&opts.raw, "raw", false, "print the body as received instead of indenting JSON")
	f.BoolVar(&opts.noAuth, "no-auth", false, "send the request without credentials")
	return cmd
}

func (o *requestOptions) build(method, path string) (httpclient.Request, error) {
	req := httpclient.Request{
		Method:   strings.ToUpper(method),
		Path:     path,
		SkipAuth: o.noAuth,
	}
	var err error
	if req.Query, err = parsePairs("query", o.query); err != nil {
		return req, err
	}
	if req.Headers, err = parsePairs("header", o.headers); err != nil {
		return req, err
	}
	if o.data != "" {
		if !json.Valid([]byte(o.data)) {
			return req, apperrors.InvalidInput("--data must be valid JSON")
		}
		req.Body = json.RawMessage(o.data)
	}
	return req, nil
}

func parsePairs(flag string, pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, apperrors.InvalidInput(fmt.Sprintf("--%s %q: expected key=value", flag, p))
		}
		out[k] = v
	}
	return out, nil
}

// writeBody prints body, indenting it when it is JSON.
func writeBody(w io.Writer, body []byte, raw bool) error {
	if len(body) == 0 {
		return nil
	}
	if !raw {
		var buf bytes.Buffer
		if err := json.Indent(&buf, body, "", "  "); err == nil {
			body = buf.Bytes()
		}
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	if body[len(body)-1] != '\n' {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}
