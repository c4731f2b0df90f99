package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IshaanChat/ubiquitous-octo-pancake/httpclient"
)

type streamOptions struct {
	method string
	query  []string
	lines  bool
	sse    bool
}

func newStreamCommand(root *rootOptions) *cobra.Command {
	opts := &streamOptions{}
	cmd := &cobra.Command{
		Use:   "stream PATH",
		Short: "Stream a response body to stdout without buffering it",
		Example: `  snowctl stream /api/now/table/incident --query sysparm_limit=10000
  snowctl stream /api/now/export/events --sse`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parsePairs("query", opts.query)
			if err != nil {
				return err
			}
			req := httpclient.Request{Method: strings.ToUpper(opts.method), Path: args[0], Query: query}
			return withClient(cmd.Context(), root, func(ctx context.Context, client *httpclient.Client) error {
				stream, err := client.OpenStream(ctx, req)
				if err != nil {
					return err
				}
				defer stream.Close()

				out := cmd.OutOrStdout()
				switch {
				case opts.sse:
					return copyEvents(out, stream)
				case opts.lines:
					return copyLines(out, stream)
				default:
					return copyChunks(out, stream)
				}
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.method, "method", "X", "GET", "HTTP method")
	f.StringArrayVarP(&opts.query, "query", "q", nil, "query parameter key=value (repeatable)")
	f.BoolVar(&opts.lines, "lines", false, "emit the body line by line")
	f.BoolVar(&opts.sse, "sse", false, "decode the body as server-sent events")
	cmd.MarkFlagsMutuallyExclusive("lines", "sse")
	return cmd
}

func copyChunks(w io.Writer, s *httpclient.Stream) error {
	for chunk, err := range s.Chunks() {
		if err != nil {
			return err
		}
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

func copyLines(w io.Writer, s *httpclient.Stream) error {
	for line, err := range s.Lines() {
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func copyEvents(w io.Writer, s *httpclient.Stream) error {
	events := s.Events()
	defer events.Close()
	for {
		ev, err := events.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		name := ev.Event
		if name == "" {
			name = "message"
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", name, ev.Data); err != nil {
			return err
		}
	}
}
