package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/querystate/internal/errors"
	"github.com/vango-dev/querystate/pkg/adapter"
	"github.com/vango-dev/querystate/pkg/options"
	"github.com/vango-dev/querystate/pkg/querystate"
)

func inspectCmd() *cobra.Command {
	var (
		keys    []string
		sets    []string
		push    bool
		asJSON  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "inspect <query>",
		Short: "Parse a query string with typed keys",
		Long: `Parse a query string with typed keys and print the resolved state.

Keys are given as name=parser[:default]. Known parsers: string, int, int64,
float, bool, time, timestamp, duration, json, csv and enum(a|b|...).

With --set, the values are written through the update queue and the
resulting query string is printed. An empty value removes the key.

Examples:
  querystate inspect "lat=48.85&lng=2.35" --key lat=float --key lng=float
  querystate inspect "page=x" --key page=int:1
  querystate inspect "q=go" --key q=string --key page=int:1 --set page=2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs := make([]keySpec, 0, len(keys))
			for _, k := range keys {
				spec, err := parseKeySpec(k)
				if err != nil {
					return err
				}
				specs = append(specs, spec)
			}
			return runInspect(cmd.Context(), cmd.OutOrStdout(), inspectRequest{
				Query:   strings.TrimPrefix(args[0], "?"),
				Keys:    specs,
				Sets:    sets,
				Push:    push,
				JSON:    asJSON,
				Timeout: timeout,
			})
		},
	}

	cmd.Flags().StringArrayVarP(&keys, "key", "k", nil, "Key as name=parser[:default] (repeatable)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Write name=value through the queue (repeatable)")
	cmd.Flags().BoolVar(&push, "push", false, "Record --set writes as a new history entry")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait for the flush")

	return cmd
}

type inspectRequest struct {
	Query   string
	Keys    []keySpec
	Sets    []string
	Push    bool
	JSON    bool
	Timeout time.Duration
}

type inspectResult struct {
	State   map[string]any    `json:"state"`
	Sources map[string]string `json:"sources"`
	Query   string            `json:"query"`
	History string            `json:"history,omitempty"`
}

func runInspect(ctx context.Context, w io.Writer, req inspectRequest) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mem, err := adapter.NewMemoryFromQuery(req.Query)
	if err != nil {
		return errors.New("E402").Wrap(err)
	}

	keys := make(querystate.Keys, len(req.Keys))
	for _, spec := range req.Keys {
		keys[spec.Name] = spec.Parser
	}
	rt := querystate.NewRuntime(mem, querystate.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	b := rt.Bind(keys)
	defer b.Close()

	result := inspectResult{Query: mem.SearchParams().Encode()}
	if len(req.Sets) > 0 {
		values := make(querystate.Values, len(req.Sets))
		for _, s := range req.Sets {
			name, raw, _ := strings.Cut(s, "=")
			parser, ok := keys[name]
			if !ok {
				return errors.New("E501").WithKey(name).WithDetail("--set for a key without --key")
			}
			if raw == "" {
				values[name] = nil
				continue
			}
			v, err := parser.ParseAny(raw)
			if err != nil {
				return errors.New("E200").WithKey(name).Wrap(err)
			}
			values[name] = v
		}

		var opts []options.Options
		if req.Push {
			opts = append(opts, options.Push())
		}
		waitCtx, cancel := context.WithTimeout(ctx, req.Timeout)
		defer cancel()
		params, err := b.Apply(values, opts...).Wait(waitCtx)
		if err != nil {
			return err
		}
		result.Query = params.Encode()
		if calls := mem.Calls(); len(calls) > 0 {
			result.History = calls[len(calls)-1].Navigation.History.String()
		}
	}

	result.State = b.State()
	result.Sources = sources(mem, keys)

	if req.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printInspect(w, result)
	return nil
}

// sources reports where each key's value came from: the URL, the parser's
// default, or nowhere.
func sources(mem *adapter.Memory, keys querystate.Keys) map[string]string {
	params := mem.SearchParams()
	out := make(map[string]string, len(keys))
	for name, p := range keys {
		_, hasDefault := p.DefaultAny()
		switch {
		case params.Has(name):
			if _, err := p.ParseAny(params.Get(name)); err == nil {
				out[name] = "url"
			} else if hasDefault {
				out[name] = "default (invalid url value)"
			} else {
				out[name] = "none (invalid url value)"
			}
		case hasDefault:
			out[name] = "default"
		default:
			out[name] = "none"
		}
	}
	return out
}

func printInspect(w io.Writer, r inspectResult) {
	names := make([]string, 0, len(r.State))
	for name := range r.State {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE")
	for _, name := range names {
		v := r.State[name]
		display := "<nil>"
		if v != nil {
			display = fmt.Sprintf("%v", v)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, display, r.Sources[name])
	}
	tw.Flush()

	fmt.Fprintf(w, "\nquery: %s\n", r.Query)
	if r.History != "" {
		fmt.Fprintf(w, "history: %s\n", r.History)
	}
}
