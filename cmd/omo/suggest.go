package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"omomoney/internal/cache"
	"omomoney/internal/events"
	applog "omomoney/internal/log"
	"omomoney/internal/search"
)

func (r *runner) suggestCmd() *cobra.Command {
	var (
		exclude   string
		debounced bool
	)
	cmd := &cobra.Command{
		Use:   "suggest [QUERY]",
		Short: "Suggest titles and item descriptions for a search text",
		Long: "Suggest titles and item descriptions for a search text.\n\n" +
			"With --stdin every input line is a keystroke-level query; only the\n" +
			"result for the latest line is printed once typing pauses.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if debounced {
				return r.suggestStream(os.Stdin, exclude)
			}
			if len(args) == 0 {
				return errors.New("a query is required unless --stdin is set")
			}
			printSuggestions(r.out, r.app.Service.Suggest(args[0], exclude))
			return nil
		},
	}
	cmd.Flags().StringVar(&exclude, "exclude", "", "hide a suggestion equal to this text")
	cmd.Flags().BoolVar(&debounced, "stdin", false, "read queries from stdin through the debounced suggester")
	return cmd
}

// suggestStream feeds every line of in to a debounced suggester and prints
// published results. After EOF it waits for the last query's result.
func (r *runner) suggestStream(in io.Reader, exclude string) error {
	// Keeps only the newest published result.
	results := make(chan search.Result, 1)
	sg, mgr := r.app.Suggester(func(res search.Result) {
		for {
			select {
			case results <- res:
				return
			default:
			}
			select {
			case <-results:
			default:
			}
		}
	})
	defer mgr.Stop()
	defer sg.Close()
	if lru, ok := sg.Cache().(*cache.LRUCache[[]search.Suggestion]); ok {
		defer func() {
			st := lru.Stats()
			r.app.Logger.Debug("Suggestion cache", "size", st.Size, "hits", st.Hits, "misses", st.Misses)
		}()
	}

	var last uint64
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		last = sg.Query(strings.TrimRight(scanner.Text(), "\r"), exclude)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read queries: %w", err)
	}
	if last == 0 {
		return nil
	}

	for {
		select {
		case <-r.ctx.Done():
			return r.ctx.Err()
		case res := <-results:
			if res.State == search.StateReady {
				fmt.Fprintf(r.out, "%q\n", res.Query)
				printSuggestions(r.out, res.Suggestions)
			}
			if res.Generation >= last {
				return nil
			}
		}
	}
}

func printSuggestions(w io.Writer, out []search.Suggestion) {
	if len(out) == 0 {
		fmt.Fprintln(w, "No suggestions.")
		return
	}
	for _, s := range out {
		fmt.Fprintf(w, "%-6s %s\n", s.Type.Label(), s.Text)
	}
}

func (r *runner) watchCmd() *cobra.Command {
	var attempts int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print change notifications published by other omo processes",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg := r.app.Config
			if cfg.AMQPURL == "" {
				return errors.New("change notifications are disabled: set AMQP_URL")
			}
			client, err := events.ConnectWithRetry(r.ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, attempts, r.app.Logger)
			if err != nil {
				return err
			}
			defer client.Close()

			logger := applog.FromContext(r.ctx)
			err = client.Subscribe(r.ctx, func(msg *events.ChangeMessage) error {
				logger.Debug("Change received",
					applog.NewFields().WithEntity(msg.Kind, msg.ID).WithRevision(msg.Revision).ToSlice()...)
				fmt.Fprintf(r.out, "%s\t%-6s %-10s %s\trev %d\n",
					msg.Timestamp.Format("15:04:05"), msg.Op, msg.Kind, msg.ID, msg.Revision)
				return nil
			})
			if r.ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVar(&attempts, "attempts", 5, "broker connection attempts")
	return cmd
}
