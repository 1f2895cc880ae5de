package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"omomoney/internal/core"
	"omomoney/internal/ledger"
)

const barWidth = 20

var emptyMessages = map[ledger.EmptyState]string{
	ledger.EmptyWelcome:            "Welcome! Add your first entry with: omo entries add TITLE",
	ledger.EmptyMultipleFilters:    "No entries match the current filters. Try clearing some of them.",
	ledger.EmptySearchNoResults:    "No entries match your search.",
	ledger.EmptyCategoryNoResults:  "No entries in this category for the selected period.",
	ledger.EmptyNoEntriesThisMonth: "No entries yet this month.",
	ledger.EmptyDateNoResults:      "No entries in the selected period.",
	ledger.EmptyGeneric:            "Nothing to show.",
}

func (r *runner) viewCmd() *cobra.Command {
	var (
		group    string
		month    int
		year     int
		allYear  bool
		category string
		search   string
	)
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Show a home group's entries grouped by day with totals",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			g, err := r.resolveGroup(group)
			if err != nil {
				return err
			}
			c := ledger.Criteria{
				HomeGroupID: g.ID,
				MonthYear:   monthYear(time.Now(), year, month),
				ShowAllYear: allYear,
				Category:    category,
				SearchText:  search,
			}
			v, err := r.app.Service.View(r.ctx, c)
			if err != nil {
				return err
			}
			renderView(r.out, v, g.Currency, r.app.Service.Corpus().Items)
			return nil
		},
	}
	cmd.Flags().StringVarP(&group, "group", "g", "", "home group ID or name")
	cmd.Flags().IntVarP(&month, "month", "m", 0, "month 1-12, defaults to the current one")
	cmd.Flags().IntVarP(&year, "year", "y", 0, "year, defaults to the current one")
	cmd.Flags().BoolVar(&allYear, "all-year", false, "show the whole year")
	cmd.Flags().StringVarP(&category, "category", "c", core.AllCategoriesLabel, "category name")
	cmd.Flags().StringVarP(&search, "search", "s", "", "search titles, categories and item descriptions")
	return cmd
}

// monthYear builds the period anchor from flags; zero or out-of-range values
// keep the corresponding part of now.
func monthYear(now time.Time, year, month int) time.Time {
	y, m := now.Year(), now.Month()
	if year > 0 {
		y = year
	}
	if month >= 1 && month <= 12 {
		m = time.Month(month)
	}
	return time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
}

func renderView(w io.Writer, v ledger.View, currency string, items []core.Item) {
	if v.Empty != ledger.NotEmpty {
		fmt.Fprintln(w, emptyMessages[v.Empty])
		return
	}

	byEntry := core.IndexItemsByEntry(items)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, sec := range v.Sections {
		fmt.Fprintf(tw, "%s\n", sec.Day.Format("Mon 02 Jan 2006"))
		for _, e := range sec.Entries {
			var match *ledger.SearchMatch
			if m, ok := v.Match(e.ID); ok {
				match = &m
			}
			entryItems := byEntry[e.ID]
			total := ledger.EntryDisplayTotal(e, entryItems, match)
			sign := ""
			if e.IsIncome() {
				sign = "+"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s%s\t%s\t%s\n",
				e.ID, e.Title, sign, core.FormatMoney(total, currency),
				e.Category.DisplayName(), ledger.EntryPaymentState(entryItems))
			if match != nil && match.HasItemMatches() {
				for _, it := range entryItems {
					if slices.Contains(match.MatchingItemIDs, it.ID) {
						fmt.Fprintf(tw, "    · %s\t%s\t\t\t\n", it.Description, core.FormatMoney(it.Money, currency))
					}
				}
			}
		}
	}
	tw.Flush()

	fmt.Fprintf(w, "\nSpent:   %s\n", core.FormatMoney(v.TotalSpent, currency))
	fmt.Fprintf(w, "Pending: %s\n", core.FormatMoney(v.TotalPending, currency))

	if len(v.CategoryStats) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, s := range v.CategoryStats {
		filled := min(max(int(s.Progress(v.ProgressScale)*barWidth+0.5), 0), barWidth)
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
			s.Category.DisplayName(),
			core.FormatMoney(s.TotalSpent, currency),
			s.EntryCount,
			strings.Repeat("#", filled)+strings.Repeat(".", barWidth-filled))
	}
	tw.Flush()

	if unspent := ledger.UnspentCategories(v.CategoryStats); len(unspent) > 0 {
		names := make([]string, len(unspent))
		for i, c := range unspent {
			names[i] = c.DisplayName()
		}
		fmt.Fprintf(w, "No spend: %s\n", strings.Join(names, ", "))
	}
}

func categoriesCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:         "categories",
		Short:       "List the category filter options",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipBackend: "true"},
		Run: func(*cobra.Command, []string) {
			fmt.Fprintln(out, core.AllCategoriesLabel)
			for _, c := range core.Categories() {
				fmt.Fprintf(out, "%s\t%s\t%s\n", c.DisplayName(), c, c.Color())
			}
		},
	}
}
