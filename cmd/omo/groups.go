package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"omomoney/internal/core"
	"omomoney/internal/services"
)

const dateLayout = "2006-01-02"

func (r *runner) groupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Manage home groups",
	}

	var currency string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a home group and join it as admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			g, err := r.app.Service.CreateHomeGroup(r.ctx, args[0], currency)
			if err != nil {
				return err
			}
			fmt.Fprintf(r.out, "%s\t%s\t%s\n", g.ID, g.Name, g.Currency)
			return nil
		},
	}
	codes := make([]string, 0, 2)
	for _, c := range core.Currencies() {
		codes = append(codes, string(c.Code))
	}
	add.Flags().StringVar(&currency, "currency", string(core.DefaultCurrency), "currency code, one of "+strings.Join(codes, ", "))

	list := &cobra.Command{
		Use:   "list",
		Short: "List your home groups",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			groups := r.app.Service.HomeGroups()
			if len(groups) == 0 {
				fmt.Fprintln(r.out, "No home groups yet. Create one with: omo groups add NAME")
				return nil
			}
			for _, g := range groups {
				fmt.Fprintf(r.out, "%s\t%s\t%s\n", g.ID, g.Name, g.Currency)
			}
			return nil
		},
	}

	rename := &cobra.Command{
		Use:   "rename GROUP NAME",
		Short: "Rename a home group",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			g, err := r.resolveGroup(args[0])
			if err != nil {
				return err
			}
			return r.app.Service.RenameHomeGroup(r.ctx, g.ID, args[1])
		},
	}

	del := &cobra.Command{
		Use:   "delete GROUP",
		Short: "Delete a home group with all its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			g, err := r.resolveGroup(args[0])
			if err != nil {
				return err
			}
			return r.app.Service.DeleteHomeGroup(r.ctx, g.ID)
		},
	}

	cmd.AddCommand(add, list, rename, del)
	return cmd
}

// resolveGroup finds one of the user's groups by ID or case-insensitive
// name. An empty ref picks the only group when there is exactly one.
func (r *runner) resolveGroup(ref string) (core.HomeGroup, error) {
	groups := r.app.Service.HomeGroups()
	ref = strings.TrimSpace(ref)
	if ref == "" {
		if len(groups) == 1 {
			return groups[0], nil
		}
		return core.HomeGroup{}, errors.New("select a home group with --group")
	}
	for _, g := range groups {
		if g.ID == ref || strings.EqualFold(g.Name, ref) {
			return g, nil
		}
	}
	return core.HomeGroup{}, fmt.Errorf("%w: %s", services.ErrNotMember, ref)
}

func (r *runner) entriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Manage ledger entries",
	}

	var (
		group    string
		date     string
		category string
		income   bool
	)
	add := &cobra.Command{
		Use:   "add TITLE",
		Short: "Add an entry to a home group",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			g, err := r.resolveGroup(group)
			if err != nil {
				return err
			}
			in := services.EntryInput{
				HomeGroupID: g.ID,
				Title:       args[0],
				Category:    category,
				Income:      income,
			}
			if date != "" {
				d, err := time.ParseInLocation(dateLayout, date, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
				}
				in.Date = d
			}
			e, err := r.app.Service.AddEntry(r.ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(r.out, "%s\t%s\t%s\t%s\n", e.ID, e.Date.Format(dateLayout), e.Title, e.Category.DisplayName())
			return nil
		},
	}
	add.Flags().StringVarP(&group, "group", "g", "", "home group ID or name")
	add.Flags().StringVar(&date, "date", "", "entry date (YYYY-MM-DD), defaults to now")
	add.Flags().StringVarP(&category, "category", "c", core.Otros.DisplayName(), "category name")
	add.Flags().BoolVar(&income, "income", false, "record as income")

	var (
		title       string
		newDate     string
		newCategory string
	)
	edit := &cobra.Command{
		Use:   "edit ENTRY_ID",
		Short: "Change an entry's title, date or category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var d time.Time
			if newDate != "" {
				var err error
				if d, err = time.ParseInLocation(dateLayout, newDate, time.Local); err != nil {
					return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", newDate)
				}
			}
			return r.app.Service.UpdateEntry(r.ctx, args[0], func(e *core.Entry) error {
				if cmd.Flags().Changed("title") {
					e.Title = strings.TrimSpace(title)
				}
				if !d.IsZero() {
					e.Date = d
				}
				if cmd.Flags().Changed("category") {
					e.Category = core.CategoryFromDisplayName(newCategory)
				}
				return nil
			})
		},
	}
	edit.Flags().StringVar(&title, "title", "", "new title")
	edit.Flags().StringVar(&newDate, "date", "", "new date (YYYY-MM-DD)")
	edit.Flags().StringVarP(&newCategory, "category", "c", "", "new category name")

	del := &cobra.Command{
		Use:   "delete ENTRY_ID",
		Short: "Delete an entry and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return r.app.Service.DeleteEntry(r.ctx, args[0])
		},
	}

	cmd.AddCommand(add, edit, del)
	return cmd
}

func (r *runner) itemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Manage the items of an entry",
	}

	var (
		quantity string
		paid     bool
		unpaid   bool
	)
	add := &cobra.Command{
		Use:   "add ENTRY_ID MONEY DESCRIPTION",
		Short: "Add an item to an entry",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			in := services.ItemInput{
				EntryID:     args[0],
				Money:       args[1],
				Quantity:    quantity,
				Description: args[2],
			}
			switch {
			case paid && unpaid:
				return errors.New("--paid and --unpaid are exclusive")
			case paid:
				in.Paid = &paid
			case unpaid:
				v := false
				in.Paid = &v
			}
			it, err := r.app.Service.AddItem(r.ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(r.out, "%s\t%s\tx%d\t%s\t%s\n", it.ID, it.Money.StringFixed(2), it.Quantity(), it.Description, it.Payed)
			return nil
		},
	}
	add.Flags().StringVarP(&quantity, "quantity", "q", "", "units bought, blank for one")
	add.Flags().BoolVar(&paid, "paid", false, "mark the item paid")
	add.Flags().BoolVar(&unpaid, "unpaid", false, "mark the item unpaid")

	var undo bool
	pay := &cobra.Command{
		Use:   "pay ITEM_ID",
		Short: "Mark an item paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return r.app.Service.SetItemPaid(r.ctx, args[0], !undo)
		},
	}
	pay.Flags().BoolVar(&undo, "undo", false, "mark the item unpaid instead")

	del := &cobra.Command{
		Use:   "delete ITEM_ID",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return r.app.Service.DeleteItem(r.ctx, args[0])
		},
	}

	cmd.AddCommand(add, pay, del)
	return cmd
}
