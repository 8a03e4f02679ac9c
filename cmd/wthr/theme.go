package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/swelljoe/wthrdash/internal/db"
)

func newThemeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark|toggle]",
		Short:     "Show or change the dashboard theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"light", "dark", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				theme db.Theme
				err   error
			)
			switch {
			case len(args) == 0:
				theme, err = a.db.Theme()
			case args[0] == "toggle":
				theme, err = a.db.ToggleTheme()
			default:
				theme, err = db.ParseTheme(args[0])
				if err == nil {
					err = a.db.SetTheme(theme)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, theme)
			return nil
		},
	}
}
