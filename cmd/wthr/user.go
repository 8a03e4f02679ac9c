package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/swelljoe/wthrdash/internal/accounts"
	"github.com/swelljoe/wthrdash/internal/location"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage local accounts and saved locations",
	}
	cmd.AddCommand(
		newRegisterCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newSaveCmd(a),
		newLocationsCmd(a),
	)
	return cmd
}

func (a *app) registry() *accounts.Registry {
	return accounts.NewRegistry(a.db, accounts.Options{MaxSavedLocations: a.cfg.MaxSavedLocations})
}

// readSecret returns flagValue, or reads one line from in when it is empty.
func readSecret(in io.Reader, out io.Writer, prompt, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newRegisterCmd(a *app) *cobra.Command {
	var name, email, password, confirm string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			pw, err := readSecret(in, a.out, "Password: ", password)
			if err != nil {
				return err
			}
			again, err := readSecret(in, a.out, "Confirm password: ", confirm)
			if err != nil {
				return err
			}

			u, err := a.registry().Register(name, email, pw, again)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Registered %s <%s>\n", u.Name, u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	cmd.Flags().StringVar(&confirm, "confirm", "", "Password confirmation (prompted when omitted)")
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as an existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readSecret(cmd.InOrStdin(), a.out, "Password: ", password)
			if err != nil {
				return err
			}
			u, err := a.registry().Login(email, pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Logged in as %s\n", u.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.registry().Logout(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.registry().Current()
			if err != nil {
				return err
			}
			if u == nil {
				fmt.Fprintln(a.out, "Not logged in")
				return nil
			}
			fmt.Fprintf(a.out, "%s <%s>\n", u.Name, u.Email)
			return nil
		},
	}
}

var errNotLoggedIn = errors.New("not logged in (run: wthr user login)")

func (a *app) currentUser() (*accounts.User, error) {
	u, err := a.registry().Current()
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errNotLoggedIn
	}
	return u, nil
}

func newSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save <location>",
		Short: "Save a location to the logged in account",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.currentUser()
			if err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}

			loc, err := location.NewResolver(client).ResolveByQuery(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return errors.New(location.Message(err))
			}
			if err := a.registry().SaveLocation(u.ID, *loc); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Saved %s\n", loc.Label())
			return nil
		},
	}
}

func newLocationsCmd(a *app) *cobra.Command {
	var remove int

	cmd := &cobra.Command{
		Use:   "locations",
		Short: "List (or remove) saved locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.currentUser()
			if err != nil {
				return err
			}
			reg := a.registry()

			if cmd.Flags().Changed("remove") {
				// Listed numbers start at 1.
				if err := reg.RemoveLocation(u.ID, remove-1); err != nil {
					return err
				}
			}

			locs, err := reg.Locations(u.ID)
			if err != nil {
				return err
			}
			if len(locs) == 0 {
				fmt.Fprintln(a.out, "No saved locations")
				return nil
			}
			for i, l := range locs {
				fmt.Fprintf(a.out, "%d. %s (%.4f, %.4f)\n", i+1, l.Label(), l.Lat, l.Lon)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&remove, "remove", 0, "Remove the saved location with this number")
	return cmd
}
