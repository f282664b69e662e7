package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zulandar/warwatch/internal/models"
)

func newOrgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "org",
		Aliases: []string{"organization"},
		Short:   "Manage the game accounts the bot acts through",
	}
	cmd.AddCommand(newOrgAddCmd())
	return cmd
}

func newOrgAddCmd() *cobra.Command {
	var password, shortname string
	cmd := &cobra.Command{
		Use:   "add <server> <country> <username>",
		Short: "Register an organization account for a country",
		Long: "Registers the organization that scrapes and acts for a country. " +
			"The password is prompted without echo unless --password is given.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrgAdd(cmd, configPath(cmd), args, password, shortname)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	cmd.Flags().StringVar(&shortname, "shortname", "", "short label for the organization")
	return cmd
}

// readPassword is replaceable in tests.
var readPassword = func(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Password: ")
	defer fmt.Fprintln(out)
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		return string(b), err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runOrgAdd(cmd *cobra.Command, path string, args []string, password, shortname string) error {
	_, st, err := openStore(path)
	if err != nil {
		return err
	}
	server, err := st.ServerByName(args[0])
	if err != nil {
		return err
	}
	country, err := st.CountryByName(server.ID, args[1])
	if err != nil {
		return err
	}
	if password == "" {
		password, err = readPassword(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	org := &models.Organization{
		CountryID: country.ID,
		Username:  args[2],
		Password:  password,
		Shortname: shortname,
	}
	if err := st.CreateOrganization(org); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Organization %s #%d registered for %s on %s\n",
		org.Username, org.ID, country.Name, server.Name)
	return nil
}
