package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zulandar/warwatch/internal/models"
)

func newCountryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "country",
		Short: "Manage the countries channels and organizations act for",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <server> <name> <shortname>",
		Short: "Register a country on a server",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore(configPath(cmd))
			if err != nil {
				return err
			}
			server, err := st.ServerByName(args[0])
			if err != nil {
				return err
			}
			c := &models.Country{ServerID: server.ID, Name: args[1], Shortname: strings.ToUpper(args[2])}
			if err := st.CreateCountry(c); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Country %s (%s) registered on %s\n", c.Name, c.Shortname, server.Name)
			return nil
		},
	})
	return cmd
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage registered chat accounts",
	}

	var admin bool
	add := &cobra.Command{
		Use:   "add <account>",
		Short: "Register a chat account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore(configPath(cmd))
			if err != nil {
				return err
			}
			level := models.LevelUser
			if admin {
				level = models.LevelAdmin
			}
			u, err := st.SaveUser(args[0], level)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s saved (level %d)\n", u.Account, u.Level)
			return nil
		},
	}
	add.Flags().BoolVar(&admin, "admin", false, "grant the admin level used by private commands")

	grant := &cobra.Command{
		Use:   "grant <account> <server> <country> <level>",
		Short: "Set a user's access level on a country (0 revokes)",
		Long:  "Levels: 1 member, 2 officer, 3 leader. Level 0 removes the access.",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := strconv.Atoi(args[3])
			if err != nil || level < models.AccessNone || level > models.AccessLeader {
				return fmt.Errorf("invalid level %q (0-3)", args[3])
			}
			_, st, err := openStore(configPath(cmd))
			if err != nil {
				return err
			}
			u, err := st.UserByAccount(args[0])
			if err != nil {
				return err
			}
			server, err := st.ServerByName(args[1])
			if err != nil {
				return err
			}
			country, err := st.CountryByName(server.ID, args[2])
			if err != nil {
				return err
			}
			if err := st.Grant(u.ID, country.ID, level); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now has level %d on %s (%s)\n", u.Account, level, country.Name, server.Name)
			return nil
		},
	}

	cmd.AddCommand(add, grant)
	return cmd
}

func newChannelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage chat channels and their country links",
	}

	var key string
	add := &cobra.Command{
		Use:   "add <#channel>",
		Short: "Register a chat channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !strings.HasPrefix(args[0], "#") {
				return fmt.Errorf("channel names start with #")
			}
			_, st, err := openStore(configPath(cmd))
			if err != nil {
				return err
			}
			ch, err := st.SaveChannel(args[0], key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Channel %s saved\n", ch.Name)
			return nil
		},
	}
	add.Flags().StringVar(&key, "key", "", "channel key used when joining")

	var types []string
	link := &cobra.Command{
		Use:   "link <#channel> <server> <country>",
		Short: "Let a channel speak for a country",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, t := range types {
				switch strings.ToLower(t) {
				case models.ChannelMilitary, models.ChannelMotivate:
				default:
					return fmt.Errorf("unknown channel type %q (military, motivate)", t)
				}
			}
			_, st, err := openStore(configPath(cmd))
			if err != nil {
				return err
			}
			ch, err := st.ChannelByName(args[0])
			if err != nil {
				return err
			}
			server, err := st.ServerByName(args[1])
			if err != nil {
				return err
			}
			country, err := st.CountryByName(server.ID, args[2])
			if err != nil {
				return err
			}
			if err := st.LinkChannel(ch.ID, country.ID, types); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s linked to %s (%s) as [%s]\n",
				ch.Name, country.Name, server.Name, strings.Join(types, ","))
			return nil
		},
	}
	link.Flags().StringSliceVarP(&types, "types", "t", nil, "channel types: military, motivate")

	cmd.AddCommand(add, link)
	return cmd
}
