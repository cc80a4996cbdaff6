package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/thereayou/taskchat/internal/chat"
	"github.com/thereayou/taskchat/internal/config"
)

var (
	email    string
	password string
	name     string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and remember the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := passwordFromFlagOrStdin()
		if err != nil {
			return err
		}
		session, err := chat.Login(cmd.Context(), httpClient(), cfg.APIURL, email, pw)
		if err != nil {
			return err
		}
		return remember(cmd, session)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := passwordFromFlagOrStdin()
		if err != nil {
			return err
		}
		session, err := chat.Register(cmd.Context(), httpClient(), cfg.APIURL, name, email, pw)
		if err != nil {
			return err
		}
		return remember(cmd, session)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the token and forget the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := openSession()
		if err != nil {
			return err
		}
		if err := client.Logout(cmd.Context()); err != nil {
			logger.Warn().Err(err).Msg("server logout failed, removing local session anyway")
		}
		if err := config.RemoveSession(cfg.SessionFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user as the server sees it",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, client, err := openSession()
		if err != nil {
			return err
		}
		u, err := client.Me(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n  %s\n", selfStyle.Render(u.Name), dimStyle.Render(u.Email), session.BaseURL())
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVar(&email, "email", "", "account email")
		c.Flags().StringVar(&password, "password", "", "password (read from stdin when empty)")
		_ = c.MarkFlagRequired("email")
	}
	registerCmd.Flags().StringVar(&name, "name", "", "display name")
	_ = registerCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
}

func remember(cmd *cobra.Command, s *chat.Session) error {
	token, err := s.Token()
	if err != nil {
		return err
	}
	u := s.User()
	err = config.SaveSession(cfg.SessionFile, config.StoredSession{
		BaseURL:   s.BaseURL(),
		Token:     token,
		UserID:    u.ID,
		UserName:  u.Name,
		UserEmail: u.Email,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", selfStyle.Render(u.Name))
	return nil
}

func passwordFromFlagOrStdin() (string, error) {
	if password != "" {
		return password, nil
	}
	fmt.Fprint(os.Stderr, "password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
