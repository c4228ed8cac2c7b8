package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fivetwenty-io/fmdata/internal/constants"
	"github.com/fivetwenty-io/fmdata/pkg/fmclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	var (
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Start a Data API session",
		Long:  "Log in to the selected connection and keep the session token for later commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConnectionConfig(viper.GetViper())
			if err != nil {
				return err
			}

			defer closeStore(config.SessionStore)

			if username != "" {
				config.Username = username
			}

			if config.Username == "" {
				config.Username, err = prompt("Username: ")
				if err != nil {
					return err
				}
			}

			if password != "" {
				config.Password = password
			}

			if config.Password == "" {
				config.Password, err = promptPassword()
				if err != nil {
					return err
				}
			}

			client, err := fmclient.New(cmd.Context(), config)
			if err != nil {
				return err
			}

			_, err = client.Login(cmd.Context())
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			printSuccess(cmd, "Logged in to %s (%s/%s) as %s", client.Name(), config.Host, config.Database, config.Username)

			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "account name (default from config)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the Data API session",
		Long:  "End the session of the selected connection on the server and forget its token",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeClient, err := openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer closeClient()

			err = client.Disconnect(cmd.Context())
			if err != nil {
				return err
			}

			printSuccess(cmd, "Logged out of %s", client.Name())

			return nil
		},
	}
}

func prompt(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	return strings.TrimSpace(line), nil
}

func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd()) // #nosec G115 -- stdin descriptor fits in int
	if !term.IsTerminal(fd) {
		return "", constants.ErrPasswordRequired
	}

	fmt.Fprint(os.Stderr, "Password: ")

	bytePassword, err := term.ReadPassword(fd)

	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if len(bytePassword) == 0 {
		return "", constants.ErrPasswordRequired
	}

	return string(bytePassword), nil
}
