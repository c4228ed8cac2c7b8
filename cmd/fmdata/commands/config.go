package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/fivetwenty-io/fmdata/internal/constants"
	"github.com/fivetwenty-io/fmdata/pkg/fmclient"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	keyDefaultConnection = "default_connection"
	keyPasswordSetting   = "password"
)

// Config is the layout of config.yml.
type Config struct {
	DefaultConnection string                    `json:"default_connection,omitempty" yaml:"default_connection,omitempty"`
	Connections       map[string]map[string]any `json:"connections,omitempty"        yaml:"connections,omitempty"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage connections",
		Long:  "Show and edit the connections kept in the configuration file",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())
	cmd.AddCommand(newConfigUseCommand())
	cmd.AddCommand(newConfigRemoveCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show configured connections",
		Long:  "Display the configured connections. Passwords are masked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfigFile(configFilePath())
			if err != nil {
				return err
			}

			masked := maskConfig(config)

			handled, err := writeStructured(cmd.OutOrStdout(), masked)
			if handled {
				return err
			}

			return displayConfigTable(cmd, masked)
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a connection setting",
		Long: `Set a setting of the connection selected with --connection. Setting
default_connection changes which connection is used when none is given.`,
		Example: `  fmdata config set -n crm host fm.example.com
  fmdata config set -n crm database CRM
  fmdata config set default_connection crm`,
		Args: cobra.ExactArgs(constants.MinimumArgumentCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFilePath()

			config, err := loadConfigFile(path)
			if err != nil {
				return err
			}

			err = setConfigValue(config, viper.GetString("connection"), args[0], args[1])
			if err != nil {
				return err
			}

			err = saveConfigFile(path, config)
			if err != nil {
				return err
			}

			printSuccess(cmd, "Set %s", args[0])

			return nil
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Remove a connection setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFilePath()

			config, err := loadConfigFile(path)
			if err != nil {
				return err
			}

			err = unsetConfigValue(config, viper.GetString("connection"), args[0])
			if err != nil {
				return err
			}

			err = saveConfigFile(path, config)
			if err != nil {
				return err
			}

			printSuccess(cmd, "Unset %s", args[0])

			return nil
		},
	}
}

func newConfigUseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "use NAME",
		Short: "Select the default connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFilePath()

			config, err := loadConfigFile(path)
			if err != nil {
				return err
			}

			if _, ok := config.Connections[args[0]]; !ok {
				return fmt.Errorf("%w: %s", constants.ErrConnectionNotFound, args[0])
			}

			config.DefaultConnection = args[0]

			err = saveConfigFile(path, config)
			if err != nil {
				return err
			}

			printSuccess(cmd, "Using connection %s", args[0])

			return nil
		},
	}
}

func newConfigRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFilePath()

			config, err := loadConfigFile(path)
			if err != nil {
				return err
			}

			if _, ok := config.Connections[args[0]]; !ok {
				return fmt.Errorf("%w: %s", constants.ErrConnectionNotFound, args[0])
			}

			delete(config.Connections, args[0])

			if config.DefaultConnection == args[0] {
				config.DefaultConnection = ""
			}

			err = saveConfigFile(path, config)
			if err != nil {
				return err
			}

			printSuccess(cmd, "Removed connection %s", args[0])

			return nil
		},
	}
}

// configFilePath is the file viper read, or the default location.
func configFilePath() string {
	if file := viper.ConfigFileUsed(); file != "" {
		return file
	}

	if file := viper.GetString("config"); file != "" {
		return file
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return constants.ConfigFileName
	}

	return filepath.Join(home, constants.ConfigDirName, constants.ConfigFileName)
}

func loadConfigFile(path string) (*Config, error) {
	config := &Config{Connections: map[string]map[string]any{}}

	// #nosec G304
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Connections == nil {
		config.Connections = map[string]map[string]any{}
	}

	return config, nil
}

func saveConfigFile(path string, config *Config) error {
	err := os.MkdirAll(filepath.Dir(path), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = os.WriteFile(path, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setConfigValue stores value under the connection. Scalars are decoded as
// YAML so that true, 3 and 30s keep their types in the file.
func setConfigValue(config *Config, connection, key, value string) error {
	if key == keyDefaultConnection {
		config.DefaultConnection = value

		return nil
	}

	if !slices.Contains(fmclient.ConnectionKeys, key) {
		return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	name := connectionFor(config, connection)

	var typed any

	err := yaml.Unmarshal([]byte(value), &typed)
	if err != nil || typed == nil || key == keyPasswordSetting {
		typed = value
	}

	if config.Connections[name] == nil {
		config.Connections[name] = map[string]any{}
	}

	config.Connections[name][key] = typed

	return nil
}

func unsetConfigValue(config *Config, connection, key string) error {
	if key == keyDefaultConnection {
		config.DefaultConnection = ""

		return nil
	}

	if !slices.Contains(fmclient.ConnectionKeys, key) {
		return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	name := connectionFor(config, connection)

	settings, ok := config.Connections[name]
	if !ok {
		return fmt.Errorf("%w: %s", constants.ErrConnectionNotFound, name)
	}

	delete(settings, key)

	return nil
}

func connectionFor(config *Config, connection string) string {
	if connection != "" {
		return connection
	}

	if config.DefaultConnection != "" {
		return config.DefaultConnection
	}

	return constants.DefaultConnectionName
}

func maskConfig(config *Config) *Config {
	masked := &Config{
		DefaultConnection: config.DefaultConnection,
		Connections:       make(map[string]map[string]any, len(config.Connections)),
	}

	for name, settings := range config.Connections {
		copied := make(map[string]any, len(settings))

		for key, value := range settings {
			if key == keyPasswordSetting {
				value = constants.MaskedSecret
			}

			copied[key] = value
		}

		masked.Connections[name] = copied
	}

	return masked
}

func displayConfigTable(cmd *cobra.Command, config *Config) error {
	if len(config.Connections) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No connections configured.")

		return nil
	}

	names := make([]string, 0, len(config.Connections))
	for name := range config.Connections {
		names = append(names, name)
	}

	sort.Strings(names)

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("", "Name", "Host", "Database", "Username", "Password")

	for _, name := range names {
		settings := config.Connections[name]

		current := ""
		if name == connectionFor(config, "") {
			current = constants.CheckMarkSymbol
		}

		_ = table.Append([]string{
			current,
			name,
			formatValue(settings["host"]),
			formatValue(settings["database"]),
			formatValue(settings["username"]),
			formatValue(settings[keyPasswordSetting]),
		})
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}
