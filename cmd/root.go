package cmd

import (
	"github.com/sardine-ai/go-installer-config/settings"
	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:8000"

// options are the persistent flags shared by every command.
type options struct {
	configFile string
	root       string
	listen     string
	logLevel   string
	jsonLogs   bool
	serverURL  string
}

// settings loads the settings file and applies flag overrides on top.
func (o *options) settings(cmd *cobra.Command) (*settings.Settings, error) {
	s, err := settings.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("root") {
		s.Root = o.root
	}
	if flags.Changed("listen") {
		s.Listen = o.listen
	}
	if flags.Changed("log-level") {
		s.Log.Level = o.logLevel
	}
	if flags.Changed("json") && o.jsonLogs {
		s.Log.Format = "json"
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := s.ConfigureLogging(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewRootCmd builds the installer command tree.
func NewRootCmd() *cobra.Command {
	o := &options{}
	rootCmd := &cobra.Command{
		Use:   "installer",
		Short: "Installer config backend",
		Long: `installer serves and edits the INI config files written by the web
installer.

Config files live under <root>/config:
  - channels/<file>
  - chains/<cosmos|substrate>/<chain>/<file>
  - others/<file>`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&o.configFile, "config", "c", "", "Path to the settings YAML file")
	flags.StringVar(&o.root, "root", ".", "Install root holding the config directory")
	flags.StringVar(&o.listen, "listen", ":8000", "Address the server listens on")
	flags.StringVar(&o.logLevel, "log-level", "info", "Log level")
	flags.BoolVar(&o.jsonLogs, "json", false, "Output logs in JSON format")
	flags.StringVar(&o.serverURL, "server", defaultServerURL, "URL of the installer server")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newServeCmd(o),
		newGetCmd(o),
		newSetCmd(o),
		newDeleteCmd(o),
		newFilesCmd(o),
		newChainsCmd(o),
	)
	return rootCmd
}

// Execute runs the installer command line.
func Execute() error {
	return NewRootCmd().Execute()
}
