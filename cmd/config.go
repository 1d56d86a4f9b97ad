package cmd

import (
	"encoding/json"
	"fmt"
	"github.com/sardine-ai/go-installer-config/client"
	"github.com/sardine-ai/go-installer-config/model"
	"github.com/spf13/cobra"
	"io"
	"os"
)

// targetFlags name a single config file.
type targetFlags struct {
	category string
	file     string
	chain    string
	base     string
}

func (t *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&t.category, "type", "t", "", "Config type (channel, chain or other)")
	cmd.Flags().StringVarP(&t.file, "file", "f", "", "Config file name, e.g. user_config_nodes.ini")
	cmd.Flags().StringVar(&t.chain, "chain", "", "Chain name (chain configs only)")
	cmd.Flags().StringVar(&t.base, "base", "", "Base chain, cosmos or substrate (chain configs only)")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("file")
}

func (t *targetFlags) target() (model.Target, error) {
	return model.ParseTarget(t.category, t.file, t.chain, t.base)
}

func (o *options) client(cmd *cobra.Command) (*client.Client, error) {
	if _, err := o.settings(cmd); err != nil {
		return nil, err
	}
	return client.NewClient(o.serverURL)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newGetCmd(o *options) *cobra.Command {
	t := &targetFlags{}
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print a config file as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := t.target()
			if err != nil {
				return err
			}
			c, err := o.client(cmd)
			if err != nil {
				return err
			}
			doc, err := c.ReadConfig(cmd.Context(), target)
			if err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}
	t.register(cmd)
	return cmd
}

func newSetCmd(o *options) *cobra.Command {
	t := &targetFlags{}
	var input string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace a config file with a JSON document",
		Long: `set reads a JSON object of sections from --input (or stdin when the
input is "-") and saves it as the given config file.`,
		Example: `  installer set -t chain -f user_config_nodes.ini --chain cosmoshub --base cosmos -i nodes.json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := t.target()
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			var doc model.Document
			if err := json.NewDecoder(r).Decode(&doc); err != nil {
				return fmt.Errorf("failed to parse document: %w", err)
			}

			c, err := o.client(cmd)
			if err != nil {
				return err
			}
			if err := c.WriteConfig(cmd.Context(), target, doc); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", target.File)
			return nil
		},
	}
	t.register(cmd)
	cmd.Flags().StringVarP(&input, "input", "i", "-", "JSON document to save")
	return cmd
}

func newDeleteCmd(o *options) *cobra.Command {
	t := &targetFlags{}
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := t.target()
			if err != nil {
				return err
			}
			c, err := o.client(cmd)
			if err != nil {
				return err
			}
			if err := c.DeleteConfig(cmd.Context(), target); err != nil {
				return fmt.Errorf("failed to delete config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", target.File)
			return nil
		},
	}
	t.register(cmd)
	return cmd
}

func newFilesCmd(o *options) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "files",
		Short: "List the config files allowed for a config type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := model.ParseCategory(category)
			if err != nil {
				return err
			}
			cl, err := o.client(cmd)
			if err != nil {
				return err
			}
			files, err := cl.Files(cmd.Context(), c)
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "type", "t", "", "Config type (channel, chain or other)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newChainsCmd(o *options) *cobra.Command {
	var base string
	cmd := &cobra.Command{
		Use:   "chains",
		Short: "List the chains with saved configs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			family, err := model.ParseChainFamily(base)
			if err != nil {
				return err
			}
			c, err := o.client(cmd)
			if err != nil {
				return err
			}
			names, err := c.ChainNames(cmd.Context(), family)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "Base chain, cosmos or substrate")
	_ = cmd.MarkFlagRequired("base")
	return cmd
}
