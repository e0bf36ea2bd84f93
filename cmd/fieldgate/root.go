package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the FieldGate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fieldgate",
		Short: "FieldGate - a field gateway for pluggable edge modules",
		Long: `FieldGate hosts a set of modules that exchange messages over an
in-process bus. Modules run as subprocesses, Lua scripts, or compiled-in
factories, and are wired together by a properties file.`,
	}

	// Global flag for properties file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "properties file path")

	// Add subcommands
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewValidateCmd())

	return cmd
}

// NewValidateCmd creates the validate subcommand. It loads the properties
// file and converts every module entry, reporting the first problem found.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the properties file without starting anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadProperties(configFile, nil)
			if err != nil {
				return err
			}
			descs, err := cfg.Descriptors()
			if err != nil {
				return err
			}
			cmd.Printf("properties ok: %d module(s)\n", len(descs))
			return nil
		},
	}
}
