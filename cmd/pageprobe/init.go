package main

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/pageprobe/internal/config"
)

//go:embed templates/pageprobe.yaml
var configTemplate []byte

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a .pageprobe configuration file",
		Long: `Init writes a commented .pageprobe configuration file.

The file holds defaults for every probe and per-site overrides such as
cookies, extra headers, the emulated device and full page capture.

Examples:
  # Create .pageprobe in the current directory
  pageprobe init

  # Create the file somewhere else
  pageprobe init -o ~/.pageprobe

  # Overwrite an existing file
  pageprobe init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite an existing configuration file")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if err := writeConfigTemplate(outputPath, force); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure per-site settings such as:")
	fmt.Fprintln(out, "  - cookies and headers sent before navigation")
	fmt.Fprintln(out, "  - the emulated device")
	fmt.Fprintln(out, "  - full page screenshots")
	return nil
}

// writeConfigTemplate writes the embedded template to path. An existing
// file is only replaced when force is set.
func writeConfigTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", path)
		}
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// The file may end up holding session cookies.
	if err := os.WriteFile(path, configTemplate, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}
