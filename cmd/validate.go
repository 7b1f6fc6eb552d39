package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/adminstyler/adminstyler/internal/settings"
	"github.com/adminstyler/adminstyler/internal/watcher"
)

var validateCmd = &cobra.Command{
	Use:   "validate <theme-file>",
	Short: "Check a theme file without rendering it",
	Long: `Validate runs every value in a YAML theme file through the sanitizer
and reports the outcome per key. Keys the styler does not know are
listed as ignored. Exits non-zero if any known value is invalid.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	raw, err := watcher.ParseThemeFile(args[0])
	if err != nil {
		return err
	}

	invalid := 0
	seen := make(map[string]bool, len(raw))

	// Report in registry order so output is stable across runs.
	for _, def := range settings.Registry() {
		value, present := raw[def.Key]
		if !present {
			continue
		}
		seen[def.Key] = true

		result := settings.Sanitize(value, def)
		if result.Valid {
			fmt.Fprintf(cmd.OutOrStdout(), "ok      %s = %s\n", def.Key, result.Value)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "invalid %s: %s\n", def.Key, result.Reason)
			invalid++
		}
	}

	var unknown []string
	for key := range raw {
		if !seen[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		fmt.Fprintf(cmd.OutOrStdout(), "ignored %s (unknown setting)\n", key)
	}

	if invalid > 0 {
		return fmt.Errorf("%d invalid theme value(s)", invalid)
	}
	return nil
}
