package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adminstyler/adminstyler/internal/cssgen"
	"github.com/adminstyler/adminstyler/internal/settings"
	"github.com/adminstyler/adminstyler/internal/watcher"
)

var generateCmd = &cobra.Command{
	Use:     "generate <theme-file>",
	Aliases: []string{"g"},
	Short:   "Render a theme file to CSS",
	Long: `Generate reads a YAML theme file, sanitizes every value, and writes
the stylesheet produced by the valid ones. Invalid values are reported
on stderr but do not block their valid siblings unless --strict is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringP("output", "o", "-", "output file (\"-\" for stdout)")
	generateCmd.Flags().Bool("strict", false, "fail if any theme value is invalid")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	strict, _ := cmd.Flags().GetBool("strict")

	raw, err := watcher.ParseThemeFile(args[0])
	if err != nil {
		return err
	}

	valid, fieldErrors := settings.SanitizeAll(raw)
	for _, fieldErr := range fieldErrors {
		fmt.Fprintf(cmd.ErrOrStderr(), "invalid: %s: %s\n", fieldErr.Key, fieldErr.Reason)
	}
	if strict && len(fieldErrors) > 0 {
		return fmt.Errorf("%d invalid theme value(s)", len(fieldErrors))
	}

	css := cssgen.Generate(valid)
	if output == "-" || output == "" {
		fmt.Fprint(cmd.OutOrStdout(), css)
		return nil
	}

	if err := os.WriteFile(output, []byte(css), 0o644); err != nil {
		return fmt.Errorf("writing stylesheet: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", output)
	return nil
}
