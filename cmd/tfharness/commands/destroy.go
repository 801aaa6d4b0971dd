package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tfharness/tfharness/pkg/harness"
)

func newDestroyCommand() *cobra.Command {
	var (
		vars    map[string]string
		varFile string
		targets []string
		clean   bool
	)

	cmd := &cobra.Command{
		Use:   "destroy <module>",
		Short: "Destroy a module's resources",
		Example: `  # Destroy and remove local engine state
  tfharness destroy vpc --clean`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Root().Version)
			if err != nil {
				return err
			}
			defer app.shutdown(cmd.Context())

			h, mod, cleanup, err := app.moduleHarness(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer cleanup()

			out, err := h.Destroy(cmd.Context(), harness.DestroyOptions{
				Vars:    mergeVars(mod.Vars, vars),
				VarFile: firstNonEmpty(varFile, mod.VarFile),
				Targets: targets,
			})
			if err != nil {
				return err
			}
			fmt.Print(out)

			if clean {
				if err := h.CleanDir(); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringToStringVar(&vars, "var", nil, "configuration variable (key=value)")
	cmd.Flags().StringVar(&varFile, "var-file", "", "variable definitions file")
	cmd.Flags().StringSliceVarP(&targets, "target", "t", nil, "limit the destroy to specific resources")
	cmd.Flags().BoolVar(&clean, "clean", false, "remove .terraform, local state and terragrunt caches afterwards")

	return cmd
}
