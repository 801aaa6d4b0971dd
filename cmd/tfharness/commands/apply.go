package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tfharness/tfharness/pkg/harness"
)

func newApplyCommand() *cobra.Command {
	var (
		useCache bool
		vars     map[string]string
		varFile  string
		targets  []string
	)

	cmd := &cobra.Command{
		Use:   "apply <module>",
		Short: "Apply a module",
		Example: `  # Apply with the module's configured variables
  tfharness -c tfharness.yaml apply vpc

  # Apply a subset of resources
  tfharness apply vpc --target null_resource.default`,
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

			out, err := h.Apply(cmd.Context(), harness.ApplyOptions{
				Vars:     mergeVars(mod.Vars, vars),
				VarFile:  firstNonEmpty(varFile, mod.VarFile),
				Targets:  targets,
				UseCache: useCache,
			})
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useCache, "use-cache", false, "serve unchanged results from the cache")
	cmd.Flags().StringToStringVar(&vars, "var", nil, "configuration variable (key=value)")
	cmd.Flags().StringVar(&varFile, "var-file", "", "variable definitions file")
	cmd.Flags().StringSliceVarP(&targets, "target", "t", nil, "limit the apply to specific resources")

	return cmd
}
