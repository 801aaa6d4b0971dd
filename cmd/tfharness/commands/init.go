package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tfharness/tfharness/pkg/harness"
)

func newInitCommand() *cobra.Command {
	var (
		useCache  bool
		backend   bool
		pluginDir string
		initVars  map[string]string
	)

	cmd := &cobra.Command{
		Use:   "init <module>",
		Short: "Prepare a module: link extra files, run engine init, select workspace",
		Example: `  # Initialize a module declared in the config
  tfharness -c tfharness.yaml init vpc

  # Initialize an ad-hoc module directory without backend state
  tfharness init ./modules/vpc --backend=false`,
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

			initOpts := harness.InitOptions{
				PluginDir: pluginDir,
				UseCache:  useCache,
			}
			if !backend {
				initOpts.Backend = boolPtr(false)
			}
			if len(initVars) > 0 {
				initOpts.InitVars = make(map[string]any, len(initVars))
				for k, v := range initVars {
					initOpts.InitVars[k] = v
				}
			}

			out, err := h.Setup(cmd.Context(), harness.SetupOptions{
				ExtraFiles: mod.ExtraFiles,
				Workspace:  mod.Workspace,
				Init:       initOpts,
			})
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useCache, "use-cache", false, "serve unchanged results from the cache")
	cmd.Flags().BoolVar(&backend, "backend", true, "configure the state backend during init")
	cmd.Flags().StringVar(&pluginDir, "plugin-dir", "", "local plugin directory for init")
	cmd.Flags().StringToStringVar(&initVars, "backend-config", nil, "backend configuration variable (key=value)")

	return cmd
}

func boolPtr(v bool) *bool {
	return &v
}
