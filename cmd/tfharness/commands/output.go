package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tfharness/tfharness/pkg/harness"
)

func newOutputCommand() *cobra.Command {
	var (
		useCache bool
		name     string
	)

	cmd := &cobra.Command{
		Use:   "output <module>",
		Short: "Show a module's output values",
		Example: `  # All outputs as JSON
  tfharness output vpc

  # One output value
  tfharness output vpc --name vpc_id`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Root().Version)
			if err != nil {
				return err
			}
			defer app.shutdown(cmd.Context())

			h, _, cleanup, err := app.moduleHarness(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := h.Output(cmd.Context(), harness.OutputOptions{
				Name:     name,
				UseCache: useCache,
			})
			if err != nil {
				return err
			}

			switch {
			case result.Values != nil:
				data, err := json.MarshalIndent(result.Values.Raw(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
			case result.Docs != nil:
				for _, doc := range result.Docs {
					data, err := json.MarshalIndent(doc.Raw(), "", "  ")
					if err != nil {
						return err
					}
					fmt.Println(string(data))
				}
			default:
				fmt.Print(result.Raw)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&useCache, "use-cache", false, "serve unchanged results from the cache")
	cmd.Flags().StringVar(&name, "name", "", "show a single output value")

	return cmd
}
