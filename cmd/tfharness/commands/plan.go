package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tfharness/tfharness/pkg/harness"
	"github.com/tfharness/tfharness/pkg/parse"
)

func newPlanCommand() *cobra.Command {
	var (
		useCache bool
		vars     map[string]string
		varFile  string
		targets  []string
		outJSON  string
	)

	cmd := &cobra.Command{
		Use:   "plan <module>",
		Short: "Plan a module, optionally writing the parsed plan as JSON",
		Example: `  # Plan with variables
  tfharness plan vpc --var cidr=10.0.0.0/16

  # Plan and write the machine-readable plan document
  tfharness plan vpc --out-json plan.json

  # Serve an unchanged plan from the cache
  tfharness plan vpc --use-cache`,
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

			opts := harness.PlanOptions{
				Vars:     mergeVars(mod.Vars, vars),
				VarFile:  firstNonEmpty(varFile, mod.VarFile),
				Targets:  targets,
				UseCache: useCache,
			}

			if outJSON == "" {
				out, err := h.Plan(cmd.Context(), opts)
				if err != nil {
					return err
				}
				fmt.Print(out)
				return nil
			}

			docs, err := h.PlanDocuments(cmd.Context(), opts)
			if err != nil {
				return err
			}
			payload, err := planPayload(docs)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(outJSON, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", outJSON, err)
			}
			fmt.Printf("plan written to %s\n", outJSON)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useCache, "use-cache", false, "serve unchanged results from the cache")
	cmd.Flags().StringToStringVar(&vars, "var", nil, "configuration variable (key=value)")
	cmd.Flags().StringVar(&varFile, "var-file", "", "variable definitions file")
	cmd.Flags().StringSliceVarP(&targets, "target", "t", nil, "limit the plan to specific resources")
	cmd.Flags().StringVar(&outJSON, "out-json", "", "write the parsed plan document to this file")

	return cmd
}

// planPayload shapes parsed plan documents for JSON output: one document's
// payload directly, a slice of payloads in run-all mode. The engine can
// emit nothing at all (an empty run-all scope), which is an error here
// rather than an empty file.
func planPayload(docs []*parse.PlanDocument) (any, error) {
	switch len(docs) {
	case 0:
		return nil, errors.New("engine produced no plan document")
	case 1:
		return docs[0].Raw(), nil
	}
	raws := make([]map[string]any, len(docs))
	for i, doc := range docs {
		raws[i] = doc.Raw()
	}
	return raws, nil
}

// mergeVars overlays CLI vars on the module's configured vars.
func mergeVars(base map[string]any, override map[string]string) map[string]any {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
