package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tfharness/tfharness/pkg/harness"
	"github.com/tfharness/tfharness/pkg/policy"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Evaluate Rego policies against module plans",
	}
	cmd.AddCommand(newPolicyCheckCommand())
	cmd.AddCommand(newPolicyLsCommand())
	return cmd
}

func newPolicyCheckCommand() *cobra.Command {
	var (
		useCache bool
		vars     map[string]string
		varFile  string
	)

	cmd := &cobra.Command{
		Use:   "check <module>",
		Short: "Plan a module and evaluate the loaded policies against it",
		Example: `  # Check the vpc module against built-in and configured policies
  tfharness policy check vpc

  # Reuse a cached plan when the module is unchanged
  tfharness policy check vpc --use-cache`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Root().Version)
			if err != nil {
				return err
			}
			defer app.shutdown(cmd.Context())

			eng, err := app.policyEngine(cmd.Context())
			if err != nil {
				return err
			}

			h, mod, cleanup, err := app.moduleHarness(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer cleanup()

			opts := harness.PlanOptions{
				Vars:     mergeVars(mod.Vars, vars),
				VarFile:  firstNonEmpty(varFile, mod.VarFile),
				UseCache: useCache,
			}
			docs, err := h.PlanDocuments(cmd.Context(), opts)
			if err != nil {
				return err
			}

			result, err := eng.EvaluatePlans(cmd.Context(), docs)
			if err != nil {
				return err
			}
			printResult(result)
			if !result.Allowed {
				return fmt.Errorf("policy check failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&useCache, "use-cache", false, "serve unchanged plans from the cache")
	cmd.Flags().StringToStringVar(&vars, "var", nil, "configuration variable (key=value)")
	cmd.Flags().StringVar(&varFile, "var-file", "", "variable definitions file")

	return cmd
}

func printResult(result *policy.Result) {
	for _, v := range result.Violations {
		if v.Address != "" {
			fmt.Printf("[%s] %s: %s (%s)\n", v.Severity, v.Policy, v.Message, v.Address)
		} else {
			fmt.Printf("[%s] %s: %s\n", v.Severity, v.Policy, v.Message)
		}
	}
	for _, w := range result.Warnings {
		fmt.Printf("[eval] %s\n", w)
	}
	if result.Allowed {
		fmt.Printf("passed: %d policies, %d violations\n", len(result.EvaluatedPolicies), len(result.Violations))
	} else {
		fmt.Printf("failed: %d policies, %d violations\n", len(result.EvaluatedPolicies), len(result.Violations))
	}
}

func newPolicyLsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List loaded policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Root().Version)
			if err != nil {
				return err
			}
			defer app.shutdown(cmd.Context())

			eng, err := app.policyEngine(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range eng.ListPolicies() {
				state := "enabled"
				if !p.Enabled {
					state = "disabled"
				}
				fmt.Printf("%s\t%s\t%s\t%s\n", p.Name, p.Severity, state, p.Description)
			}
			return nil
		},
	}
}
