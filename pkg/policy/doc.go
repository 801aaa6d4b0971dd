// Package policy evaluates Rego policies against parsed plan documents,
// giving test suites declarative guardrails such as "no resource in this
// plan may be destroyed".
//
// Policies are Rego modules whose deny rules produce violations. The
// engine queries data.<package>.deny with the raw plan payload as input;
// each deny result becomes a Violation, either from a plain string or
// from an object carrying message, severity and address fields. A few
// built-in policies ship with the engine and can be disabled by name;
// additional policies load from .rego or .json files, optionally watched
// for changes and reloaded live.
//
// # Usage
//
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	doc, err := h.PlanDocument(ctx, harness.PlanOptions{})
//	...
//	result, err := eng.EvaluatePlan(ctx, doc)
//	if !result.Allowed {
//	    for _, v := range result.Violations {
//	        fmt.Println(v.Message)
//	    }
//	}
package policy
