// Package telemetry provides observability instrumentation for the harness.
//
// It integrates structured logging (zerolog), metrics (Prometheus), and
// optional tracing (OpenTelemetry) behind small injectable handles. Every
// harness component receives its telemetry explicitly; nothing in this
// package configures process-global state except the optional tracer
// provider, and everything defaults to a silent no-op so test suites stay
// deterministic.
//
// Typical setup:
//
//	tel, err := telemetry.New(telemetry.Config{
//	    ServiceName: "tfharness",
//	    Logging:     telemetry.LoggingConfig{Level: "debug", Format: "console"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	logger := tel.Logger.NewComponentLogger("harness")
//	logger.Info("ready")
package telemetry
