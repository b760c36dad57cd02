/*
Package log provides structured logging for sentinel using zerolog.

A single global zerolog.Logger is configured once at startup through Init and
then narrowed per component. Every control loop logs through a component logger
so that output can be filtered by the "component" field:

	failover    active resolver selection
	reconciler  network and container convergence
	analyzer    log stream classification and predictions
	notify      alert delivery
	api         status endpoints

# Configuration

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

JSONOutput=false selects zerolog's ConsoleWriter with RFC3339 timestamps, which
is the default for interactive runs of the CLI.

# Component Loggers

	logger := log.WithComponent("reconciler")
	logger.Warn().Str("network", "dns_net").Msg("Network misconfigured")

	clog := log.WithContainer("analyzer", "pihole_primary")
	clog.Info().Str("category", "timeout").Float64("rate", 12).Msg("Prediction fired")

Library packages never print directly; they either log through these helpers or
return an error to the caller.
*/
package log
