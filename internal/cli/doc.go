// Package cli wires together the Cobra command tree for the tribunal binary.
//
// It defines the root command and its subcommands (review, branches, config,
// models, cache, sessions, version), layers flags over the configuration,
// builds the reviewer workers and coordinator, runs the session loop and maps
// failures to exit codes: 2 for usage errors, 3 for configuration or
// credential errors, 4 for runtime failures and 130 for an interrupted
// session.
package cli
