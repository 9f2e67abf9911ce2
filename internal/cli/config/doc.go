// Package config holds the CLI configuration file (~/.rolloutkv/cli.yaml).
//
// The file stores named connection profiles and the output format. Values
// can be overridden with ROLLOUTKV_CLI_ environment variables, and command
// flags override both.
package config
