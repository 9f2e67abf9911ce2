// Package output renders command results for rolloutkv-cli.
//
// Results are printed as an aligned table for people, or as JSON or YAML
// for scripts. Result types implement Tabular to control their table
// layout.
package output
