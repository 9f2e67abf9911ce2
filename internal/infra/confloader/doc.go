// Package confloader loads process configuration with koanf.
//
// Sources, lowest priority first: the defaults already in the target
// struct, a YAML file, ROLLOUTKV_ environment variables, and Overrides
// built from command-line flags. Nested keys in variable names are
// separated by a double underscore.
//
// Watcher reports changes to the configuration file so that a running
// server can reload the settings that are safe to change live.
package confloader
