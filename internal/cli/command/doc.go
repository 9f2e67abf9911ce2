// Package command defines the rolloutkv-cli commands using urfave/cli/v2.
//
// Data commands (get, set, sadd, ...) run one engine operation through the
// storage adapter of the selected profile. Admin commands clear an
// instance, read the server status summary and generate admin keys.
package command
