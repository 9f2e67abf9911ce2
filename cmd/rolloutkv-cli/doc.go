// Package main provides the entry point for rolloutkv-cli.
//
// rolloutkv-cli runs single engine operations against a rolloutkv server,
// for inspecting and fixing rollout state by hand:
//
//	rolloutkv-cli -i checkout set flag:new-cart on
//	rolloutkv-cli -i checkout sadd segment:beta user-17 user-42
//	rolloutkv-cli -i checkout -o json mget flag:new-cart flag:old-cart
//	rolloutkv-cli --admin-key "$KEY" -i checkout admin clear-all
//
// Connection settings can be saved as profiles in ~/.rolloutkv/cli.yaml
// with "config save".
package main
