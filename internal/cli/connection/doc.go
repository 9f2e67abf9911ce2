// Package connection manages the CLI's connection to a rolloutkv server.
//
// A Connection names the server, the engine instance and the transport
// (HTTP or Connect). Manager turns it into a storage adapter for data
// commands and a maintenance entry point for admin commands. HTTPClient
// covers the routes outside the operation protocol: health, readiness
// and the admin status summary.
package connection
