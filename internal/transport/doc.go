// Package transport provides engine handles: the single send-and-receive
// primitive the storage adapter talks through.
//
// Three handles are available:
//   - Local dispatches to an in-process engine registry
//   - HTTP posts to the server's operation routes
//   - Connect calls the engine service over connectrpc with a JSON codec
//
// The server side of the Connect transport is NewConnectHandler.
package transport
