// Package device manages one TCP socket per Global Caché IR port: the
// connection lifecycle state machine, per-port command serialization,
// request/response correlation, and reconnect-with-backoff.
//
// A Connection owns exactly one (DeviceEndpoint, module, port) logical
// address. Callers submit sendir/stopir/query commands and receive a
// Result once the device responds or the request's deadline expires.
package device
