// Package processes spawns and supervises the served process of a development launch.
//
// It provides the building blocks the launcher composes:
//
//   - PortScanner finds the lowest bindable port in a range.
//   - Supervisor spawns the served process and returns a ServerHandle that owns it.
//   - Relay forwards one captured output stream line by line until a shared
//     RelayState is stopped or the stream ends.
//   - ReadinessProbe polls until something is listening on the bound port.
//
// Port scanning and readiness probing both work by attempting to bind the address, which
// needs no cooperation from the served process but is racy against unrelated processes
// claiming the same port.
package processes
