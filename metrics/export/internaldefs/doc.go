// Package internaldefs holds the exported metric names, help strings and
// histogram bounds for the engine's in-process metrics.
//
// Exporters read these definitions so metric names stay stable when the
// engine adds counters.
//
// # What this package must NOT do
//
//   - Import an exporter package.
//   - Perform I/O.
package internaldefs
