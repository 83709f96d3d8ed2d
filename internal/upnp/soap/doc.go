// Package soap converts UPnP action invocations to and from SOAP 1.1
// envelopes.
//
// Three processors implement the same Processor contract:
//
//   - TreeProcessor parses the whole envelope with etree and checks the
//     Envelope/Body structure and the action namespace.
//   - StreamProcessor scans forward for the elements it needs, tolerating
//     structure a tree parse would reject.
//   - RecoveringProcessor retries a failed StreamProcessor read once after
//     escaping stray ampersands, then hands the original error to an
//     overridable hook.
//
// All three write identical bodies. Read failures are
// *wire.UnsupportedDataError values; when the cause is an action-level
// problem (missing argument, wrong value) the *control.ActionError is
// reachable through errors.As.
//
// Processors hold no per-call state and are safe for concurrent use as
// long as each call gets its own Invocation.
package soap
