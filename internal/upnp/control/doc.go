// Package control carries UPnP action invocations.
//
// An Invocation binds one meta.Action to typed input and output values and
// an optional failure. Processors in the soap package fill it from, or
// render it to, SOAP bodies; local executors and control points read and
// write it directly.
//
// Failures are *ActionError values carrying a numeric UPnP error code and a
// description. Codes outside the standard table are preserved as is.
package control
