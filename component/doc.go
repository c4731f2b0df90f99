// Package component defines lifecycle-managed infrastructure pieces.
//
// The HTTP client and the shared Redis rate-limit store implement
// Component; a Registry starts them in registration order and stops them
// in reverse.
package component
