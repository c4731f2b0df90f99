// Package errors defines the error taxonomy surfaced by the REST client.
// Every terminal failure is an *AppError whose Code tells callers which
// kind of failure ended the logical request, so they can handle network
// problems, rate limiting and authentication distinctly.
package errors
