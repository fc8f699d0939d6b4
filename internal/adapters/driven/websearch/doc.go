// Package websearch holds the HTTP plumbing shared by the web search
// backends: request throttling, retry with backoff, redirect unwrapping,
// link cleaning and visible-text extraction from fetched pages.
//
// Backends live in subpackages and normalise every upstream failure into
// domain.ErrWebSearchUnavailable.
package websearch
