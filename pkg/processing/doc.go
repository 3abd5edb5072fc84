// Package processing holds the request arithmetic the pipeline needs before
// and after a provider call.
//
//   - tokens: character-ratio token estimation, per model
//   - costs: USD cost from provider usage and configured pricing
//
// Both are safe for concurrent use and can be updated in place when the
// configuration is reloaded.
package processing
