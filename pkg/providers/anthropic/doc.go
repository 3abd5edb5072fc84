// Package anthropic implements the Anthropic Messages API adapter.
//
// System messages are lifted into the top-level system field and the
// remaining turns must alternate starting with a user message. The API
// offers no embeddings endpoint.
package anthropic
