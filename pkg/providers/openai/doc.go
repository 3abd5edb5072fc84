// Package openai implements the OpenAI provider adapter.
//
// It speaks the chat completions API (JSON and SSE streaming with
// include_usage) and the embeddings API. The base URL includes the version
// segment, e.g. "https://api.openai.com/v1".
package openai
