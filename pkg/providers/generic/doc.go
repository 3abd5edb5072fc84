// Package generic adapts any OpenAI-compatible endpoint (Ollama, vLLM,
// LM Studio). The API key is optional.
package generic
