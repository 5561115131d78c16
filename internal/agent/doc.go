// Package agent is the boundary between the task executor and the external
// automation engine. It defines the Driver interface that engine adapters
// (Ollama, OpenAI, Anthropic) implement, builds the effective instruction
// from a task request, and wraps each invocation with timeout enforcement,
// error translation, and optional screenshot persistence.
package agent
