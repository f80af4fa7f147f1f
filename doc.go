// Package threadrunner implements the core of a multi-agent orchestration
// runtime: a bounded agent iteration loop that drives a conversation forward
// by consulting an LLM, dispatching any tool or sub-agent calls it requests
// in parallel, and weaving the results back into a canonical conversation
// thread until a final answer is produced.
//
// # Packages
//
//   - thread: the conversation data model (threads, messages, attachments,
//     reactions, sequencing and chat-completion projection)
//   - storage: pluggable thread and file store contracts, with in-memory and
//     SQL-backed implementations
//   - tools: the tool registry and parallel dispatch runtime
//   - agent: the iteration loop and the agent runner (agent-as-tool
//     delegation)
//   - llms: the provider-agnostic completion types and the LLM provider
//     adapter interface
//   - reasoning: the streaming chunk reassembler and the services an agent
//     depends on
//   - attachments: MIME detection and content processing for file-bearing
//     messages
//
// This module covers the orchestration core only. Concrete tool
// implementations beyond the small built-in set, concrete LLM providers
// beyond the bundled Anthropic adapter, and any first-party CLI are treated
// as external collaborators.
package threadrunner
