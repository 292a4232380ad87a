// Package llm contains adapters for invoking large language models to
// summarise on-chain data. It abstracts away provider-specific APIs and
// normalizes request/response lifecycles for use within the agent runtime.
package llm
