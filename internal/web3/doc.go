// Package web3 houses blockchain connectivity utilities, including chain
// client abstractions, provider endpoint definitions, and the registry that
// hands out per-network connections. It enables agents to perform
// standardized interactions with supported networks such as Ethereum and
// Solana, covering balance queries, token operations, contract calls, ENS
// resolution, and transaction submission.
package web3
