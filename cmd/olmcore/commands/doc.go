// Package commands wires the CLI: account management, one-time key
// handling and group session tooling over the passphrase-protected store.
package commands
