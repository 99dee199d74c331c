// Package account owns a device's long-term identity keys and its pool of
// one-time keys. The session layer consumes only the lookup-by-public-key
// operation; everything else serves key publication and persistence.
package account
