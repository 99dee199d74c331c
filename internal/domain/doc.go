// Package domain defines core data models and contracts shared across the
// module. It contains plain types (keys, chains, wire state), the error
// taxonomy and interfaces only.
package domain
