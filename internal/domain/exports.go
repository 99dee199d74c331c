package domain

import (
	interfaces "olmcore/internal/domain/interfaces"
	types "olmcore/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Curve25519Public  = types.Curve25519Public
	Curve25519Private = types.Curve25519Private
	Curve25519KeyPair = types.Curve25519KeyPair
	Ed25519Public     = types.Ed25519Public
	Ed25519Private    = types.Ed25519Private
	Ed25519KeyPair    = types.Ed25519KeyPair
	SharedKey         = types.SharedKey
	ChainKey          = types.ChainKey
	MessageKey        = types.MessageKey
	OneTimeKey        = types.OneTimeKey
	MessageType       = types.MessageType
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	KeyStore   = interfaces.KeyStore
	StateStore = interfaces.StateStore
)

// Message type constants re-exported for callers of the session layer.
const (
	MessageTypePreKey = types.MessageTypePreKey
	MessageTypeNormal = types.MessageTypeNormal
)
