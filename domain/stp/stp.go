// Package stp defines the wire-level Structured Token Protocol
// envelope every packet leaving or entering the core uses (spec.md §3,
// §4.7, §6). Wrapping, signing, and verification logic lives in the
// stp package at the repository root; this package is the pure data
// model so it can be imported without pulling in crypto dependencies.
package stp

import "time"

// PacketType is the enumerated kind of payload an envelope carries.
type PacketType string

const (
	TypeRoutingDecision PacketType = "routing_decision"
	TypeFeedback        PacketType = "feedback"
	TypePolicyUpdate    PacketType = "policy_update"
	TypeHealth          PacketType = "health"
)

// Priority is advisory downstream-prioritization guidance; the
// envelope itself never reorders on it.
type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Metadata carries routing/priority hints alongside the payload.
type Metadata struct {
	Source       string   `json:"source"`
	Destination  string   `json:"destination"`
	Priority     Priority `json:"priority"`
	RequiresAck  bool     `json:"requires_ack"`
}

// Security is the optional signing block. Present only when signing
// is enabled for the packet.
type Security struct {
	Nonce     string    `json:"nonce"`
	Timestamp time.Time `json:"timestamp"`
	Signature string    `json:"packet_signature"`
}

// Packet is the wire-level envelope (spec.md §6's JSON contract).
// Checksum and Security.Signature are computed over the canonical
// serialization of the packet with Checksum and the whole Security
// block left out; the security nonce and timestamp are not covered.
type Packet struct {
	Version   string     `json:"stp_version"`
	Token     string     `json:"stp_token"`
	Timestamp time.Time  `json:"stp_timestamp"`
	Type      PacketType `json:"stp_type"`
	Metadata  Metadata   `json:"stp_metadata"`
	Payload   any        `json:"payload"`
	Checksum  string     `json:"stp_checksum"`
	Security  *Security  `json:"stp_security,omitempty"`

	// ChecksumFailed is set by a lenient unwrap when the checksum did
	// not match but the payload is returned anyway (spec.md §4.7).
	ChecksumFailed bool `json:"-"`
}
