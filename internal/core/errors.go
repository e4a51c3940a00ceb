// Package core defines sentinel errors.
package core

import "errors"

var (
	// Decoding errors
	ErrTruncatedEthernet = errors.New("packetscope: frame too short for ethernet header")
	ErrPacketTooShort    = errors.New("packetscope: packet too short")
	ErrUnsupportedProto  = errors.New("packetscope: unsupported protocol")

	// Source errors
	ErrSourceNotStarted = errors.New("packetscope: frame source not started")

	// Configuration errors
	ErrConfigInvalid = errors.New("packetscope: invalid configuration")
)
