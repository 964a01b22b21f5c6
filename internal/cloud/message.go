// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cloud

import "context"

// MessageKind tags a Message.
type MessageKind int

const (
	MsgWriteNonChunked MessageKind = iota
	MsgStartChunked
	MsgWriteChunk
	MsgEndChunked
	MsgDelete
	MsgReset
)

func (k MessageKind) String() string {
	switch k {
	case MsgWriteNonChunked:
		return "write_non_chunked"
	case MsgStartChunked:
		return "start_chunked"
	case MsgWriteChunk:
		return "write_chunk"
	case MsgEndChunked:
		return "end_chunked"
	case MsgDelete:
		return "delete"
	case MsgReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Message is one command sent from a Handle to its worker.
// Path is set for write, start and delete; Data for writes.
type Message struct {
	Kind MessageKind
	Path string
	Data []byte

	ctx   context.Context
	reply chan error
}
