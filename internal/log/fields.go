// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldWorkerID  = "worker_id"
	FieldPeriod    = "period"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldNode      = "node"
	FieldPID       = "pid"
	FieldExitCode  = "exit_code"
	FieldStatus    = "status"
	FieldCommand   = "command"

	// Media / stream fields
	FieldCodec      = "codec"
	FieldResolution = "resolution"
	FieldLanguage   = "language"
	FieldChannels   = "channels"
	FieldFormat     = "format"

	// Path / URL fields
	FieldPath         = "path"
	FieldPipe         = "pipe"
	FieldLocation     = "location"
	FieldOutputDir    = "output_dir"
	FieldPlaylistPath = "playlist_path"

	// HTTP fields
	FieldMethod = "method"
	FieldCode   = "code"
	FieldBytes  = "bytes"
)
