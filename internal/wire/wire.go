// Package wire defines the JSON records exchanged over the
// /figwheel-ws channel (spec §6.1). The encoding is plain JSON: it
// round-trips maps, strings, booleans, numbers and nested structures
// losslessly, which is all spec §6.1 requires of the wire encoding.
package wire

import "encoding/json"

// Outbound message-name values (spec §3).
const (
	MsgFilesChanged     = "files-changed"
	MsgCSSFilesChanged  = "css-files-changed"
	MsgCompileFailed    = "compile-failed"
	MsgCompileWarning   = "compile-warning"
	MsgPing             = "ping"
)

// Per-file record types carried inside a files-changed message.
const (
	FileTypeNamespace = "namespace"
	FileTypeCSS       = "css"
)

// FileRecord is one element of a files-changed or css-files-changed
// payload. Which fields are populated depends on Type.
type FileRecord struct {
	File           string         `json:"file"`
	Namespace      string         `json:"namespace,omitempty"`
	Type           string         `json:"type"`
	Meta           map[string]any `json:"meta,omitempty"`
	EvalBody       string         `json:"eval-body,omitempty"`
	DependencyFile bool           `json:"dependency-file,omitempty"`
}

// Message is the single flat outbound envelope used for every
// msg-name (spec §3): every field beyond the three envelope fields is
// a payload field, present only for the message kinds that use it.
type Message struct {
	MsgName             string         `json:"msg-name"`
	ProjectID           string         `json:"project-id"`
	BuildID             string         `json:"build-id,omitempty"`
	Files               []FileRecord   `json:"files,omitempty"`
	ExceptionData       map[string]any `json:"exception-data,omitempty"`
	FormattedException  string         `json:"formatted-exception,omitempty"`
	Message             string         `json:"message,omitempty"`
}

// NewFilesChanged builds a files-changed message. depUpdates must
// precede nsRecords in the caller-supplied slices; this constructor
// preserves that ordering (spec invariant: dependency-update records
// precede namespace records).
func NewFilesChanged(projectID, buildID string, depUpdates, nsRecords []FileRecord) Message {
	files := make([]FileRecord, 0, len(depUpdates)+len(nsRecords))
	files = append(files, depUpdates...)
	files = append(files, nsRecords...)
	return Message{
		MsgName:   MsgFilesChanged,
		ProjectID: projectID,
		BuildID:   buildID,
		Files:     files,
	}
}

// NewCSSFilesChanged builds a css-files-changed message.
func NewCSSFilesChanged(projectID string, files []string) Message {
	recs := make([]FileRecord, 0, len(files))
	for _, f := range files {
		recs = append(recs, FileRecord{File: f, Type: FileTypeCSS})
	}
	return Message{
		MsgName:   MsgCSSFilesChanged,
		ProjectID: projectID,
		Files:     recs,
	}
}

// NewCompileFailed builds a compile-failed message.
func NewCompileFailed(projectID string, exceptionData map[string]any, formatted string) Message {
	return Message{
		MsgName:            MsgCompileFailed,
		ProjectID:          projectID,
		ExceptionData:      exceptionData,
		FormattedException: formatted,
	}
}

// NewCompileWarning builds a compile-warning message.
func NewCompileWarning(projectID, msg string) Message {
	return Message{
		MsgName:   MsgCompileWarning,
		ProjectID: projectID,
		Message:   msg,
	}
}

// NewPing builds a ping heartbeat message.
func NewPing(projectID string) Message {
	return Message{MsgName: MsgPing, ProjectID: projectID}
}

// Encode serializes a Message for transmission.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a Message previously produced by Encode.
func Decode(b []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(b, &m)
	return m, err
}

// InboundEvent is the single flat envelope for client-to-server
// frames (spec §4.F, §6.1). A frame that decodes with an empty
// FigwheelEvent is dropped by the caller.
type InboundEvent struct {
	FigwheelEvent string `json:"figwheel-event"`
	CallbackName  string `json:"callback-name,omitempty"`
	Content       any    `json:"content,omitempty"`
	FileName      string `json:"file-name,omitempty"`
	FileLine      int    `json:"file-line,omitempty"`
}

// Inbound event kinds (spec §4.F).
const (
	EventCallback     = "callback"
	EventFileSelected = "file-selected"
)

// DecodeInbound parses a client frame. An error, or a successfully
// parsed frame with an empty FigwheelEvent, both mean "drop this
// frame" per spec §6.1.
func DecodeInbound(b []byte) (InboundEvent, error) {
	var ev InboundEvent
	err := json.Unmarshal(b, &ev)
	return ev, err
}
