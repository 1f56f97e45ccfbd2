// Package ipc provides inter-process communication between the proctord
// daemon and client applications (CLI, kiosk front ends).
//
// The protocol is a request/response pattern over a local socket:
// fixed 16-byte headers with a magic number and protocol version,
// followed by a JSON payload.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"proctord/internal/certificate"
	"proctord/internal/exam"
	"proctord/internal/session"
	"proctord/internal/store"
)

// Protocol version for compatibility checking
const (
	ProtocolVersion = 1
	ProtocolMagic   = 0x50524F43 // "PROC"
)

// MessageType identifies the type of IPC message
type MessageType uint16

const (
	// Control messages (0x00xx)
	MsgPing         MessageType = 0x0001
	MsgPong         MessageType = 0x0002
	MsgHandshake    MessageType = 0x0003
	MsgHandshakeAck MessageType = 0x0004
	MsgError        MessageType = 0x0005
	MsgShutdown     MessageType = 0x0006

	// Status messages (0x01xx)
	MsgStatusRequest  MessageType = 0x0100
	MsgStatusResponse MessageType = 0x0101
	MsgListTests      MessageType = 0x0102
	MsgListTestsResp  MessageType = 0x0103

	// Attempt lifecycle (0x02xx)
	MsgStartAttempt      MessageType = 0x0200
	MsgStartAttemptResp  MessageType = 0x0201
	MsgSubmitAttempt     MessageType = 0x0202
	MsgSubmitAttemptResp MessageType = 0x0203
	MsgTerminate         MessageType = 0x0204
	MsgTerminateResp     MessageType = 0x0205
	MsgReset             MessageType = 0x0206
	MsgResetResp         MessageType = 0x0207

	// Exam interaction (0x03xx)
	MsgAnswer       MessageType = 0x0300
	MsgAnswerResp   MessageType = 0x0301
	MsgFlag         MessageType = 0x0302
	MsgFlagResp     MessageType = 0x0303
	MsgNavigate     MessageType = 0x0304
	MsgNavigateResp MessageType = 0x0305
	MsgSnapshot     MessageType = 0x0306
	MsgSnapshotResp MessageType = 0x0307

	// Records (0x04xx)
	MsgHistory         MessageType = 0x0400
	MsgHistoryResp     MessageType = 0x0401
	MsgViolations      MessageType = 0x0402
	MsgViolationsResp  MessageType = 0x0403
	MsgCertificate     MessageType = 0x0404
	MsgCertificateResp MessageType = 0x0405
	MsgVerifyRecord    MessageType = 0x0406
	MsgVerifyRecordResp MessageType = 0x0407
)

// Header is the fixed-size message header (16 bytes)
type Header struct {
	Magic     uint32      // Protocol magic number
	Version   uint8       // Protocol version
	Flags     uint8       // Message flags
	Type      MessageType // Message type
	RequestID uint32      // Request ID for correlation
	Length    uint32      // Payload length (not including header)
}

// HeaderSize is the size of the header in bytes
const HeaderSize = 16

// maxPayload bounds a single message payload.
const maxPayload = 16 * 1024 * 1024

// Message wraps a header and payload
type Message struct {
	Header  Header
	Payload []byte
}

// NewMessage creates a new message with the given type and payload
func NewMessage(msgType MessageType, requestID uint32, payload []byte) *Message {
	return &Message{
		Header: Header{
			Magic:     ProtocolMagic,
			Version:   ProtocolVersion,
			Type:      msgType,
			RequestID: requestID,
			Length:    uint32(len(payload)),
		},
		Payload: payload,
	}
}

// Write writes the header to a writer
func (h *Header) Write(w io.Writer) error {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.Flags
	binary.BigEndian.PutUint16(buf[6:8], uint16(h.Type))
	binary.BigEndian.PutUint32(buf[8:12], h.RequestID)
	binary.BigEndian.PutUint32(buf[12:16], h.Length)
	_, err := w.Write(buf)
	return err
}

// ReadHeader reads a header from a reader
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	h := &Header{
		Magic:     binary.BigEndian.Uint32(buf[0:4]),
		Version:   buf[4],
		Flags:     buf[5],
		Type:      MessageType(binary.BigEndian.Uint16(buf[6:8])),
		RequestID: binary.BigEndian.Uint32(buf[8:12]),
		Length:    binary.BigEndian.Uint32(buf[12:16]),
	}

	if h.Magic != ProtocolMagic {
		return nil, fmt.Errorf("invalid magic number: %x", h.Magic)
	}
	if h.Version > ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", h.Version)
	}

	return h, nil
}

// Write writes the message to a writer
func (m *Message) Write(w io.Writer) error {
	if err := m.Header.Write(w); err != nil {
		return err
	}
	if len(m.Payload) > 0 {
		_, err := w.Write(m.Payload)
		return err
	}
	return nil
}

// ReadMessage reads a complete message from a reader
func ReadMessage(r io.Reader) (*Message, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	m := &Message{Header: *h}
	if h.Length > 0 {
		if h.Length > maxPayload {
			return nil, fmt.Errorf("payload too large: %d bytes", h.Length)
		}
		m.Payload = make([]byte, h.Length)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Error codes
const (
	ErrCodeUnknown        = 1
	ErrCodeInvalidRequest = 2
	ErrCodeNotFound       = 3
	ErrCodeInternal       = 4
	ErrCodeAttemptActive  = 5
	ErrCodeNoAttempt      = 6
	ErrCodeNotFinished    = 7
)

// Request/Response payloads

// HandshakeRequest is sent by the client to initiate connection
type HandshakeRequest struct {
	ClientVersion   string `json:"client_version"`
	ClientName      string `json:"client_name"`
	ProtocolVersion uint8  `json:"protocol_version"`
}

// HandshakeResponse is sent by the server to acknowledge connection
type HandshakeResponse struct {
	ServerVersion   string `json:"server_version"`
	ProtocolVersion uint8  `json:"protocol_version"`
	ConnectionID    string `json:"connection_id"`
}

// ErrorResponse is sent when an operation fails
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// StatusResponse contains daemon status
type StatusResponse struct {
	Version         string    `json:"version"`
	Uptime          string    `json:"uptime"`
	StartedAt       time.Time `json:"started_at"`
	SessionState    string    `json:"session_state"`
	LoadedTests     int       `json:"loaded_tests"`
	DegradedSensors []string  `json:"degraded_sensors,omitempty"`
}

// TestSummary describes one loadable test.
type TestSummary struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	DurationSeconds  int    `json:"duration_seconds"`
	PassingThreshold int    `json:"passing_threshold"`
	QuestionCount    int    `json:"question_count"`
}

// ListTestsResponse contains available test definitions.
type ListTestsResponse struct {
	Tests []TestSummary `json:"tests"`
}

// StartAttemptRequest starts a proctored attempt.
type StartAttemptRequest struct {
	TestID string `json:"test_id"`
}

// StartAttemptResponse acknowledges attempt start.
type StartAttemptResponse struct {
	AttemptID string            `json:"attempt_id"`
	Snapshot  *session.Snapshot `json:"snapshot"`
}

// AnswerRequest records an answer selection.
type AnswerRequest struct {
	QuestionIndex int    `json:"question_index"`
	Option        string `json:"option"`
}

// FlagRequest toggles a review flag.
type FlagRequest struct {
	QuestionIndex int `json:"question_index"`
}

// NavigateRequest moves the current question cursor.
type NavigateRequest struct {
	QuestionIndex int `json:"question_index"`
}

// SnapshotResponse carries the current session snapshot.
type SnapshotResponse struct {
	Snapshot *session.Snapshot `json:"snapshot"`
}

// SubmitResponse carries the outcome of a finished attempt.
type SubmitResponse struct {
	AttemptID string            `json:"attempt_id"`
	Status    string            `json:"status"`
	Outcome   *exam.Outcome     `json:"outcome"`
	Snapshot  *session.Snapshot `json:"snapshot"`
}

// TerminateRequest force-terminates the running attempt.
type TerminateRequest struct {
	Reason string `json:"reason"`
}

// HistoryRequest queries finished attempts.
type HistoryRequest struct {
	TestID string `json:"test_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// HistoryResponse lists finished attempts.
type HistoryResponse struct {
	Attempts []store.AttemptSummary `json:"attempts"`
}

// ViolationsRequest queries the violation audit log of an attempt.
type ViolationsRequest struct {
	AttemptID string `json:"attempt_id"`
}

// ViolationsResponse carries the audit log.
type ViolationsResponse struct {
	AttemptID  string           `json:"attempt_id"`
	Violations []exam.Violation `json:"violations"`
}

// CertificateRequest builds a certificate for the last finished attempt.
type CertificateRequest struct {
	Recipient string `json:"recipient"`
}

// CertificateResponse carries the certificate payload.
type CertificateResponse struct {
	Certificate *certificate.Certificate `json:"certificate"`
}

// VerifyRecordRequest checks the tamper-evidence HMAC of a stored attempt.
type VerifyRecordRequest struct {
	AttemptID string `json:"attempt_id"`
}

// VerifyRecordResponse reports the verification result.
type VerifyRecordResponse struct {
	AttemptID string `json:"attempt_id"`
	Valid     bool   `json:"valid"`
}

// Encode encodes a payload to JSON bytes
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode decodes JSON bytes to a payload
func Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// NewErrorMessage creates an error message
func NewErrorMessage(requestID uint32, code int, message string) *Message {
	payload, _ := Encode(&ErrorResponse{
		Code:    code,
		Message: message,
	})
	return NewMessage(MsgError, requestID, payload)
}

// NewResponse creates a response message
func NewResponse(msgType MessageType, requestID uint32, v any) (*Message, error) {
	payload, err := Encode(v)
	if err != nil {
		return nil, err
	}
	return NewMessage(msgType, requestID, payload), nil
}
