package ipc

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	payload, err := Encode(StartAttemptRequest{TestID: "kakunin"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	msg := NewMessage(MsgStartAttempt, 42, payload)

	var buf bytes.Buffer
	if err := msg.Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if buf.Len() != HeaderSize+len(payload) {
		t.Errorf("wire length = %d, want %d", buf.Len(), HeaderSize+len(payload))
	}

	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	if got.Header.Magic != ProtocolMagic {
		t.Errorf("magic = %x", got.Header.Magic)
	}
	if got.Header.Version != ProtocolVersion {
		t.Errorf("version = %d", got.Header.Version)
	}
	if got.Header.Type != MsgStartAttempt {
		t.Errorf("type = %x", got.Header.Type)
	}
	if got.Header.RequestID != 42 {
		t.Errorf("request id = %d", got.Header.RequestID)
	}

	var req StartAttemptRequest
	if err := Decode(got.Payload, &req); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if req.TestID != "kakunin" {
		t.Errorf("test id = %q", req.TestID)
	}
}

func TestMessageEmptyPayload(t *testing.T) {
	msg := NewMessage(MsgPing, 1, nil)

	var buf bytes.Buffer
	if err := msg.Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if got.Header.Length != 0 || len(got.Payload) != 0 {
		t.Errorf("expected empty payload, got length %d", got.Header.Length)
	}
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], 0xDEADBEEF)
	buf[4] = ProtocolVersion

	if _, err := ReadHeader(bytes.NewReader(buf)); err == nil {
		t.Error("expected error for bad magic")
	} else if !strings.Contains(err.Error(), "magic") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestReadHeaderRejectsFutureVersion(t *testing.T) {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], ProtocolMagic)
	buf[4] = ProtocolVersion + 1

	if _, err := ReadHeader(bytes.NewReader(buf)); err == nil {
		t.Error("expected error for future protocol version")
	}
}

func TestReadMessageRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	h := Header{
		Magic:   ProtocolMagic,
		Version: ProtocolVersion,
		Type:    MsgPing,
		Length:  maxPayload + 1,
	}
	if err := h.Write(&buf); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadMessage(&buf); err == nil {
		t.Error("expected error for oversized payload")
	}
}

func TestReadMessageTruncatedPayload(t *testing.T) {
	msg := NewMessage(MsgStatusRequest, 7, []byte(`{"truncated`))

	var buf bytes.Buffer
	if err := msg.Write(&buf); err != nil {
		t.Fatal(err)
	}
	short := buf.Bytes()[:buf.Len()-4]

	if _, err := ReadMessage(bytes.NewReader(short)); err == nil {
		t.Error("expected error for truncated payload")
	}
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage(9, ErrCodeNotFound, "unknown test: missing")

	if msg.Header.Type != MsgError {
		t.Errorf("type = %x, want MsgError", msg.Header.Type)
	}
	if msg.Header.RequestID != 9 {
		t.Errorf("request id = %d", msg.Header.RequestID)
	}

	var resp ErrorResponse
	if err := Decode(msg.Payload, &resp); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if resp.Code != ErrCodeNotFound {
		t.Errorf("code = %d", resp.Code)
	}
	if resp.Message != "unknown test: missing" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestNewResponse(t *testing.T) {
	msg, err := NewResponse(MsgStatusResponse, 3, StatusResponse{Version: "1.0.0"})
	if err != nil {
		t.Fatalf("NewResponse failed: %v", err)
	}
	if msg.Header.Type != MsgStatusResponse {
		t.Errorf("type = %x", msg.Header.Type)
	}

	var resp StatusResponse
	if err := Decode(msg.Payload, &resp); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if resp.Version != "1.0.0" {
		t.Errorf("version = %q", resp.Version)
	}
}

func TestMultipleMessagesOnOneStream(t *testing.T) {
	var buf bytes.Buffer
	for i := uint32(0); i < 3; i++ {
		if err := NewMessage(MsgPing, i, nil).Write(&buf); err != nil {
			t.Fatal(err)
		}
	}

	for i := uint32(0); i < 3; i++ {
		msg, err := ReadMessage(&buf)
		if err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
		if msg.Header.RequestID != i {
			t.Errorf("request id = %d, want %d", msg.Header.RequestID, i)
		}
	}
}
