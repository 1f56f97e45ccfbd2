package ipc

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Common client errors
var (
	ErrNotConnected     = errors.New("not connected to daemon")
	ErrDaemonNotRunning = errors.New("daemon is not running")
)

// ClientConfig configures the IPC client
type ClientConfig struct {
	SocketPath     string
	ClientName     string
	ClientVersion  string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// DefaultClientConfig returns sensible defaults
func DefaultClientConfig(socketPath string) ClientConfig {
	return ClientConfig{
		SocketPath:     socketPath,
		ClientName:     "proctorctl",
		ClientVersion:  "1.0.0",
		ConnectTimeout: 5 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// Client is a synchronous request/response client for the daemon
// socket. One request is in flight at a time.
type Client struct {
	cfg  ClientConfig
	mu   sync.Mutex
	conn net.Conn

	nextReqID atomic.Uint32
}

// NewClient creates a new IPC client
func NewClient(cfg ClientConfig) *Client {
	return &Client{cfg: cfg}
}

// Connect dials the daemon socket and performs the handshake.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	conn, err := net.DialTimeout("unix", c.cfg.SocketPath, c.cfg.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonNotRunning, err)
	}
	c.conn = conn

	var resp HandshakeResponse
	if err := c.roundTripLocked(MsgHandshake, &HandshakeRequest{
		ClientVersion:   c.cfg.ClientVersion,
		ClientName:      c.cfg.ClientName,
		ProtocolVersion: ProtocolVersion,
	}, MsgHandshakeAck, &resp); err != nil {
		conn.Close()
		c.conn = nil
		return fmt.Errorf("handshake: %w", err)
	}

	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// roundTrip sends a request and decodes the expected response type.
func (c *Client) roundTrip(reqType MessageType, req any, respType MessageType, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roundTripLocked(reqType, req, respType, out)
}

func (c *Client) roundTripLocked(reqType MessageType, req any, respType MessageType, out any) error {
	if c.conn == nil {
		return ErrNotConnected
	}

	var payload []byte
	if req != nil {
		var err error
		payload, err = Encode(req)
		if err != nil {
			return err
		}
	}

	reqID := c.nextReqID.Add(1)
	msg := NewMessage(reqType, reqID, payload)

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.RequestTimeout))
	if err := msg.Write(c.conn); err != nil {
		return err
	}

	c.conn.SetReadDeadline(time.Now().Add(c.cfg.RequestTimeout))
	resp, err := ReadMessage(c.conn)
	if err != nil {
		return err
	}

	if resp.Header.Type == MsgError {
		var errResp ErrorResponse
		if err := Decode(resp.Payload, &errResp); err != nil {
			return fmt.Errorf("daemon error (undecodable): %v", err)
		}
		return fmt.Errorf("daemon error %d: %s", errResp.Code, errResp.Message)
	}
	if resp.Header.Type != respType {
		return fmt.Errorf("unexpected response type %#x", uint16(resp.Header.Type))
	}

	if out != nil && len(resp.Payload) > 0 {
		return Decode(resp.Payload, out)
	}
	return nil
}

// Ping checks daemon liveness.
func (c *Client) Ping() error {
	return c.roundTrip(MsgPing, nil, MsgPong, nil)
}

// Status returns daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.roundTrip(MsgStatusRequest, nil, MsgStatusResponse, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListTests returns the available test definitions.
func (c *Client) ListTests() ([]TestSummary, error) {
	var resp ListTestsResponse
	if err := c.roundTrip(MsgListTests, nil, MsgListTestsResp, &resp); err != nil {
		return nil, err
	}
	return resp.Tests, nil
}

// StartAttempt starts a proctored attempt.
func (c *Client) StartAttempt(testID string) (*StartAttemptResponse, error) {
	var resp StartAttemptResponse
	if err := c.roundTrip(MsgStartAttempt, &StartAttemptRequest{TestID: testID},
		MsgStartAttemptResp, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Answer records an answer selection.
func (c *Client) Answer(index int, option string) (*SnapshotResponse, error) {
	var resp SnapshotResponse
	if err := c.roundTrip(MsgAnswer, &AnswerRequest{QuestionIndex: index, Option: option},
		MsgAnswerResp, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Flag toggles a review flag on a question.
func (c *Client) Flag(index int) (*SnapshotResponse, error) {
	var resp SnapshotResponse
	if err := c.roundTrip(MsgFlag, &FlagRequest{QuestionIndex: index},
		MsgFlagResp, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Navigate moves the current question cursor.
func (c *Client) Navigate(index int) (*SnapshotResponse, error) {
	var resp SnapshotResponse
	if err := c.roundTrip(MsgNavigate, &NavigateRequest{QuestionIndex: index},
		MsgNavigateResp, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Snapshot returns the current session snapshot.
func (c *Client) Snapshot() (*SnapshotResponse, error) {
	var resp SnapshotResponse
	if err := c.roundTrip(MsgSnapshot, nil, MsgSnapshotResp, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit submits the running attempt for scoring.
func (c *Client) Submit() (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.roundTrip(MsgSubmitAttempt, nil, MsgSubmitAttemptResp, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Terminate force-terminates the running attempt.
func (c *Client) Terminate(reason string) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.roundTrip(MsgTerminate, &TerminateRequest{Reason: reason},
		MsgTerminateResp, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reset returns a finished session to idle.
func (c *Client) Reset() (*SnapshotResponse, error) {
	var resp SnapshotResponse
	if err := c.roundTrip(MsgReset, nil, MsgResetResp, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns finished attempts, newest first.
func (c *Client) History(testID string, limit int) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.roundTrip(MsgHistory, &HistoryRequest{TestID: testID, Limit: limit},
		MsgHistoryResp, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Violations returns the audit log for an attempt.
func (c *Client) Violations(attemptID string) (*ViolationsResponse, error) {
	var resp ViolationsResponse
	if err := c.roundTrip(MsgViolations, &ViolationsRequest{AttemptID: attemptID},
		MsgViolationsResp, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Certificate builds a certificate for the last finished attempt.
func (c *Client) Certificate(recipient string) (*CertificateResponse, error) {
	var resp CertificateResponse
	if err := c.roundTrip(MsgCertificate, &CertificateRequest{Recipient: recipient},
		MsgCertificateResp, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyRecord checks the stored record HMAC of an attempt.
func (c *Client) VerifyRecord(attemptID string) (*VerifyRecordResponse, error) {
	var resp VerifyRecordResponse
	if err := c.roundTrip(MsgVerifyRecord, &VerifyRecordRequest{AttemptID: attemptID},
		MsgVerifyRecordResp, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
