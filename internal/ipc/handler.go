package ipc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"proctord/internal/certificate"
	"proctord/internal/content"
	"proctord/internal/exam"
	"proctord/internal/metrics"
	"proctord/internal/session"
	"proctord/internal/store"
)

// DaemonHandler routes IPC requests to the daemon's collaborators.
type DaemonHandler struct {
	Engine  *session.Engine
	Library *content.Library
	Store   *store.Store
	Logger  *slog.Logger

	// Metrics is optional.
	Metrics *metrics.ProctordMetrics

	Version   string
	StartedAt time.Time
}

// HandleMessage implements Handler.
func (h *DaemonHandler) HandleMessage(ctx context.Context, msg *Message) (*Message, error) {
	id := msg.Header.RequestID

	switch msg.Header.Type {
	case MsgStatusRequest:
		return h.handleStatus(id)

	case MsgListTests:
		return h.handleListTests(id)

	case MsgStartAttempt:
		return h.handleStart(id, msg.Payload)

	case MsgAnswer:
		var req AnswerRequest
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(id, ErrCodeInvalidRequest, "invalid answer request"), nil
		}
		if err := h.Engine.Answer(req.QuestionIndex, req.Option); err != nil {
			return h.engineError(id, err), nil
		}
		return h.snapshotResponse(MsgAnswerResp, id)

	case MsgFlag:
		var req FlagRequest
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(id, ErrCodeInvalidRequest, "invalid flag request"), nil
		}
		if err := h.Engine.ToggleFlag(req.QuestionIndex); err != nil {
			return h.engineError(id, err), nil
		}
		return h.snapshotResponse(MsgFlagResp, id)

	case MsgNavigate:
		var req NavigateRequest
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(id, ErrCodeInvalidRequest, "invalid navigate request"), nil
		}
		if err := h.Engine.Navigate(req.QuestionIndex); err != nil {
			return h.engineError(id, err), nil
		}
		return h.snapshotResponse(MsgNavigateResp, id)

	case MsgSnapshot:
		return h.snapshotResponse(MsgSnapshotResp, id)

	case MsgSubmitAttempt:
		return h.handleSubmit(id)

	case MsgTerminate:
		return h.handleTerminate(id, msg.Payload)

	case MsgReset:
		if err := h.Engine.Reset(); err != nil {
			return h.engineError(id, err), nil
		}
		return h.snapshotResponse(MsgResetResp, id)

	case MsgHistory:
		return h.handleHistory(id, msg.Payload)

	case MsgViolations:
		return h.handleViolations(id, msg.Payload)

	case MsgCertificate:
		return h.handleCertificate(id, msg.Payload)

	case MsgVerifyRecord:
		return h.handleVerifyRecord(id, msg.Payload)

	default:
		return NewErrorMessage(id, ErrCodeInvalidRequest, "unknown message type"), nil
	}
}

func (h *DaemonHandler) handleStatus(id uint32) (*Message, error) {
	snap := h.Engine.Snapshot()
	resp := &StatusResponse{
		Version:      h.Version,
		Uptime:       time.Since(h.StartedAt).String(),
		StartedAt:    h.StartedAt,
		SessionState: string(snap.State),
		LoadedTests:  len(h.Library.TestIDs()),
	}
	for _, s := range snap.DegradedSensors {
		resp.DegradedSensors = append(resp.DegradedSensors, s.Name+": "+s.Reason)
	}
	return NewResponse(MsgStatusResponse, id, resp)
}

func (h *DaemonHandler) handleListTests(id uint32) (*Message, error) {
	resp := &ListTestsResponse{}
	for _, testID := range h.Library.TestIDs() {
		def, err := h.Library.Test(testID)
		if err != nil {
			continue
		}
		resp.Tests = append(resp.Tests, TestSummary{
			ID:               def.ID,
			Title:            def.Title,
			DurationSeconds:  def.DurationSeconds,
			PassingThreshold: def.PassingThreshold,
			QuestionCount:    len(def.Questions),
		})
	}
	return NewResponse(MsgListTestsResp, id, resp)
}

func (h *DaemonHandler) handleStart(id uint32, payload []byte) (*Message, error) {
	var req StartAttemptRequest
	if err := Decode(payload, &req); err != nil {
		return NewErrorMessage(id, ErrCodeInvalidRequest, "invalid start request"), nil
	}

	def, err := h.Library.Test(req.TestID)
	if err != nil {
		if errors.Is(err, content.ErrUnknownTest) {
			return NewErrorMessage(id, ErrCodeNotFound, err.Error()), nil
		}
		return nil, err
	}

	if err := h.Engine.Start(session.Test{
		ID:               def.ID,
		Questions:        def.Questions,
		Duration:         def.Duration(),
		PassingThreshold: def.PassingThreshold,
	}); err != nil {
		return h.engineError(id, err), nil
	}

	if h.Metrics != nil {
		h.Metrics.AttemptStarted()
	}

	snap := h.Engine.Snapshot()
	return NewResponse(MsgStartAttemptResp, id, &StartAttemptResponse{
		AttemptID: snap.AttemptID,
		Snapshot:  &snap,
	})
}

func (h *DaemonHandler) handleSubmit(id uint32) (*Message, error) {
	outcome, err := h.Engine.Submit()
	if err != nil {
		return h.engineError(id, err), nil
	}

	snap := h.Engine.Snapshot()
	return NewResponse(MsgSubmitAttemptResp, id, &SubmitResponse{
		AttemptID: snap.AttemptID,
		Status:    string(snap.State),
		Outcome:   outcome,
		Snapshot:  &snap,
	})
}

func (h *DaemonHandler) handleTerminate(id uint32, payload []byte) (*Message, error) {
	var req TerminateRequest
	if err := Decode(payload, &req); err != nil {
		return NewErrorMessage(id, ErrCodeInvalidRequest, "invalid terminate request"), nil
	}
	if req.Reason == "" {
		req.Reason = "terminated by operator"
	}

	outcome := h.Engine.ForceTerminate(req.Reason)
	if outcome == nil {
		return NewErrorMessage(id, ErrCodeNoAttempt, "no attempt in progress"), nil
	}

	snap := h.Engine.Snapshot()
	return NewResponse(MsgTerminateResp, id, &SubmitResponse{
		AttemptID: snap.AttemptID,
		Status:    string(snap.State),
		Outcome:   outcome,
		Snapshot:  &snap,
	})
}

func (h *DaemonHandler) handleHistory(id uint32, payload []byte) (*Message, error) {
	var req HistoryRequest
	if len(payload) > 0 {
		if err := Decode(payload, &req); err != nil {
			return NewErrorMessage(id, ErrCodeInvalidRequest, "invalid history request"), nil
		}
	}

	attempts, err := h.Store.History(req.TestID, req.Limit)
	if err != nil {
		return nil, err
	}
	return NewResponse(MsgHistoryResp, id, &HistoryResponse{Attempts: attempts})
}

func (h *DaemonHandler) handleViolations(id uint32, payload []byte) (*Message, error) {
	var req ViolationsRequest
	if err := Decode(payload, &req); err != nil {
		return NewErrorMessage(id, ErrCodeInvalidRequest, "invalid violations request"), nil
	}

	var violations []exam.Violation

	// Prefer the live attempt so the audit log is visible mid-session.
	if snap := h.Engine.Snapshot(); snap.AttemptID == req.AttemptID {
		violations = h.Engine.Violations()
	} else {
		var err error
		violations, err = h.Store.Violations(req.AttemptID)
		if err != nil {
			return nil, err
		}
	}

	return NewResponse(MsgViolationsResp, id, &ViolationsResponse{
		AttemptID:  req.AttemptID,
		Violations: violations,
	})
}

func (h *DaemonHandler) handleCertificate(id uint32, payload []byte) (*Message, error) {
	var req CertificateRequest
	if err := Decode(payload, &req); err != nil {
		return NewErrorMessage(id, ErrCodeInvalidRequest, "invalid certificate request"), nil
	}

	a := h.Engine.Attempt()
	if a == nil {
		return NewErrorMessage(id, ErrCodeNotFinished, "no finished attempt"), nil
	}

	cert, err := certificate.Build(a, req.Recipient)
	if err != nil {
		if errors.Is(err, certificate.ErrNotEligible) {
			return NewErrorMessage(id, ErrCodeNotFinished, err.Error()), nil
		}
		return nil, err
	}
	return NewResponse(MsgCertificateResp, id, &CertificateResponse{Certificate: cert})
}

func (h *DaemonHandler) handleVerifyRecord(id uint32, payload []byte) (*Message, error) {
	var req VerifyRecordRequest
	if err := Decode(payload, &req); err != nil {
		return NewErrorMessage(id, ErrCodeInvalidRequest, "invalid verify request"), nil
	}

	valid, err := h.Store.Verify(req.AttemptID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NewErrorMessage(id, ErrCodeNotFound, err.Error()), nil
		}
		return nil, err
	}
	return NewResponse(MsgVerifyRecordResp, id, &VerifyRecordResponse{
		AttemptID: req.AttemptID,
		Valid:     valid,
	})
}

func (h *DaemonHandler) snapshotResponse(msgType MessageType, id uint32) (*Message, error) {
	snap := h.Engine.Snapshot()
	return NewResponse(msgType, id, &SnapshotResponse{Snapshot: &snap})
}

// engineError maps session errors to protocol error codes.
func (h *DaemonHandler) engineError(id uint32, err error) *Message {
	switch {
	case errors.Is(err, session.ErrAlreadyStarted):
		return NewErrorMessage(id, ErrCodeAttemptActive, err.Error())
	case errors.Is(err, session.ErrNotRunning):
		return NewErrorMessage(id, ErrCodeNoAttempt, err.Error())
	case errors.Is(err, session.ErrNotFinished):
		return NewErrorMessage(id, ErrCodeNotFinished, err.Error())
	default:
		return NewErrorMessage(id, ErrCodeInvalidRequest, err.Error())
	}
}
