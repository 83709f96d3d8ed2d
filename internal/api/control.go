package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-upnp/internal/eventlog"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/control"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/soap"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/wire"
)

// resolve finds the service and resource addressed by path across every
// served device tree.
func (s *Server) resolve(path string) (*meta.Service, meta.Resource, error) {
	err := meta.ErrUnknownResource
	for _, root := range s.devices {
		svc, res, resolveErr := s.namespace.Resolve(root, path)
		if resolveErr == nil {
			return svc, res, nil
		}
		err = resolveErr
	}
	return nil, "", err
}

// handleControl answers a SOAP action request posted to a control path.
//
// Every UPnP-level failure is answered with a SOAP Fault and HTTP 500:
//   - unreadable SOAPACTION header or unknown action: 401 Invalid Action
//   - body the processor cannot read: 402 Invalid Args
//   - executor failure: the code the executor reported
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	svc, res, err := s.resolve(r.URL.Path)
	if err != nil || res != meta.ControlResource || svc.IsRemote() {
		writeNotFound(w, "no control resource at this path")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBodyError(w, err)
		return
	}

	_, name, err := soap.ParseActionHeader(r.Header.Get("SOAPACTION"))
	if err != nil {
		s.writeFault(w, control.Errorf(control.InvalidAction, "invalid SOAPACTION header"))
		return
	}
	action := svc.Action(name)
	if action == nil {
		s.logger.Debug("control request for unknown action", "service", svc.ID().String(), "action", name)
		s.writeFault(w, control.Errorf(control.InvalidAction, "No such action '%s' in %s", name, svc.ID()))
		return
	}

	inv := control.NewInvocation(action)
	if err := s.soap.ReadRequest(body, inv); err != nil {
		s.logger.Warn("unreadable control request",
			"service", svc.ID().String(),
			"action", name,
			"error", err,
		)
		inv.SetFailure(requestFailure(err))
	} else {
		// The failure, if any, is recorded on inv.
		_ = s.host.Execute(r.Context(), inv)
	}

	s.observe(r.Context(), inv, time.Since(start))
	s.writeResponse(w, inv)
}

// requestFailure maps a request read error to the Fault sent back.
func requestFailure(err error) *control.ActionError {
	var unsupported *wire.UnsupportedDataError
	if errors.As(err, &unsupported) {
		return &control.ActionError{
			Code:        int(control.InvalidArgs),
			Description: control.InvalidArgs.Description() + ". " + unsupported.Message,
			Err:         err,
		}
	}
	return control.FromError(err, control.InvalidArgs)
}

// observe records a finished invocation in the event log and metrics.
func (s *Server) observe(ctx context.Context, inv *control.Invocation, elapsed time.Duration) {
	if s.eventLog != nil {
		if _, err := s.eventLog.RecordInvocation(ctx, eventlog.SourceSOAP, inv); err != nil {
			s.logger.Error("failed to record invocation", "action", inv.Action().Name(), "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.WriteInvocation(eventlog.SourceSOAP, inv, elapsed)
	}
}

func (s *Server) writeResponse(w http.ResponseWriter, inv *control.Invocation) {
	body, err := s.soap.WriteResponse(inv)
	if err != nil {
		s.logger.Error("failed to encode control response", "action", inv.Action().Name(), "error", err)
		writeInternalError(w, "failed to encode response")
		return
	}

	status := http.StatusOK
	if inv.Failed() {
		status = http.StatusInternalServerError
	}
	writeSOAP(w, status, body)
}

func (s *Server) writeFault(w http.ResponseWriter, failure *control.ActionError) {
	body, err := soap.WriteFault(failure)
	if err != nil {
		s.logger.Error("failed to encode fault", "code", failure.Code, "error", err)
		writeInternalError(w, "failed to encode fault")
		return
	}
	writeSOAP(w, http.StatusInternalServerError, body)
}

func writeSOAP(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", soap.ContentType)
	w.Header()["EXT"] = []string{""}
	w.WriteHeader(status)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(body)
}
