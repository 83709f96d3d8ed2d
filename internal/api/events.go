package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-upnp/internal/eventlog"
)

// handleListEvents returns a page of the event log, newest first.
//
// Query parameters: device_udn, service_id, variable, direction
// (emitted|received), since (RFC3339), limit, offset.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.eventLog == nil {
		writeUnavailable(w, "event log unavailable")
		return
	}

	filter, err := parseEventFilter(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := s.eventLog.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list events", "error", err)
		writeInternalError(w, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListInvocations returns recent action invocations, newest first.
func (s *Server) handleListInvocations(w http.ResponseWriter, r *http.Request) {
	if s.eventLog == nil {
		writeUnavailable(w, "event log unavailable")
		return
	}

	limit, err := parseIntParam(r, "limit")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	invocations, err := s.eventLog.Invocations(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list invocations", "error", err)
		writeInternalError(w, "failed to list invocations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"invocations": invocations,
		"count":       len(invocations),
	})
}

func parseEventFilter(r *http.Request) (eventlog.Filter, error) {
	q := r.URL.Query()
	filter := eventlog.Filter{
		DeviceUDN: q.Get("device_udn"),
		ServiceID: q.Get("service_id"),
		Variable:  q.Get("variable"),
	}
	for name, v := range map[string]string{"device_udn": filter.DeviceUDN, "service_id": filter.ServiceID, "variable": filter.Variable} {
		if len(v) > maxQueryParamLen {
			return filter, fmt.Errorf("%s exceeds maximum length", name)
		}
	}

	switch d := eventlog.Direction(q.Get("direction")); d {
	case "", eventlog.Emitted, eventlog.Received:
		filter.Direction = d
	default:
		return filter, fmt.Errorf("direction must be emitted or received")
	}

	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return filter, fmt.Errorf("invalid since timestamp")
		}
		filter.Since = t
	}

	var err error
	if filter.Limit, err = parseIntParam(r, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = parseIntParam(r, "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

// parseIntParam reads a non-negative integer query parameter; absent is 0.
func parseIntParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}
