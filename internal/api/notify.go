package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/gena"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
)

// GENA notification header values.
const (
	notifyType    = "upnp:event"
	notifySubtype = "upnp:propchange"
)

// handleNotify accepts an event notification on a callback path, reads its
// property set and hands the event to every sink.
//
// Missing NT or NTS headers answer 400; unexpected values or a missing SID
// answer 412. A body the GENA processor cannot read answers 400.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	svc, res, err := s.resolve(r.URL.Path)
	if err != nil || res != meta.CallbackResource {
		writeNotFound(w, "no callback resource at this path")
		return
	}

	nt, nts := r.Header.Get("NT"), r.Header.Get("NTS")
	if nt == "" || nts == "" {
		writeBadRequest(w, "NT and NTS headers are required")
		return
	}
	sid := r.Header.Get("SID")
	if nt != notifyType || nts != notifySubtype || sid == "" {
		writeError(w, http.StatusPreconditionFailed, ErrCodePreconditionFailed, "not a property change event")
		return
	}
	seq, err := strconv.ParseUint(r.Header.Get("SEQ"), 10, 32)
	if err != nil {
		writeBadRequest(w, "invalid SEQ header")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBodyError(w, err)
		return
	}

	event := &gena.IncomingEvent{
		Service:        svc,
		SubscriptionID: sid,
		Sequence:       uint32(seq),
	}
	if err := s.gena.ReadBody(body, event); err != nil {
		s.logger.Warn("unreadable event notification",
			"service", svc.ID().String(),
			"sid", sid,
			"error", err,
		)
		writeBadRequest(w, "unreadable property set")
		return
	}

	s.logger.Debug("event received",
		"service", svc.ID().String(),
		"sid", sid,
		"seq", seq,
		"values", len(event.Values),
	)
	for _, sink := range s.sinks {
		if err := sink.RecordReceived(r.Context(), event); err != nil {
			s.logger.Error("event sink failed", "sid", sid, "error", err)
		}
	}

	w.WriteHeader(http.StatusOK)
}
