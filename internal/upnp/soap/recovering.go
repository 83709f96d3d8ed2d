package soap

import (
	"bytes"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/control"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/xmlrepair"
)

// InvalidMessageHandler decides the outcome of a body that could not be
// read even after repair. It receives the error of the first attempt.
type InvalidMessageHandler func(original error, body []byte, inv *control.Invocation) error

// RecoveringProcessor wraps StreamProcessor. When a read fails it escapes
// stray ampersands and retries once; if that also fails, OnInvalidMessage
// decides the result.
type RecoveringProcessor struct {
	*StreamProcessor

	// OnInvalidMessage is called when the repaired body also fails. The
	// default returns the original error unchanged.
	OnInvalidMessage InvalidMessageHandler
}

// NewRecoveringProcessor returns a recovering processor. A nil logger
// discards output.
func NewRecoveringProcessor(logger Logger) *RecoveringProcessor {
	return &RecoveringProcessor{StreamProcessor: NewStreamProcessor(logger)}
}

// ReadRequest reads a SOAP request, repairing the body once on failure.
func (p *RecoveringProcessor) ReadRequest(body []byte, inv *control.Invocation) error {
	return p.recover(body, inv, p.StreamProcessor.ReadRequest)
}

// ReadResponse reads a SOAP response, repairing the body once on failure.
func (p *RecoveringProcessor) ReadResponse(body []byte, inv *control.Invocation) error {
	return p.recover(body, inv, p.StreamProcessor.ReadResponse)
}

func (p *RecoveringProcessor) recover(body []byte, inv *control.Invocation, read func([]byte, *control.Invocation) error) error {
	original := read(body, inv)
	if original == nil {
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return original
	}

	fixed := xmlrepair.FixEntities(string(body))
	if fixed != string(body) {
		p.logger.Warn("retrying SOAP body after entity repair",
			"action", inv.Action().Name(),
			"error", original,
		)
		if err := read([]byte(fixed), inv); err == nil {
			return nil
		}
	}
	return p.handleInvalidMessage(original, body, inv)
}

func (p *RecoveringProcessor) handleInvalidMessage(original error, body []byte, inv *control.Invocation) error {
	if p.OnInvalidMessage != nil {
		return p.OnInvalidMessage(original, body, inv)
	}
	return original
}
