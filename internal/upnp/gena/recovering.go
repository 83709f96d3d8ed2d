package gena

import (
	"bytes"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/xmlrepair"
)

// RecoveringProcessor wraps StreamProcessor. On failure it escapes stray
// ampersands and raw LastChange XML, then retries once. If the retry also
// fails but some values were read, those values are kept and the error is
// dropped.
type RecoveringProcessor struct {
	*StreamProcessor
}

// NewRecoveringProcessor returns a recovering processor. A nil logger
// discards output.
func NewRecoveringProcessor(logger Logger) *RecoveringProcessor {
	return &RecoveringProcessor{StreamProcessor: NewStreamProcessor(logger)}
}

// ReadBody reads a property set, repairing the body once on failure.
func (p *RecoveringProcessor) ReadBody(body []byte, event *IncomingEvent) error {
	start := len(event.Values)
	original := p.StreamProcessor.ReadBody(body, event)
	if original == nil {
		return nil
	}

	trimmed := string(bytes.TrimSpace(body))
	if trimmed != "" {
		fixed := xmlrepair.FixLastChange(xmlrepair.FixEntities(trimmed))
		if fixed != trimmed {
			p.logger.Warn("retrying GENA body after repair", "error", original)

			retry := &IncomingEvent{Service: event.Service}
			err := p.StreamProcessor.ReadBody([]byte(fixed), retry)
			if err == nil || len(retry.Values) > len(event.Values)-start {
				event.Values = append(event.Values[:start], retry.Values...)
			}
			if err == nil {
				return nil
			}
		}
	}

	if recovered := len(event.Values) - start; recovered > 0 {
		p.logger.Warn("keeping partial GENA values from invalid body",
			"recovered", recovered,
			"error", original,
		)
		return nil
	}
	return original
}
