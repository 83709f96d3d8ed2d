package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/control"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/datatype"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/gena"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
)

// Measurement names.
const (
	MeasurementStateVariables = "upnp_state"
	MeasurementInvocations    = "upnp_invocations"
)

// WriteStateChange records the numeric and boolean values of an evented
// change as one point tagged with the owning device and service.
//
// String, date and binary values are not time-series data and are skipped.
// Nothing is written when no value qualifies.
//
// Parameters:
//   - svc: The service whose state variables changed
//   - values: Changed values, as delivered to localsvc listeners
//   - at: Time of the change
func (c *Client) WriteStateChange(svc *meta.Service, values []gena.StateVariableValue, at time.Time) {
	if !c.IsConnected() {
		return
	}
	if point := statePoint(svc, values, at); point != nil {
		c.writeAPI.WritePoint(point)
	}
}

// WriteInvocation records the outcome and latency of a completed
// invocation. Failed invocations carry their UPnP error code.
func (c *Client) WriteInvocation(source string, inv *control.Invocation, elapsed time.Duration) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(invocationPoint(source, inv, elapsed, time.Now()))
}

// statePoint builds the point for a state change, or nil when no value
// has a numeric representation.
func statePoint(svc *meta.Service, values []gena.StateVariableValue, at time.Time) *write.Point {
	fields := make(map[string]interface{}, len(values))
	for _, v := range values {
		if f, ok := numericValue(v.Value()); ok {
			fields[v.Variable().Name()] = f
		}
	}
	if len(fields) == 0 {
		return nil
	}

	return write.NewPoint(MeasurementStateVariables, serviceTags(svc), fields, at)
}

func invocationPoint(source string, inv *control.Invocation, elapsed time.Duration, at time.Time) *write.Point {
	action := inv.Action()
	tags := serviceTags(action.Service())
	tags["action"] = action.Name()
	tags["source"] = source

	fields := map[string]interface{}{
		"duration_ms": float64(elapsed.Microseconds()) / 1000,
	}
	if failure := inv.Failure(); failure != nil {
		tags["outcome"] = "failed"
		fields["error_code"] = int64(failure.Code)
	} else {
		tags["outcome"] = "ok"
	}

	return write.NewPoint(MeasurementInvocations, tags, fields, at)
}

func serviceTags(svc *meta.Service) map[string]string {
	tags := map[string]string{"service_id": svc.ID().ID}
	if dev := svc.Device(); dev != nil {
		tags["device_udn"] = string(dev.UDN())
		tags["device_type"] = dev.Type().String()
	}
	return tags
}

// numericValue maps a typed state variable value to a float field.
// Booleans become 0 or 1.
func numericValue(v any) (float64, bool) {
	if b, ok := v.(bool); ok {
		if b {
			return 1, true
		}
		return 0, true
	}
	return datatype.Float64(v)
}
