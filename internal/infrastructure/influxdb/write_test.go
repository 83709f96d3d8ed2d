package influxdb

import (
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-upnp/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/control"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/devicedef"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/gena"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
)

const dimmer = `
devices:
  - friendly_name: Lounge Dimmer
    type: urn:schemas-upnp-org:device:DimmableLight:1
    manufacturer: Gray Logic
    model_name: GL-2
    services:
      - type: urn:schemas-upnp-org:service:Dimming:1
        id: urn:upnp-org:serviceId:Dimming
        state_variables:
          - {name: LoadLevelStatus, datatype: ui1, default: "0", send_events: true}
          - {name: Status, datatype: boolean, default: "0", send_events: true}
          - {name: Label, datatype: string, send_events: true}
        actions:
          - name: SetLoadLevelTarget
            arguments:
              - {name: newLoadlevelTarget, direction: in, related_state_variable: LoadLevelStatus}
`

func dimmingService(t *testing.T) *meta.Service {
	t.Helper()
	devices, err := devicedef.Parse([]byte(dimmer))
	if err != nil {
		t.Fatalf("devicedef.Parse() error = %v", err)
	}
	return devices[0].Services()[0]
}

func value(t *testing.T, svc *meta.Service, name string, v any) gena.StateVariableValue {
	t.Helper()
	sv, err := gena.NewStateVariableValue(svc.StateVariable(name), v)
	if err != nil {
		t.Fatalf("NewStateVariableValue(%s) error = %v", name, err)
	}
	return sv
}

func pointTags(p *write.Point) map[string]string {
	tags := make(map[string]string)
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	return tags
}

func pointFields(p *write.Point) map[string]interface{} {
	fields := make(map[string]interface{})
	for _, field := range p.FieldList() {
		fields[field.Key] = field.Value
	}
	return fields
}

func TestStatePoint(t *testing.T) {
	svc := dimmingService(t)
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	p := statePoint(svc, []gena.StateVariableValue{
		value(t, svc, "LoadLevelStatus", uint8(40)),
		value(t, svc, "Status", true),
		value(t, svc, "Label", "lounge"),
	}, at)
	if p == nil {
		t.Fatal("statePoint() = nil")
	}

	if p.Name() != MeasurementStateVariables || !p.Time().Equal(at) {
		t.Errorf("point = %s at %v", p.Name(), p.Time())
	}

	tags := pointTags(p)
	if tags["service_id"] != "Dimming" || tags["device_udn"] != string(svc.Device().UDN()) {
		t.Errorf("tags = %v", tags)
	}

	fields := pointFields(p)
	want := map[string]float64{"LoadLevelStatus": 40, "Status": 1}
	if len(fields) != len(want) {
		t.Fatalf("fields = %v, want %v", fields, want)
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("field %s = %v, want %v", k, fields[k], v)
		}
	}
}

func TestStatePoint_NoNumericValues(t *testing.T) {
	svc := dimmingService(t)

	p := statePoint(svc, []gena.StateVariableValue{value(t, svc, "Label", "lounge")}, time.Now())
	if p != nil {
		t.Errorf("statePoint() = %v, want nil", p)
	}
}

func TestInvocationPoint(t *testing.T) {
	svc := dimmingService(t)
	action := svc.Action("SetLoadLevelTarget")

	tests := []struct {
		name        string
		failure     *control.ActionError
		wantOutcome string
		wantCode    interface{}
	}{
		{"success", nil, "ok", nil},
		{"failure", control.NewActionError(control.ArgumentValueOutOfRange, "out of range"), "failed", int64(601)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := control.NewInvocation(action)
			if tt.failure != nil {
				inv.SetFailure(tt.failure)
			}

			p := invocationPoint("soap", inv, 1500*time.Microsecond, time.Now())
			tags := pointTags(p)
			if tags["action"] != "SetLoadLevelTarget" || tags["source"] != "soap" || tags["outcome"] != tt.wantOutcome {
				t.Errorf("tags = %v", tags)
			}

			fields := pointFields(p)
			if fields["duration_ms"] != 1.5 {
				t.Errorf("duration_ms = %v, want 1.5", fields["duration_ms"])
			}
			if fields["error_code"] != tt.wantCode {
				t.Errorf("error_code = %v, want %v", fields["error_code"], tt.wantCode)
			}
		})
	}
}

func TestNumericValue(t *testing.T) {
	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{false, 0, true},
		{true, 1, true},
		{int32(-7), -7, true},
		{uint64(9), 9, true},
		{2.5, 2.5, true},
		{"12", 0, false},
		{time.Now(), 0, false},
	}

	for _, tt := range tests {
		got, ok := numericValue(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("numericValue(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestWriters_NotConnected(t *testing.T) {
	svc := dimmingService(t)
	client := &Client{}

	// A disconnected client drops writes without touching the write API.
	client.WriteStateChange(svc, []gena.StateVariableValue{value(t, svc, "Status", true)}, time.Now())
	client.WriteInvocation("mqtt", control.NewInvocation(svc.Action("SetLoadLevelTarget")), time.Millisecond)
}

func TestWriteOptions(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.InfluxDBConfig
		site      string
		wantBatch uint
		wantFlush uint
		wantTags  map[string]string
	}{
		{"configured", config.InfluxDBConfig{BatchSize: 50, FlushInterval: 2}, "site-001", 50, 2000, map[string]string{"site": "site-001"}},
		{"zero uses defaults", config.InfluxDBConfig{}, "", 100, 10000, map[string]string{}},
		{"negative uses defaults", config.InfluxDBConfig{BatchSize: -5, FlushInterval: -1}, "", 100, 10000, map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := writeOptions(tt.cfg, tt.site)
			if opts.BatchSize() != tt.wantBatch {
				t.Errorf("BatchSize() = %d, want %d", opts.BatchSize(), tt.wantBatch)
			}
			if opts.FlushInterval() != tt.wantFlush {
				t.Errorf("FlushInterval() = %d, want %d", opts.FlushInterval(), tt.wantFlush)
			}
			tags := opts.WriteOptions().DefaultTags()
			if len(tags) != len(tt.wantTags) || tags["site"] != tt.wantTags["site"] {
				t.Errorf("DefaultTags() = %v, want %v", tags, tt.wantTags)
			}
		})
	}
}
