package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-upnp/internal/eventlog"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/devicedef"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/gena"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
)

// notifyRequest builds a NOTIFY to the callback path of the test service.
func (e *testEnv) notifyRequest(body string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(methodNotify, e.server.Namespace().CallbackPath(e.svc), strings.NewReader(body))
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	for k, v := range headers {
		if v == "" {
			req.Header.Del(k)
			continue
		}
		req.Header.Set(k, v)
	}
	return req
}

func propertySet(t *testing.T, env *testEnv, values map[string]string) string {
	t.Helper()
	var list []gena.StateVariableValue
	for name, text := range values {
		v, err := gena.NewStateVariableValue(env.svc.StateVariable(name), text)
		if err != nil {
			t.Fatalf("NewStateVariableValue(%s) error = %v", name, err)
		}
		list = append(list, v)
	}
	body, err := gena.NewTreeProcessor(nil).WriteBody(list)
	if err != nil {
		t.Fatalf("WriteBody() error = %v", err)
	}
	return string(body)
}

func validNotifyHeaders() map[string]string {
	return map[string]string{
		"NT":  "upnp:event",
		"NTS": "upnp:propchange",
		"SID": "uuid:6f2c4d1e-0000-4000-8000-000000000001",
		"SEQ": "3",
	}
}

func TestNotify_DeliversToSinks(t *testing.T) {
	env := testServer(t)
	body := propertySet(t, env, map[string]string{"Target": "1"})

	rec := env.do(env.notifyRequest(body, validNotifyHeaders()))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	if len(env.sink.events) != 1 {
		t.Fatalf("sink events = %d, want 1", len(env.sink.events))
	}
	event := env.sink.events[0]
	if event.SubscriptionID != "uuid:6f2c4d1e-0000-4000-8000-000000000001" || event.Sequence != 3 {
		t.Errorf("event SID/SEQ = %q/%d", event.SubscriptionID, event.Sequence)
	}
	if v, ok := event.Value("Target"); !ok || v.String() != "1" {
		t.Errorf("Target = %q, %v; want 1", v.String(), ok)
	}

	result, err := env.repo.List(context.Background(), eventlog.Filter{Direction: eventlog.Received})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 {
		t.Errorf("received events = %d, want 1", result.Total)
	}
}

func TestNotify_IgnoresUnknownProperties(t *testing.T) {
	env := testServer(t)
	body := `<?xml version="1.0"?>` +
		`<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">` +
		`<e:property><Brightness>40</Brightness></e:property>` +
		`<e:property><Target>0</Target></e:property>` +
		`</e:propertyset>`

	rec := env.do(env.notifyRequest(body, validNotifyHeaders()))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if len(env.sink.events) != 1 || len(env.sink.events[0].Values) != 1 {
		t.Fatalf("sink events = %+v, want one event with one value", env.sink.events)
	}
}

func TestNotify_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		body       string
		wantStatus int
	}{
		{"missing NT", map[string]string{"NT": ""}, "", http.StatusBadRequest},
		{"missing NTS", map[string]string{"NTS": ""}, "", http.StatusBadRequest},
		{"wrong NT", map[string]string{"NT": "upnp:other"}, "", http.StatusPreconditionFailed},
		{"wrong NTS", map[string]string{"NTS": "ssdp:alive"}, "", http.StatusPreconditionFailed},
		{"missing SID", map[string]string{"SID": ""}, "", http.StatusPreconditionFailed},
		{"invalid SEQ", map[string]string{"SEQ": "first"}, "", http.StatusBadRequest},
		{"unreadable body", nil, "<e:propertyset", http.StatusBadRequest},
		{"wrong root", nil, "<properties/>", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t)
			headers := validNotifyHeaders()
			for k, v := range tt.headers {
				headers[k] = v
			}
			body := tt.body
			if body == "" {
				body = propertySet(t, env, map[string]string{"Target": "1"})
			}

			rec := env.do(env.notifyRequest(body, headers))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if len(env.sink.events) != 0 {
				t.Errorf("sink received %d events, want 0", len(env.sink.events))
			}
		})
	}
}

func TestNotify_ControlPathNotFound(t *testing.T) {
	env := testServer(t)
	req := httptest.NewRequest(methodNotify, env.server.Namespace().ControlPath(env.svc), strings.NewReader("<x/>"))
	for k, v := range validNotifyHeaders() {
		req.Header.Set(k, v)
	}
	if rec := env.do(req); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

const loungeRenderer = `
remote_devices:
  - friendly_name: Lounge Renderer
    type: urn:schemas-upnp-org:device:MediaRenderer:1
    manufacturer: Acme
    model_name: R-100
    descriptor_url: http://192.168.1.40:49152/description.xml
    services:
      - type: urn:schemas-upnp-org:service:RenderingControl:1
        id: urn:upnp-org:serviceId:RenderingControl
        control_url: /upnp/control/rendering
        state_variables:
          - {name: Volume, datatype: ui2, send_events: true}
`

func TestNotify_RemoteDevice(t *testing.T) {
	set, err := devicedef.ParseSet([]byte(loungeRenderer))
	if err != nil {
		t.Fatalf("ParseSet() error = %v", err)
	}
	env := testServer(t, func(d *Deps) { d.Devices = set.Remote })
	remote := set.Remote[0].Services()[0]
	ns := env.server.Namespace()

	volume, err := gena.NewStateVariableValue(remote.StateVariable("Volume"), "35")
	if err != nil {
		t.Fatal(err)
	}
	body, err := gena.NewTreeProcessor(nil).WriteBody([]gena.StateVariableValue{volume})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(methodNotify, ns.CallbackPath(remote), strings.NewReader(string(body)))
	for k, v := range validNotifyHeaders() {
		req.Header.Set(k, v)
	}
	if rec := env.do(req); rec.Code != http.StatusOK {
		t.Fatalf("NOTIFY status = %d: %s", rec.Code, rec.Body)
	}
	if len(env.sink.events) != 1 || env.sink.events[0].Service != remote {
		t.Fatalf("sink events = %+v", env.sink.events)
	}

	result, err := env.repo.List(context.Background(), eventlog.Filter{
		DeviceUDN: set.Remote[0].UDN().String(),
		Direction: eventlog.Received,
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 {
		t.Errorf("received events for remote device = %d, want 1", result.Total)
	}

	// Remote services have no local control endpoint.
	ctrl := httptest.NewRequest(http.MethodPost, ns.ControlPath(remote), strings.NewReader("<x/>"))
	if rec := env.do(ctrl); rec.Code != http.StatusNotFound {
		t.Errorf("control status = %d, want 404", rec.Code)
	}
	if set.Remote[0].Kind() != meta.Remote {
		t.Errorf("Kind() = %v", set.Remote[0].Kind())
	}
}
