package controlpoint

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/control"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/datatype"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/gena"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/soap"
)

func newRemoteService(t *testing.T, base string) *meta.Service {
	t.Helper()
	u, err := url.Parse(base)
	if err != nil {
		t.Fatal(err)
	}

	setTarget, err := meta.NewAction("SetTarget", meta.NewArgument("newTargetValue", "Target", meta.In))
	if err != nil {
		t.Fatal(err)
	}
	getStatus, err := meta.NewAction("GetStatus", meta.NewArgument("ResultStatus", "Status", meta.Out, meta.AsReturnValue()))
	if err != nil {
		t.Fatal(err)
	}

	svc, err := meta.NewService(meta.ServiceDef{
		Type: meta.NewUDAServiceType("SwitchPower", 1),
		ID:   meta.NewUDAServiceID("SwitchPower"),
		StateVariables: []*meta.StateVariable{
			meta.NewStateVariable("Target", meta.TypeDetails{Datatype: datatype.Boolean}, meta.EventDetails{}),
			meta.NewStateVariable("Status", meta.TypeDetails{Datatype: datatype.Boolean}, meta.EventDetails{SendEvents: true}),
		},
		Actions: []*meta.Action{setTarget, getStatus},
		Endpoints: &meta.Endpoints{
			Descriptor: u.JoinPath("scpd.xml"),
			Control:    u.JoinPath("control"),
			Event:      u.JoinPath("event"),
		},
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func newClient() *Client {
	return New(Config{}, soap.NewTreeProcessor(nil), gena.NewTreeProcessor(nil))
}

// fakeDevice answers SOAP requests with the strict processor.
func fakeDevice(t *testing.T, svc **meta.Service, answer func(inv *control.Invocation) int) *httptest.Server {
	t.Helper()
	proc := soap.NewTreeProcessor(nil)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/control" {
			http.NotFound(w, r)
			return
		}
		_, name, err := soap.ParseActionHeader(r.Header.Get("SOAPACTION"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		inv := control.NewInvocation((*svc).Action(name))
		body, _ := io.ReadAll(r.Body)
		if err := proc.ReadRequest(body, inv); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		status := answer(inv)
		out, err := proc.WriteResponse(inv)
		if err != nil {
			t.Errorf("WriteResponse() error = %v", err)
		}
		w.Header().Set("Content-Type", soap.ContentType)
		w.WriteHeader(status)
		_, _ = w.Write(out)
	}))
}

func TestInvoke_Success(t *testing.T) {
	var svc *meta.Service
	var gotTarget any
	srv := fakeDevice(t, &svc, func(inv *control.Invocation) int {
		if inv.Action().Name() == "SetTarget" {
			v, _ := inv.InputValue("newTargetValue")
			gotTarget = v.Value()
			return http.StatusOK
		}
		_ = inv.SetOutput("ResultStatus", true)
		return http.StatusOK
	})
	defer srv.Close()
	svc = newRemoteService(t, srv.URL)
	client := newClient()

	set := control.NewInvocation(svc.Action("SetTarget"))
	if err := set.SetInput("newTargetValue", true); err != nil {
		t.Fatal(err)
	}
	if err := client.Invoke(context.Background(), set); err != nil {
		t.Fatalf("Invoke(SetTarget) error = %v", err)
	}
	if gotTarget != true {
		t.Errorf("device received %v, want true", gotTarget)
	}

	get := control.NewInvocation(svc.Action("GetStatus"))
	if err := client.Invoke(context.Background(), get); err != nil {
		t.Fatalf("Invoke(GetStatus) error = %v", err)
	}
	if v, ok := get.OutputValue("ResultStatus"); !ok || v.Value() != true {
		t.Errorf("ResultStatus = %v", v.Value())
	}
}

func TestInvoke_Fault(t *testing.T) {
	var svc *meta.Service
	srv := fakeDevice(t, &svc, func(inv *control.Invocation) int {
		inv.SetFailure(control.NewActionError(control.ErrorCode(718), "ConflictInMappingEntry"))
		return http.StatusInternalServerError
	})
	defer srv.Close()
	svc = newRemoteService(t, srv.URL)

	inv := control.NewInvocation(svc.Action("GetStatus"))
	err := newClient().Invoke(context.Background(), inv)

	var ae *control.ActionError
	if !errors.As(err, &ae) || ae.Code != 718 || ae.Description != "ConflictInMappingEntry" {
		t.Fatalf("Invoke() error = %v, want 718 fault", err)
	}
	if inv.Failure() == nil || inv.Failure().Code != 718 {
		t.Errorf("invocation failure = %v", inv.Failure())
	}
}

func TestInvoke_TransportFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
			wantErr: ErrUnexpectedStatus,
		},
		{
			name: "500 without fault",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantErr: ErrUnexpectedStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			svc := newRemoteService(t, srv.URL)

			inv := control.NewInvocation(svc.Action("GetStatus"))
			err := newClient().Invoke(context.Background(), inv)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Invoke() error = %v, want %v", err, tt.wantErr)
			}
			if !inv.Failed() || inv.Failure().ErrorCode() != control.ActionFailed {
				t.Errorf("invocation failure = %v, want 501", inv.Failure())
			}
		})
	}
}

func TestInvoke_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	svc := newRemoteService(t, srv.URL)
	srv.Close()

	err := newClient().Invoke(context.Background(), control.NewInvocation(svc.Action("GetStatus")))
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("Invoke() error = %v, want ErrRequestFailed", err)
	}
}

func TestInvoke_LocalService(t *testing.T) {
	a, _ := meta.NewAction("GetStatus", meta.NewArgument("ResultStatus", "Status", meta.Out))
	svc, err := meta.NewService(meta.ServiceDef{
		Type: meta.NewUDAServiceType("SwitchPower", 1),
		ID:   meta.NewUDAServiceID("SwitchPower"),
		StateVariables: []*meta.StateVariable{
			meta.NewStateVariable("Status", meta.TypeDetails{Datatype: datatype.Boolean}, meta.EventDetails{}),
		},
		Actions: []*meta.Action{a},
	})
	if err != nil {
		t.Fatal(err)
	}

	err = newClient().Invoke(context.Background(), control.NewInvocation(svc.Action("GetStatus")))
	if !errors.Is(err, ErrNotRemote) {
		t.Errorf("Invoke() error = %v, want ErrNotRemote", err)
	}
}

func TestNotify(t *testing.T) {
	var svc *meta.Service
	received := make(chan *gena.IncomingEvent, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "NOTIFY" || r.Header.Get("NT") != "upnp:event" || r.Header.Get("NTS") != "upnp:propchange" {
			http.Error(w, "bad request", http.StatusPreconditionFailed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		event := &gena.IncomingEvent{Service: svc, SubscriptionID: r.Header.Get("SID")}
		if err := gena.NewTreeProcessor(nil).ReadBody(body, event); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		received <- event
	}))
	defer srv.Close()
	svc = newRemoteService(t, srv.URL)

	status, err := gena.NewStateVariableValue(svc.StateVariable("Status"), true)
	if err != nil {
		t.Fatal(err)
	}
	callback, _ := url.Parse(srv.URL + "/cb")

	if err := newClient().Notify(context.Background(), callback, "uuid:sub-1", 3, []gena.StateVariableValue{status}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	event := <-received
	if event.SubscriptionID != "uuid:sub-1" {
		t.Errorf("SID = %q", event.SubscriptionID)
	}
	if v, ok := event.Value("Status"); !ok || v.Value() != true {
		t.Errorf("Status = %v", v.Value())
	}
}
