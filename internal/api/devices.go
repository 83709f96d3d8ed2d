package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
)

// maxQueryParamLen limits path and query parameter length.
const maxQueryParamLen = 100

// DeviceView is the JSON form of a hosted device.
type DeviceView struct {
	UDN          string        `json:"udn"`
	DeviceType   string        `json:"device_type"`
	FriendlyName string        `json:"friendly_name"`
	Manufacturer string        `json:"manufacturer,omitempty"`
	ModelName    string        `json:"model_name,omitempty"`
	Services     []ServiceView `json:"services"`
	Embedded     []DeviceView  `json:"embedded,omitempty"`
}

// ServiceView is the JSON form of a hosted service with its resource paths.
type ServiceView struct {
	ServiceID    string   `json:"service_id"`
	ServiceType  string   `json:"service_type"`
	ControlPath  string   `json:"control_path"`
	EventPath    string   `json:"event_path"`
	CallbackPath string   `json:"callback_path"`
	Actions      []string `json:"actions"`
}

// StateView is the JSON form of a service's state variable values, as
// wire text. Absent values are empty strings.
type StateView struct {
	DeviceUDN string            `json:"device_udn"`
	ServiceID string            `json:"service_id"`
	Values    map[string]string `json:"values"`
}

// SetStateRequest carries state variable values as wire text.
type SetStateRequest struct {
	Values map[string]string `json:"values"`
}

func (s *Server) deviceView(d *meta.Device) DeviceView {
	details := d.Details()
	view := DeviceView{
		UDN:          string(d.UDN()),
		DeviceType:   d.Type().String(),
		FriendlyName: details.FriendlyName,
		Manufacturer: details.Manufacturer,
		ModelName:    details.ModelName,
		Services:     make([]ServiceView, 0, len(d.Services())),
	}
	for _, svc := range d.Services() {
		actions := make([]string, 0, len(svc.Actions()))
		for _, a := range svc.Actions() {
			actions = append(actions, a.Name())
		}
		view.Services = append(view.Services, ServiceView{
			ServiceID:    svc.ID().ID,
			ServiceType:  svc.Type().String(),
			ControlPath:  s.namespace.ControlPath(svc),
			EventPath:    s.namespace.EventPath(svc),
			CallbackPath: s.namespace.CallbackPath(svc),
			Actions:      actions,
		})
	}
	for _, embedded := range d.EmbeddedDevices() {
		view.Embedded = append(view.Embedded, s.deviceView(embedded))
	}
	return view
}

// handleListDevices returns the hosted root devices.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.host.Devices()
	views := make([]DeviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, s.deviceView(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": views,
		"count":   len(views),
	})
}

// handleGetDevice returns one hosted device, root or embedded.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d := s.deviceParam(r)
	if d == nil {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, s.deviceView(d))
}

// handleGetState returns the current state variable values of a service.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	svc := s.serviceParam(r)
	if svc == nil {
		writeNotFound(w, "service not found")
		return
	}
	writeJSON(w, http.StatusOK, s.stateView(svc))
}

// handleSetState stores state variable values of a service. Evented
// changes propagate to subscribers as if an action had set them.
func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	svc := s.serviceParam(r)
	if svc == nil {
		writeNotFound(w, "service not found")
		return
	}

	var req SetStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Values) == 0 {
		writeBadRequest(w, "values are required")
		return
	}

	values := make(map[string]any, len(req.Values))
	for name, text := range req.Values {
		values[name] = text
	}
	if err := s.host.Executor(svc).Set(values); err != nil {
		writeStateError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, s.stateView(svc))
}

func (s *Server) stateView(svc *meta.Service) StateView {
	view := StateView{
		DeviceUDN: string(svc.Device().UDN()),
		ServiceID: svc.ID().ID,
		Values:    make(map[string]string),
	}
	for _, v := range s.host.Executor(svc).Snapshot() {
		view.Values[v.Variable().Name()] = v.String()
	}
	return view
}

// deviceParam resolves the {udn} path parameter. A "uuid:" prefix is
// accepted.
func (s *Server) deviceParam(r *http.Request) *meta.Device {
	udn := chi.URLParam(r, "udn")
	if udn == "" || len(udn) > maxQueryParamLen {
		return nil
	}
	return s.host.Device(meta.UDN(strings.TrimPrefix(udn, "uuid:")))
}

// serviceParam resolves {udn} and {serviceID} to a hosted service.
func (s *Server) serviceParam(r *http.Request) *meta.Service {
	d := s.deviceParam(r)
	if d == nil {
		return nil
	}
	id := chi.URLParam(r, "serviceID")
	for _, svc := range d.Services() {
		if svc.ID().ID == id {
			return svc
		}
	}
	return nil
}
