// Package devicedef builds local device graphs from YAML definition files.
//
// A definition file lists root devices, each with services, actions and
// state variables:
//
//	devices:
//	  - friendly_name: Kitchen Light
//	    type: urn:schemas-upnp-org:device:BinaryLight:1
//	    services:
//	      - type: urn:schemas-upnp-org:service:SwitchPower:1
//	        id: urn:upnp-org:serviceId:SwitchPower
//	        state_variables:
//	          - {name: Target, datatype: boolean, default: "0"}
//	        actions:
//	          - name: SetTarget
//	            arguments:
//	              - {name: newTargetValue, direction: in, related_state_variable: Target}
//
// A remote_devices list declares devices on other hosts the same way,
// adding a descriptor_url per device and control_url/event_url per service.
// Relative service URLs resolve against the device descriptor URL.
//
// Unknown datatypes and directions are passed through so that the metadata
// graph reports them: invalid actions are dropped, anything else fails the
// device.
package devicedef

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/datatype"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
)

// ErrInvalidDefinition is returned when a definition cannot be turned into
// a device graph.
var ErrInvalidDefinition = errors.New("devicedef: invalid definition")

// File is the root of a definition file.
type File struct {
	Devices       []Device `yaml:"devices"`
	RemoteDevices []Device `yaml:"remote_devices"`
}

// Set holds the device graphs of a definition file.
type Set struct {
	Local  []*meta.Device
	Remote []*meta.Device
}

// Device declares a local or remote device.
type Device struct {
	UDN              string    `yaml:"udn"`
	DescriptorURL    string    `yaml:"descriptor_url"` // Remote devices only
	Type             string    `yaml:"type"`
	MaxAge           int       `yaml:"max_age"` // Seconds; defaults to 1800
	FriendlyName     string    `yaml:"friendly_name"`
	Manufacturer     string    `yaml:"manufacturer"`
	ManufacturerURL  string    `yaml:"manufacturer_url"`
	ModelName        string    `yaml:"model_name"`
	ModelDescription string    `yaml:"model_description"`
	ModelNumber      string    `yaml:"model_number"`
	SerialNumber     string    `yaml:"serial_number"`
	UPC              string    `yaml:"upc"`
	PresentationURL  string    `yaml:"presentation_url"`
	Icons            []Icon    `yaml:"icons"`
	Services         []Service `yaml:"services"`
	Embedded         []Device  `yaml:"embedded"`
}

// Icon declares a device icon.
type Icon struct {
	MimeType string `yaml:"mime_type"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	Depth    int    `yaml:"depth"`
	URI      string `yaml:"uri"`
}

// Service declares a service.
type Service struct {
	Type               string          `yaml:"type"`
	ID                 string          `yaml:"id"`
	QueryStateVariable bool            `yaml:"query_state_variable"`
	DescriptorURL      string          `yaml:"descriptor_url"` // Remote services only
	ControlURL         string          `yaml:"control_url"`
	EventURL           string          `yaml:"event_url"`
	StateVariables     []StateVariable `yaml:"state_variables"`
	Actions            []Action        `yaml:"actions"`
}

// StateVariable declares a state variable.
type StateVariable struct {
	Name          string   `yaml:"name"`
	Datatype      string   `yaml:"datatype"`
	Default       string   `yaml:"default"`
	AllowedValues []string `yaml:"allowed_values"`
	AllowedRange  *Range   `yaml:"allowed_range"`
	SendEvents    bool     `yaml:"send_events"`
	MaxRateMS     int      `yaml:"max_rate_ms"`
	MinDelta      int64    `yaml:"min_delta"`
}

// Range declares an allowed value range.
type Range struct {
	Minimum int64 `yaml:"minimum"`
	Maximum int64 `yaml:"maximum"`
	Step    int64 `yaml:"step"`
}

// Action declares an action.
type Action struct {
	Name      string     `yaml:"name"`
	Arguments []Argument `yaml:"arguments"`
}

// Argument declares an action argument.
type Argument struct {
	Name                 string   `yaml:"name"`
	Direction            string   `yaml:"direction"`
	RelatedStateVariable string   `yaml:"related_state_variable"`
	Aliases              []string `yaml:"aliases"`
	Retval               bool     `yaml:"retval"`
}

const defaultMaxAge = 1800 * time.Second

// Load reads a definition file and builds its local devices.
//
// Parameters:
//   - path: Path to the YAML definition file
//   - opts: Options passed to meta.NewService and meta.NewDevice
//
// Returns:
//   - []*meta.Device: Root devices in file order
//   - error: If the file cannot be read or a device cannot be built
func Load(path string, opts ...meta.Option) ([]*meta.Device, error) {
	set, err := LoadSet(path, opts...)
	if err != nil {
		return nil, err
	}
	return set.Local, nil
}

// LoadSet reads a definition file and builds its local and remote devices.
func LoadSet(path string, opts ...meta.Option) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading device definitions: %w", err)
	}
	return ParseSet(data, opts...)
}

// Parse builds the local devices of a YAML definition.
func Parse(data []byte, opts ...meta.Option) ([]*meta.Device, error) {
	set, err := ParseSet(data, opts...)
	if err != nil {
		return nil, err
	}
	return set.Local, nil
}

// ParseSet builds the local and remote devices of a YAML definition.
func ParseSet(data []byte, opts ...meta.Option) (*Set, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parsing: %w", ErrInvalidDefinition, err)
	}

	set := &Set{
		Local:  make([]*meta.Device, 0, len(f.Devices)),
		Remote: make([]*meta.Device, 0, len(f.RemoteDevices)),
	}
	for i, d := range f.Devices {
		device, err := Build(d, opts...)
		if err != nil {
			return nil, fmt.Errorf("device %d (%s): %w", i, d.FriendlyName, err)
		}
		set.Local = append(set.Local, device)
	}
	for i, d := range f.RemoteDevices {
		device, err := BuildRemote(d, opts...)
		if err != nil {
			return nil, fmt.Errorf("remote device %d (%s): %w", i, d.FriendlyName, err)
		}
		set.Remote = append(set.Remote, device)
	}
	return set, nil
}

// Build turns one device declaration, including embedded devices, into a
// bound device graph. A missing UDN is derived from the friendly name so it
// stays stable across restarts.
func Build(d Device, opts ...meta.Option) (*meta.Device, error) {
	return build(d, nil, opts)
}

// BuildRemote turns a remote device declaration into a bound graph whose
// services carry endpoint URLs. Embedded devices inherit the descriptor
// URL of their parent unless they declare their own.
func BuildRemote(d Device, opts ...meta.Option) (*meta.Device, error) {
	if d.DescriptorURL == "" {
		return nil, fmt.Errorf("%w: remote device %q without descriptor_url", ErrInvalidDefinition, d.FriendlyName)
	}
	base, err := parseURL(nil, d.DescriptorURL)
	if err != nil {
		return nil, err
	}
	return build(d, base, opts)
}

// build creates a local device when base is nil, a remote one otherwise.
func build(d Device, base *url.URL, opts []meta.Option) (*meta.Device, error) {
	udn := meta.UDNFromName(d.FriendlyName)
	if d.UDN != "" {
		parsed, err := meta.ParseUDN(d.UDN)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
		}
		udn = parsed
	}

	typ, err := meta.ParseDeviceType(d.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}

	kind := meta.Local
	if base != nil {
		kind = meta.Remote
		if d.DescriptorURL != "" {
			if base, err = parseURL(base, d.DescriptorURL); err != nil {
				return nil, err
			}
		}
	}

	services := make([]*meta.Service, 0, len(d.Services))
	for _, s := range d.Services {
		var endpoints *meta.Endpoints
		if base != nil {
			if endpoints, err = buildEndpoints(s, base); err != nil {
				return nil, err
			}
		}
		svc, err := buildService(s, endpoints, opts)
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	}

	embedded := make([]*meta.Device, 0, len(d.Embedded))
	for _, e := range d.Embedded {
		child, err := build(e, base, opts)
		if err != nil {
			return nil, err
		}
		embedded = append(embedded, child)
	}

	maxAge := defaultMaxAge
	if d.MaxAge > 0 {
		maxAge = time.Duration(d.MaxAge) * time.Second
	}

	icons := make([]meta.Icon, len(d.Icons))
	for i, icon := range d.Icons {
		icons[i] = meta.Icon(icon)
	}

	return meta.NewDevice(meta.DeviceDef{
		Kind:     kind,
		Identity: meta.Identity{UDN: udn, MaxAge: maxAge, DescriptorURL: base},
		Type:     typ,
		Details: meta.Details{
			FriendlyName:     d.FriendlyName,
			Manufacturer:     d.Manufacturer,
			ManufacturerURL:  d.ManufacturerURL,
			ModelName:        d.ModelName,
			ModelDescription: d.ModelDescription,
			ModelNumber:      d.ModelNumber,
			SerialNumber:     d.SerialNumber,
			UPC:              d.UPC,
			PresentationURL:  d.PresentationURL,
		},
		Icons:    icons,
		Services: services,
		Embedded: embedded,
	}, opts...)
}

// buildEndpoints resolves the service URLs against the device descriptor.
// A control URL is required; the others are optional.
func buildEndpoints(s Service, base *url.URL) (*meta.Endpoints, error) {
	if s.ControlURL == "" {
		return nil, fmt.Errorf("%w: remote service %q without control_url", ErrInvalidDefinition, s.ID)
	}
	endpoints := &meta.Endpoints{}
	var err error
	if endpoints.Control, err = parseURL(base, s.ControlURL); err != nil {
		return nil, err
	}
	if s.EventURL != "" {
		if endpoints.Event, err = parseURL(base, s.EventURL); err != nil {
			return nil, err
		}
	}
	if s.DescriptorURL != "" {
		if endpoints.Descriptor, err = parseURL(base, s.DescriptorURL); err != nil {
			return nil, err
		}
	}
	return endpoints, nil
}

// parseURL parses raw, resolving it against base when base is set.
func parseURL(base *url.URL, raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	if base != nil {
		return base.ResolveReference(u), nil
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("%w: URL %q is not absolute", ErrInvalidDefinition, raw)
	}
	return u, nil
}

func buildService(s Service, endpoints *meta.Endpoints, opts []meta.Option) (*meta.Service, error) {
	typ, err := meta.ParseServiceType(s.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	id, err := meta.ParseServiceID(s.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}

	variables := make([]*meta.StateVariable, len(s.StateVariables))
	for i, v := range s.StateVariables {
		variables[i] = buildStateVariable(v)
	}

	actions := make([]*meta.Action, 0, len(s.Actions))
	for _, a := range s.Actions {
		args := make([]*meta.Argument, len(a.Arguments))
		for i, arg := range a.Arguments {
			args[i] = buildArgument(arg)
		}
		action, err := meta.NewAction(a.Name, args...)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}

	return meta.NewService(meta.ServiceDef{
		Type:               typ,
		ID:                 id,
		Actions:            actions,
		StateVariables:     variables,
		QueryStateVariable: s.QueryStateVariable,
		Endpoints:          endpoints,
	}, opts...)
}

func buildStateVariable(v StateVariable) *meta.StateVariable {
	typ, err := datatype.Parse(v.Datatype)
	if err != nil {
		// Left as declared; validation reports it.
		typ = datatype.Type(v.Datatype)
	}

	var allowedRange *meta.AllowedRange
	if v.AllowedRange != nil {
		allowedRange = &meta.AllowedRange{
			Minimum: v.AllowedRange.Minimum,
			Maximum: v.AllowedRange.Maximum,
			Step:    v.AllowedRange.Step,
		}
	}

	return meta.NewStateVariable(v.Name,
		meta.TypeDetails{
			Datatype:      typ,
			DefaultValue:  v.Default,
			AllowedValues: v.AllowedValues,
			AllowedRange:  allowedRange,
		},
		meta.EventDetails{
			SendEvents: v.SendEvents,
			MaxRate:    time.Duration(v.MaxRateMS) * time.Millisecond,
			MinDelta:   v.MinDelta,
		},
	)
}

func buildArgument(a Argument) *meta.Argument {
	dir, _ := meta.ParseDirection(a.Direction)

	var opts []meta.ArgumentOption
	if len(a.Aliases) > 0 {
		opts = append(opts, meta.WithAliases(a.Aliases...))
	}
	if a.Retval {
		opts = append(opts, meta.AsReturnValue())
	}
	return meta.NewArgument(a.Name, a.RelatedStateVariable, dir, opts...)
}
