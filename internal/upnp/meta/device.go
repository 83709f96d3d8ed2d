package meta

import (
	"fmt"
	"net/url"
	"slices"
	"time"
)

// Kind distinguishes devices hosted here from devices on the network.
type Kind int

// Device kinds.
const (
	Local Kind = iota
	Remote
)

func (k Kind) String() string {
	if k == Remote {
		return "remote"
	}
	return "local"
}

// Identity identifies a device instance.
type Identity struct {
	UDN    UDN
	MaxAge time.Duration

	// DescriptorURL is the location of a remote device's descriptor.
	DescriptorURL *url.URL
}

// Details is the human-readable description of a device.
type Details struct {
	FriendlyName     string
	Manufacturer     string
	ManufacturerURL  string
	ModelName        string
	ModelDescription string
	ModelNumber      string
	SerialNumber     string
	UPC              string
	PresentationURL  string
}

// Icon is a device icon.
type Icon struct {
	MimeType string
	Width    int
	Height   int
	Depth    int
	URI      string
}

// Validate returns structural errors.
func (i Icon) Validate() []ValidationError {
	var errs []ValidationError
	fail := func(property, msg string) {
		errs = append(errs, ValidationError{Class: "Icon", Property: property, Message: msg})
	}
	if i.MimeType == "" {
		fail("mimetype", "icon without mime type")
	}
	if i.Width <= 0 {
		fail("width", "icon width must be positive")
	}
	if i.Height <= 0 {
		fail("height", "icon height must be positive")
	}
	if i.Depth <= 0 {
		fail("depth", "icon depth must be positive")
	}
	if i.URI == "" {
		fail("uri", "icon without URI")
	}
	return errs
}

// DeviceDef declares a device for NewDevice.
type DeviceDef struct {
	Kind     Kind
	Identity Identity
	Type     DeviceType
	Details  Details
	Icons    []Icon
	Services []*Service
	Embedded []*Device
}

// Device is a root or embedded UPnP device.
type Device struct {
	kind     Kind
	identity Identity
	typ      DeviceType
	details  Details
	icons    []Icon
	services []*Service
	embedded []*Device
	parent   *Device
}

// NewDevice builds a device from def, binding its services and embedded
// devices. Invalid icons are dropped and logged before the device is
// validated as a whole.
//
// Returns:
//   - *Device: The bound device
//   - error: ErrAlreadyBound if a service or embedded device is owned
//     elsewhere, or ErrInvalidDevice wrapping ValidationErrors
func NewDevice(def DeviceDef, opts ...Option) (*Device, error) {
	o := buildOptions(opts)
	d := &Device{
		kind:     def.Kind,
		identity: def.Identity,
		typ:      def.Type,
		details:  def.Details,
	}

	for _, icon := range def.Icons {
		if errs := icon.Validate(); len(errs) > 0 {
			o.logger.Warn("dropping invalid icon",
				"udn", d.identity.UDN.String(),
				"uri", icon.URI,
				"errors", ValidationErrors(errs).Error(),
			)
			continue
		}
		d.icons = append(d.icons, icon)
	}

	for _, s := range def.Services {
		if err := s.bind(d); err != nil {
			return nil, err
		}
		d.services = append(d.services, s)
	}
	for _, child := range def.Embedded {
		if child.parent != nil {
			return nil, fmt.Errorf("%w: device %s", ErrAlreadyBound, child.identity.UDN)
		}
		child.parent = d
		d.embedded = append(d.embedded, child)
	}

	logWarnings(o.logger, d.ownWarnings())
	if errs := d.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDevice, d.identity.UDN, ValidationErrors(errs))
	}
	return d, nil
}

// Kind returns whether the device is local or remote.
func (d *Device) Kind() Kind { return d.kind }

// Identity returns the device identity.
func (d *Device) Identity() Identity { return d.identity }

// UDN returns the unique device name.
func (d *Device) UDN() UDN { return d.identity.UDN }

// Type returns the device type.
func (d *Device) Type() DeviceType { return d.typ }

// Details returns the descriptive details.
func (d *Device) Details() Details { return d.details }

// Icons returns the valid icons.
func (d *Device) Icons() []Icon { return slices.Clone(d.icons) }

// Services returns the services of this device, excluding embedded devices.
func (d *Device) Services() []*Service { return slices.Clone(d.services) }

// EmbeddedDevices returns the direct children.
func (d *Device) EmbeddedDevices() []*Device { return slices.Clone(d.embedded) }

// Parent returns the enclosing device, or nil for a root device.
func (d *Device) Parent() *Device { return d.parent }

// IsRoot reports whether d has no parent.
func (d *Device) IsRoot() bool { return d.parent == nil }

// Root returns the root of the device tree.
func (d *Device) Root() *Device {
	root := d
	for root.parent != nil {
		root = root.parent
	}
	return root
}

// FindDevice searches d and its embedded devices for udn.
func (d *Device) FindDevice(udn UDN) *Device {
	if d.identity.UDN == udn {
		return d
	}
	for _, child := range d.embedded {
		if found := child.FindDevice(udn); found != nil {
			return found
		}
	}
	return nil
}

// FindService searches d and its embedded devices for a service ID.
func (d *Device) FindService(id ServiceID) *Service {
	for _, s := range d.AllServices() {
		if s.id == id {
			return s
		}
	}
	return nil
}

// FindServices returns every service in the tree implementing typ.
func (d *Device) FindServices(typ ServiceType) []*Service {
	var found []*Service
	for _, s := range d.AllServices() {
		if s.typ.Implements(typ) {
			found = append(found, s)
		}
	}
	return found
}

// AllServices returns the services of d and all embedded devices,
// depth first.
func (d *Device) AllServices() []*Service {
	services := slices.Clone(d.services)
	for _, child := range d.embedded {
		services = append(services, child.AllServices()...)
	}
	return services
}

// AllDevices returns d and all embedded devices, depth first.
func (d *Device) AllDevices() []*Device {
	devices := []*Device{d}
	for _, child := range d.embedded {
		devices = append(devices, child.AllDevices()...)
	}
	return devices
}

// Validate returns structural errors of the device tree.
func (d *Device) Validate() []ValidationError {
	var errs []ValidationError
	fail := func(property, msg string) {
		errs = append(errs, ValidationError{Class: "Device", Property: property, Message: msg})
	}

	if d.identity.UDN == "" {
		fail("UDN", "device without UDN")
	}
	if d.typ.IsZero() {
		fail("deviceType", "device without type")
	}
	if d.details.FriendlyName == "" {
		fail("friendlyName", "device without friendly name")
	}
	if d.kind == Remote && d.identity.DescriptorURL == nil {
		fail("descriptorURL", "remote device without descriptor URL")
	}

	seen := make(map[ServiceID]bool, len(d.services))
	for _, s := range d.services {
		if seen[s.id] {
			fail("serviceList", fmt.Sprintf("duplicate service ID %s", s.id))
		}
		seen[s.id] = true
		if (d.kind == Remote) != s.IsRemote() {
			fail("serviceList", fmt.Sprintf("service %s does not match %s device", s.id, d.kind))
		}
		errs = append(errs, s.Validate()...)
	}
	for _, child := range d.embedded {
		errs = append(errs, child.Validate()...)
	}
	return errs
}

// Warnings returns conformance warnings of the device tree.
func (d *Device) Warnings() []Warning {
	warnings := d.ownWarnings()
	for _, s := range d.services {
		warnings = append(warnings, s.Warnings()...)
	}
	for _, child := range d.embedded {
		warnings = append(warnings, child.Warnings()...)
	}
	return warnings
}

func (d *Device) ownWarnings() []Warning {
	var warnings []Warning
	warn := func(property, msg string) {
		warnings = append(warnings, Warning{Class: "Device", Property: property, Message: msg})
	}
	if d.details.Manufacturer == "" {
		warn("manufacturer", "device without manufacturer")
	}
	if d.details.ModelName == "" {
		warn("modelName", "device without model name")
	}
	if len(d.details.FriendlyName) > 64 {
		warn("friendlyName", "friendly name should be shorter than 64 characters")
	}
	if upc := d.details.UPC; upc != "" && (len(upc) != 12 || !digitsOnly(upc)) {
		warn("UPC", fmt.Sprintf("UPC %q is not a 12 digit code", upc))
	}
	return warnings
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
