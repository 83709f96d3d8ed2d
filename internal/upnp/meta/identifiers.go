package meta

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// UDANamespace is the schema namespace of standardised UPnP types.
const UDANamespace = "schemas-upnp-org"

// ServiceType identifies a service contract, e.g.
// urn:schemas-upnp-org:service:SwitchPower:1.
type ServiceType struct {
	Namespace string
	Type      string
	Version   int
}

// DeviceType identifies a device contract, e.g.
// urn:schemas-upnp-org:device:BinaryLight:1.
type DeviceType struct {
	Namespace string
	Type      string
	Version   int
}

// ServiceID identifies a service instance within a device, e.g.
// urn:upnp-org:serviceId:SwitchPower.
type ServiceID struct {
	Namespace string
	ID        string
}

// UDN is a unique device name. The stored value excludes the "uuid:" prefix.
type UDN string

// NewUDAServiceType returns a service type in the UDA namespace.
func NewUDAServiceType(typ string, version int) ServiceType {
	return ServiceType{Namespace: UDANamespace, Type: typ, Version: version}
}

// NewUDADeviceType returns a device type in the UDA namespace.
func NewUDADeviceType(typ string, version int) DeviceType {
	return DeviceType{Namespace: UDANamespace, Type: typ, Version: version}
}

// NewUDAServiceID returns a service ID in the upnp-org namespace.
func NewUDAServiceID(id string) ServiceID {
	return ServiceID{Namespace: "upnp-org", ID: id}
}

// ParseServiceType parses urn:<namespace>:service:<type>[:<version>].
// A missing version defaults to 1.
func ParseServiceType(s string) (ServiceType, error) {
	ns, typ, ver, err := parseTypeURN(s, "service")
	if err != nil {
		return ServiceType{}, err
	}
	return ServiceType{Namespace: ns, Type: typ, Version: ver}, nil
}

// ParseDeviceType parses urn:<namespace>:device:<type>[:<version>].
// A missing version defaults to 1.
func ParseDeviceType(s string) (DeviceType, error) {
	ns, typ, ver, err := parseTypeURN(s, "device")
	if err != nil {
		return DeviceType{}, err
	}
	return DeviceType{Namespace: ns, Type: typ, Version: ver}, nil
}

// ParseServiceID parses urn:<namespace>:serviceId:<id>.
func ParseServiceID(s string) (ServiceID, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 4 || !strings.EqualFold(parts[0], "urn") || parts[2] != "serviceId" ||
		parts[1] == "" || parts[3] == "" {
		return ServiceID{}, fmt.Errorf("%w: service id %q", ErrInvalidIdentifier, s)
	}
	return ServiceID{Namespace: parts[1], ID: parts[3]}, nil
}

// ParseUDN parses a UDN with or without its "uuid:" prefix.
func ParseUDN(s string) (UDN, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 5 && strings.EqualFold(s[:5], "uuid:") {
		s = s[5:]
	}
	if s == "" || strings.ContainsAny(s, " \t\r\n/") {
		return "", fmt.Errorf("%w: udn %q", ErrInvalidIdentifier, s)
	}
	return UDN(s), nil
}

// NewUDN returns a random UDN.
func NewUDN() UDN {
	return UDN(uuid.New().String())
}

// UDNFromName returns a UDN that is stable for the given name, so a local
// device keeps its identity across restarts.
func UDNFromName(name string) UDN {
	return UDN(uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String())
}

// String returns the URN form.
func (t ServiceType) String() string {
	return fmt.Sprintf("urn:%s:service:%s:%d", t.Namespace, t.Type, t.Version)
}

// IsZero reports whether the type is unset.
func (t ServiceType) IsZero() bool {
	return t.Namespace == "" && t.Type == ""
}

// Implements reports whether t can serve a request for other: same namespace
// and type, and at least the requested version.
func (t ServiceType) Implements(other ServiceType) bool {
	return t.Namespace == other.Namespace && t.Type == other.Type && t.Version >= other.Version
}

// String returns the URN form.
func (t DeviceType) String() string {
	return fmt.Sprintf("urn:%s:device:%s:%d", t.Namespace, t.Type, t.Version)
}

// IsZero reports whether the type is unset.
func (t DeviceType) IsZero() bool {
	return t.Namespace == "" && t.Type == ""
}

// String returns the URN form.
func (id ServiceID) String() string {
	return fmt.Sprintf("urn:%s:serviceId:%s", id.Namespace, id.ID)
}

// IsZero reports whether the ID is unset.
func (id ServiceID) IsZero() bool {
	return id.Namespace == "" && id.ID == ""
}

// String returns the prefixed form, e.g. uuid:1234.
func (u UDN) String() string {
	return "uuid:" + string(u)
}

func parseTypeURN(s, kind string) (namespace, typ string, version int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 4 || len(parts) > 5 || !strings.EqualFold(parts[0], "urn") || parts[2] != kind ||
		parts[1] == "" || parts[3] == "" {
		return "", "", 0, fmt.Errorf("%w: %s type %q", ErrInvalidIdentifier, kind, s)
	}

	version = 1
	if len(parts) == 5 {
		// Some devices send "1.0"; only the major version is meaningful.
		major, _, _ := strings.Cut(strings.TrimSpace(parts[4]), ".")
		version, err = strconv.Atoi(major)
		if err != nil || version < 1 {
			return "", "", 0, fmt.Errorf("%w: %s type %q: bad version", ErrInvalidIdentifier, kind, s)
		}
	}
	return parts[1], parts[3], version, nil
}
