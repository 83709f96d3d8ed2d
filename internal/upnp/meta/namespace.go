package meta

import (
	"fmt"
	"net/url"
	"strings"
)

// Resource is an HTTP resource exposed for a local service.
type Resource string

// Service resources.
const (
	ControlResource  Resource = "action"
	EventResource    Resource = "event"
	CallbackResource Resource = "cb"
)

// Namespace maps local services to HTTP resource paths of the form
// {prefix}/dev/{udn}/svc/{namespace}/{id}/{resource}.
type Namespace struct {
	prefix string
}

// NewNamespace returns a namespace rooted at prefix, e.g. "/upnp".
func NewNamespace(prefix string) Namespace {
	return Namespace{prefix: strings.TrimRight(prefix, "/")}
}

// Prefix returns the path prefix without trailing slash.
func (n Namespace) Prefix() string { return n.prefix }

// ServicePath returns the base path of a service bound to a device.
func (n Namespace) ServicePath(s *Service) string {
	udn := ""
	if s.device != nil {
		udn = string(s.device.UDN())
	}
	return fmt.Sprintf("%s/dev/%s/svc/%s/%s",
		n.prefix,
		url.PathEscape(udn),
		url.PathEscape(s.id.Namespace),
		url.PathEscape(s.id.ID),
	)
}

// ControlPath returns the SOAP control path of s.
func (n Namespace) ControlPath(s *Service) string {
	return n.ServicePath(s) + "/" + string(ControlResource)
}

// EventPath returns the event subscription path of s.
func (n Namespace) EventPath(s *Service) string {
	return n.ServicePath(s) + "/" + string(EventResource)
}

// CallbackPath returns the GENA NOTIFY callback path of s.
func (n Namespace) CallbackPath(s *Service) string {
	return n.ServicePath(s) + "/" + string(CallbackResource)
}

// Resolve finds the service and resource a path refers to within the
// device tree of root.
func (n Namespace) Resolve(root *Device, path string) (*Service, Resource, error) {
	rest, ok := strings.CutPrefix(path, n.prefix+"/")
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownResource, path)
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 6 || parts[0] != "dev" || parts[2] != "svc" {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownResource, path)
	}
	for i, p := range parts {
		unescaped, err := url.PathUnescape(p)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %s", ErrUnknownResource, path)
		}
		parts[i] = unescaped
	}

	res := Resource(parts[5])
	switch res {
	case ControlResource, EventResource, CallbackResource:
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownResource, path)
	}

	device := root.FindDevice(UDN(parts[1]))
	if device == nil {
		return nil, "", fmt.Errorf("%w: device %s", ErrUnknownResource, parts[1])
	}
	for _, s := range device.services {
		if s.id.Namespace == parts[3] && s.id.ID == parts[4] {
			return s, res, nil
		}
	}
	return nil, "", fmt.Errorf("%w: service %s:%s", ErrUnknownResource, parts[3], parts[4])
}
