package gena

import (
	"bytes"

	"github.com/beevik/etree"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/wire"
)

// TreeProcessor parses property sets into an etree document.
type TreeProcessor struct {
	logger Logger
}

// NewTreeProcessor returns a strict processor. A nil logger discards output.
func NewTreeProcessor(logger Logger) *TreeProcessor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &TreeProcessor{logger: logger}
}

// WriteBody renders values as
// <e:propertyset><e:property><Name>value</Name></e:property>...</e:propertyset>.
func (p *TreeProcessor) WriteBody(values []StateVariableValue) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	set := doc.CreateElement("e:propertyset")
	set.CreateAttr("xmlns:e", EventNamespace)
	for _, v := range values {
		set.CreateElement("e:property").CreateElement(v.variable.Name()).SetText(v.String())
	}

	p.logger.Debug("writing GENA body", "values", len(values))
	return doc.WriteToBytes()
}

// ReadBody parses a property set. Nothing is appended unless the whole
// body is valid.
func (p *TreeProcessor) ReadBody(body []byte, event *IncomingEvent) error {
	p.logger.Debug("reading GENA body", "bytes", len(body))

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return wire.Unsupported("Empty GENA body", body, nil)
	}

	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = wire.CharsetReader
	if err := doc.ReadFromBytes(trimmed); err != nil {
		return wire.Unsupported("Can't parse property set", body, err)
	}

	root := doc.Root()
	if root == nil || root.Tag != "propertyset" {
		return wire.Unsupported("Root element was not 'propertyset'", body, nil)
	}

	var values []StateVariableValue
	for _, property := range root.ChildElements() {
		if property.Tag != "property" {
			continue
		}
		for _, el := range property.ChildElements() {
			if len(el.ChildElements()) > 0 && event.Service.StateVariable(el.Tag) != nil {
				return wire.Unsupported("Property value contains markup", body, nil)
			}
			v, ok, err := matchValue(event, el.Tag, el.Text())
			if err != nil {
				return wire.Unsupported("Can't transform property set", body, err)
			}
			if ok {
				values = append(values, v)
			}
		}
	}

	event.Values = append(event.Values, values...)
	return nil
}

// matchValue converts text for the state variable named name. Names
// without a declared state variable report ok == false.
func matchValue(event *IncomingEvent, name, text string) (StateVariableValue, bool, error) {
	sv := event.Service.StateVariable(name)
	if sv == nil || sv.IsVirtual() {
		return StateVariableValue{}, false, nil
	}
	v, err := NewStateVariableValue(sv, text)
	if err != nil {
		return StateVariableValue{}, false, err
	}
	return v, true, nil
}
