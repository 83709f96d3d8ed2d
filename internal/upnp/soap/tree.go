package soap

import (
	"bytes"
	"strconv"

	"github.com/beevik/etree"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/control"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/wire"
)

// TreeProcessor parses envelopes into an etree document and requires the
// Envelope/Body structure and a correctly namespaced action element.
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

// WriteRequest renders inv as a SOAP request. Input arguments appear in
// declaration order; absent values are written as empty elements.
func (p *TreeProcessor) WriteRequest(inv *control.Invocation) ([]byte, error) {
	action := inv.Action()
	doc, body := newEnvelope()

	el := body.CreateElement("u:" + action.Name())
	el.CreateAttr("xmlns:u", action.Namespace())
	writeArguments(el, action.InputArguments(), inv.InputValue)

	p.logger.Debug("writing SOAP request", "action", action.Name())
	return doc.WriteToBytes()
}

// WriteResponse renders inv as a SOAP response, or as a Fault when inv has
// failed.
func (p *TreeProcessor) WriteResponse(inv *control.Invocation) ([]byte, error) {
	action := inv.Action()
	doc, body := newEnvelope()

	if failure := inv.Failure(); failure != nil {
		writeFault(body, failure)
	} else {
		el := body.CreateElement("u:" + action.Name() + "Response")
		el.CreateAttr("xmlns:u", action.Namespace())
		writeArguments(el, action.OutputArguments(), inv.OutputValue)
	}

	p.logger.Debug("writing SOAP response", "action", action.Name(), "failed", inv.Failed())
	return doc.WriteToBytes()
}

// WriteFault renders a Fault envelope for a failure that has no
// invocation to carry it, such as an unknown action.
func WriteFault(failure *control.ActionError) ([]byte, error) {
	doc, body := newEnvelope()
	writeFault(body, failure)
	return doc.WriteToBytes()
}

// ReadRequest fills the inputs of inv from a SOAP request body.
func (p *TreeProcessor) ReadRequest(body []byte, inv *control.Invocation) error {
	action := inv.Action()
	p.logger.Debug("reading SOAP request", "action", action.Name(), "bytes", len(body))

	soapBody, err := parseEnvelope(body)
	if err != nil {
		return err
	}

	actionEl := childElement(soapBody, action.Name())
	if actionEl == nil {
		return wire.Unsupported("Could not read action element", body, nil)
	}
	if actionEl.NamespaceURI() != action.Namespace() {
		return wire.Unsupported("Illegal or missing namespace on action element", body, nil)
	}

	values, err := readArguments(elementsOf(actionEl), action.InputArguments())
	if err != nil {
		return wire.Unsupported("Can't transform message payload", body, err)
	}
	return putInputs(inv, values)
}

// ReadResponse fills the outputs or the failure of inv from a SOAP
// response body.
func (p *TreeProcessor) ReadResponse(body []byte, inv *control.Invocation) error {
	action := inv.Action()
	p.logger.Debug("reading SOAP response", "action", action.Name(), "bytes", len(body))

	soapBody, err := parseEnvelope(body)
	if err != nil {
		return err
	}

	if fault := childElement(soapBody, "Fault"); fault != nil {
		failure, err := readFault(fault, body)
		if err != nil {
			return err
		}
		inv.SetFailure(failure)
		return nil
	}

	responseEl := childElement(soapBody, action.Name()+"Response")
	if responseEl == nil {
		return wire.Unsupported("Can't transform message payload", body, control.Errorf(control.ActionFailed,
			"Action SOAP response do not contain %sResponse element", action.Name()))
	}

	values, err := readArguments(elementsOf(responseEl), action.OutputArguments())
	if err != nil {
		return wire.Unsupported("Can't transform message payload", body, err)
	}
	return putOutputs(inv, values)
}

// parseEnvelope parses body and returns its Body element.
func parseEnvelope(body []byte) (*etree.Element, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, wire.Unsupported("Empty SOAP body", body, nil)
	}

	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = wire.CharsetReader
	if err := doc.ReadFromBytes(trimmed); err != nil {
		return nil, wire.Unsupported("Can't parse SOAP envelope", body, err)
	}

	root := doc.Root()
	if root == nil || root.Tag != "Envelope" {
		return nil, wire.Unsupported("Root element is not a SOAP Envelope", body, nil)
	}
	soapBody := childElement(root, "Body")
	if soapBody == nil {
		return nil, wire.Unsupported("SOAP Envelope has no Body", body, nil)
	}
	return soapBody, nil
}

func readFault(fault *etree.Element, body []byte) (*control.ActionError, error) {
	detail := childElement(fault, "detail")
	if detail == nil {
		return nil, wire.Unsupported("Received fault element but no detail", body, nil)
	}
	upnpError := childElement(detail, "UPnPError")
	if upnpError == nil {
		return nil, wire.Unsupported("Received fault element but no UPnPError", body, nil)
	}
	return faultFromElements(elementsOf(upnpError), body)
}

// childElement returns the first child whose unprefixed name is tag.
func childElement(parent *etree.Element, tag string) *etree.Element {
	for _, child := range parent.ChildElements() {
		if child.Tag == tag {
			return child
		}
	}
	return nil
}

func elementsOf(parent *etree.Element) []wire.Element {
	children := parent.ChildElements()
	elements := make([]wire.Element, len(children))
	for i, child := range children {
		elements[i] = wire.Element{Name: child.Tag, Text: child.Text()}
	}
	return elements
}

func newEnvelope() (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	envelope := doc.CreateElement("s:Envelope")
	envelope.CreateAttr("xmlns:s", EnvelopeNamespace)
	envelope.CreateAttr("s:encodingStyle", EncodingNamespace)
	return doc, envelope.CreateElement("s:Body")
}

func writeArguments(parent *etree.Element, args []*meta.Argument, lookup func(string) (control.ArgumentValue, bool)) {
	for _, arg := range args {
		el := parent.CreateElement(arg.Name())
		if v, ok := lookup(arg.Name()); ok {
			el.SetText(v.String())
		}
	}
}

func writeFault(body *etree.Element, failure *control.ActionError) {
	fault := body.CreateElement("s:Fault")
	fault.CreateElement("faultcode").SetText("s:Client")
	fault.CreateElement("faultstring").SetText("UPnPError")

	upnpError := fault.CreateElement("detail").CreateElement("UPnPError")
	upnpError.CreateAttr("xmlns", meta.ControlNamespace)
	upnpError.CreateElement("errorCode").SetText(strconv.Itoa(failure.Code))
	upnpError.CreateElement("errorDescription").SetText(failure.Description)
}
