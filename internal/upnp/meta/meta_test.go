package meta

import (
	"errors"
	"net/url"
	"slices"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/datatype"
)

type recordingLogger struct {
	noopLogger
	warnings []string
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.warnings = append(l.warnings, msg)
}

func switchPowerVariables() []*StateVariable {
	return []*StateVariable{
		NewStateVariable("Target", TypeDetails{Datatype: datatype.Boolean}, EventDetails{}),
		NewStateVariable("Status", TypeDetails{Datatype: datatype.Boolean}, EventDetails{SendEvents: true}),
	}
}

func mustAction(t *testing.T, name string, args ...*Argument) *Action {
	t.Helper()
	a, err := NewAction(name, args...)
	if err != nil {
		t.Fatalf("NewAction(%q) error = %v", name, err)
	}
	return a
}

func actionNames(actions []*Action) []string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.Name()
	}
	return names
}

func TestNewAction_PartitionsArguments(t *testing.T) {
	a := mustAction(t, "Mixed",
		NewArgument("A", "Target", In),
		NewArgument("B", "Status", Out),
		NewArgument("C", "Target", In),
		NewArgument("D", "Status", Out),
	)

	var in, out []string
	for _, arg := range a.InputArguments() {
		in = append(in, arg.Name())
	}
	for _, arg := range a.OutputArguments() {
		out = append(out, arg.Name())
	}

	if !slices.Equal(in, []string{"A", "C"}) {
		t.Errorf("InputArguments() = %v, want [A C]", in)
	}
	if !slices.Equal(out, []string{"B", "D"}) {
		t.Errorf("OutputArguments() = %v, want [B D]", out)
	}
	for _, arg := range a.Arguments() {
		if arg.Action() != a {
			t.Errorf("argument %q not bound to action", arg.Name())
		}
	}
}

func TestNewAction_ArgumentAlreadyBound(t *testing.T) {
	arg := NewArgument("A", "Target", In)
	mustAction(t, "First", arg)

	if _, err := NewAction("Second", arg); !errors.Is(err, ErrAlreadyBound) {
		t.Errorf("NewAction() error = %v, want ErrAlreadyBound", err)
	}
}

func TestNewAction_FailedBindReleasesArguments(t *testing.T) {
	free := NewArgument("Free", "Target", In)
	taken := NewArgument("Taken", "Target", In)
	mustAction(t, "First", taken)

	if _, err := NewAction("Second", free, taken); !errors.Is(err, ErrAlreadyBound) {
		t.Fatalf("NewAction() error = %v, want ErrAlreadyBound", err)
	}
	if free.Action() != nil {
		t.Error("argument bound to an action that was never returned")
	}
	if _, err := NewAction("Third", free); err != nil {
		t.Errorf("reusing released argument: %v", err)
	}
}

func TestNewService_FailureReleasesNodes(t *testing.T) {
	level := NewStateVariable("Level", TypeDetails{Datatype: datatype.UI1, AllowedRange: &AllowedRange{Minimum: 10, Maximum: 0}}, EventDetails{})
	action := mustAction(t, "SetLevel", NewArgument("NewLevel", "Level", In))

	_, err := NewService(ServiceDef{
		Type:           NewUDAServiceType("Dimming", 1),
		ID:             NewUDAServiceID("Dimming"),
		Actions:        []*Action{action},
		StateVariables: []*StateVariable{level},
	})
	if !errors.Is(err, ErrInvalidService) {
		t.Fatalf("NewService() error = %v, want ErrInvalidService", err)
	}
	if level.Service() != nil || action.Service() != nil {
		t.Error("nodes still bound to the rejected service")
	}
}

func TestArgument_IsNameOrAlias(t *testing.T) {
	arg := NewArgument("A", "Target", In, WithAliases("B"))

	tests := []struct {
		name string
		want bool
	}{
		{"A", true},
		{"a", true},
		{"B", true},
		{"b", true},
		{"C", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := arg.IsNameOrAlias(tt.name); got != tt.want {
			t.Errorf("IsNameOrAlias(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNewService_BindsAndResolves(t *testing.T) {
	vars := switchPowerVariables()
	set := mustAction(t, "SetTarget", NewArgument("newTargetValue", "Target", In))

	svc, err := NewService(ServiceDef{
		Type:           NewUDAServiceType("SwitchPower", 1),
		ID:             NewUDAServiceID("SwitchPower"),
		Actions:        []*Action{set},
		StateVariables: vars,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	if set.Service() != svc {
		t.Error("action not bound to service")
	}
	for _, v := range vars {
		if v.Service() != svc {
			t.Errorf("state variable %q not bound to service", v.Name())
		}
	}
	if got := set.InputArguments()[0].Datatype(); got != datatype.Boolean {
		t.Errorf("argument Datatype() = %q, want boolean", got)
	}
	if got := set.Namespace(); got != "urn:schemas-upnp-org:service:SwitchPower:1" {
		t.Errorf("Namespace() = %q", got)
	}
}

func TestNewService_DropsInvalidAction(t *testing.T) {
	log := &recordingLogger{}
	def := ServiceDef{
		Type: NewUDAServiceType("SwitchPower", 1),
		ID:   NewUDAServiceID("SwitchPower"),
		Actions: []*Action{
			mustAction(t, "SetTarget", NewArgument("newTargetValue", "Target", In)),
			mustAction(t, "Broken", NewArgument("value", "DoesNotExist", In)),
			mustAction(t, "GetStatus", NewArgument("ResultStatus", "Status", Out)),
		},
		StateVariables: switchPowerVariables(),
	}
	svc, err := NewService(def, WithLogger(log))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	got := actionNames(svc.Actions())
	if !slices.Equal(got, []string{"SetTarget", "GetStatus"}) {
		t.Errorf("Actions() = %v, want [SetTarget GetStatus]", got)
	}
	if svc.Action("Broken") != nil {
		t.Error("Action(Broken) should be nil after drop")
	}
	if broken := actionByName(t, def.Actions, "Broken"); broken.Service() != nil {
		t.Errorf("dropped action still bound to %v", broken.Service().ID())
	}
	if !slices.Contains(log.warnings, "dropping invalid action") {
		t.Errorf("warnings = %v, want drop to be logged", log.warnings)
	}
}

func TestNewService_RetvalNotFirstIsWarningOnly(t *testing.T) {
	action := mustAction(t, "GetBoth",
		NewArgument("First", "Target", Out),
		NewArgument("Second", "Status", Out, AsReturnValue()),
	)

	svc, err := NewService(ServiceDef{
		Type:           NewUDAServiceType("SwitchPower", 1),
		ID:             NewUDAServiceID("SwitchPower"),
		Actions:        []*Action{action},
		StateVariables: switchPowerVariables(),
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	if errs := action.Validate(); len(errs) != 0 {
		t.Errorf("Validate() = %v, want no errors", errs)
	}
	if svc.Action("GetBoth") == nil {
		t.Fatal("action with misplaced retval was dropped")
	}

	found := false
	for _, w := range svc.Warnings() {
		if strings.Contains(w.Message, "not the first output") {
			found = true
		}
	}
	if !found {
		t.Errorf("Warnings() = %v, want retval ordering warning", svc.Warnings())
	}
}

func TestAction_MultipleRetvalsWarning(t *testing.T) {
	a := mustAction(t, "Get",
		NewArgument("A", "Target", Out, AsReturnValue()),
		NewArgument("B", "Status", Out, AsReturnValue()),
	)
	found := false
	for _, w := range a.Warnings() {
		if strings.Contains(w.Message, "at most one") {
			found = true
		}
	}
	if !found {
		t.Errorf("Warnings() = %v, want multiple retval warning", a.Warnings())
	}
}

func TestArgument_Validate(t *testing.T) {
	tests := []struct {
		name     string
		arg      *Argument
		property string
	}{
		{"missing name", NewArgument("", "Target", In), "name"},
		{"missing direction", NewArgument("A", "Target", ""), "direction"},
		{"missing related", NewArgument("A", "", In), "relatedStateVariable"},
		{"input retval", NewArgument("A", "Target", In, AsReturnValue()), "retval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.arg.Validate()
			if len(errs) != 1 || errs[0].Property != tt.property {
				t.Errorf("Validate() = %v, want one error on %q", errs, tt.property)
			}
		})
	}
}

func TestNewService_LastDeclarationWins(t *testing.T) {
	first := NewStateVariable("Target", TypeDetails{Datatype: datatype.String}, EventDetails{})
	second := NewStateVariable("Target", TypeDetails{Datatype: datatype.Boolean}, EventDetails{})

	svc, err := NewService(ServiceDef{
		Type:           NewUDAServiceType("SwitchPower", 1),
		ID:             NewUDAServiceID("SwitchPower"),
		StateVariables: []*StateVariable{first, second},
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if got := svc.StateVariable("Target"); got != second {
		t.Error("StateVariable(Target) should be the last declaration")
	}
	if n := len(svc.StateVariables()); n != 1 {
		t.Errorf("len(StateVariables()) = %d, want 1", n)
	}
}

func TestNewService_QueryStateVariable(t *testing.T) {
	svc, err := NewService(ServiceDef{
		Type:               NewUDAServiceType("SwitchPower", 1),
		ID:                 NewUDAServiceID("SwitchPower"),
		StateVariables:     switchPowerVariables(),
		QueryStateVariable: true,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	q := svc.Action(QueryStateVariable)
	if q == nil {
		t.Fatal("QueryStateVariable action missing")
	}
	if q.Namespace() != ControlNamespace {
		t.Errorf("Namespace() = %q, want %q", q.Namespace(), ControlNamespace)
	}
	if in := q.InputArgument("VARNAME"); in == nil || in.Datatype() != datatype.String {
		t.Error("varName input should resolve to a virtual string variable")
	}
	if v := svc.StateVariable(VirtualQueryActionOutput); v == nil || !v.IsVirtual() {
		t.Error("virtual output variable not synthesized")
	}
	for _, v := range svc.StateVariables() {
		if v.IsVirtual() {
			t.Errorf("StateVariables() includes virtual %q", v.Name())
		}
	}
}

func TestNewService_InvalidStateVariableFails(t *testing.T) {
	_, err := NewService(ServiceDef{
		Type: NewUDAServiceType("SwitchPower", 1),
		ID:   NewUDAServiceID("SwitchPower"),
		StateVariables: []*StateVariable{
			NewStateVariable("Level", TypeDetails{Datatype: datatype.UI1, AllowedRange: &AllowedRange{Minimum: 10, Maximum: 0}}, EventDetails{}),
		},
	})
	if !errors.Is(err, ErrInvalidService) {
		t.Fatalf("NewService() error = %v, want ErrInvalidService", err)
	}
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) != 1 {
		t.Errorf("errors.As(ValidationErrors) = %v", verrs)
	}
}

func TestStateVariable_Validate(t *testing.T) {
	tests := []struct {
		name     string
		variable *StateVariable
		property string
	}{
		{"missing name", NewStateVariable("", TypeDetails{Datatype: datatype.String}, EventDetails{}), "name"},
		{"missing datatype", NewStateVariable("A", TypeDetails{}, EventDetails{}), "datatype"},
		{"unknown datatype", NewStateVariable("A", TypeDetails{Datatype: "uint"}, EventDetails{}), "datatype"},
		{"enumeration on number", NewStateVariable("A", TypeDetails{Datatype: datatype.UI4, AllowedValues: []string{"1"}}, EventDetails{}), "allowedValues"},
		{"range on string", NewStateVariable("A", TypeDetails{Datatype: datatype.String, AllowedRange: &AllowedRange{Maximum: 1}}, EventDetails{}), "allowedRange"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.variable.Validate()
			if len(errs) != 1 || errs[0].Property != tt.property {
				t.Errorf("Validate() = %v, want one error on %q", errs, tt.property)
			}
		})
	}
}

func TestStateVariable_AllowedValuesInjectsDefault(t *testing.T) {
	v := NewStateVariable("Mode", TypeDetails{
		Datatype:      datatype.String,
		DefaultValue:  "AUTO",
		AllowedValues: []string{"ON", "OFF"},
	}, EventDetails{})

	got := v.AllowedValues()
	if !slices.Equal(got, []string{"ON", "OFF", "AUTO"}) {
		t.Errorf("AllowedValues() = %v, want [ON OFF AUTO]", got)
	}
	if !v.Allows("AUTO") || v.Allows("MAYBE") {
		t.Error("Allows() does not follow the effective enumeration")
	}
	if len(v.Validate()) != 0 {
		t.Errorf("Validate() = %v, want no errors", v.Validate())
	}
}

func TestStateVariable_Warnings(t *testing.T) {
	v := NewStateVariable("xmlThisNameIsFarTooLongForTheUDARules", TypeDetails{
		Datatype:      datatype.String,
		AllowedValues: []string{strings.Repeat("x", 40)},
	}, EventDetails{})

	if got := len(v.Warnings()); got != 3 {
		t.Errorf("len(Warnings()) = %d, want 3: %v", got, v.Warnings())
	}

	bad := NewStateVariable("Level", TypeDetails{Datatype: datatype.UI1, DefaultValue: "x"}, EventDetails{})
	if got := len(bad.Warnings()); got != 1 {
		t.Errorf("len(Warnings()) = %d, want 1 for bad default", got)
	}
}

func TestParseServiceType(t *testing.T) {
	tests := []struct {
		input   string
		want    ServiceType
		wantErr bool
	}{
		{"urn:schemas-upnp-org:service:SwitchPower:1", NewUDAServiceType("SwitchPower", 1), false},
		{"  urn:schemas-upnp-org:service:SwitchPower:2 ", NewUDAServiceType("SwitchPower", 2), false},
		{"urn:schemas-upnp-org:service:SwitchPower", NewUDAServiceType("SwitchPower", 1), false},
		{"urn:schemas-upnp-org:service:SwitchPower:1.0", NewUDAServiceType("SwitchPower", 1), false},
		{"urn:schemas-upnp-org:device:BinaryLight:1", ServiceType{}, true},
		{"SwitchPower", ServiceType{}, true},
		{"urn:schemas-upnp-org:service:SwitchPower:x", ServiceType{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseServiceType(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidIdentifier) {
					t.Errorf("ParseServiceType() error = %v, want ErrInvalidIdentifier", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseServiceType() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseServiceType() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestIdentifiers_RoundTrip(t *testing.T) {
	id, err := ParseServiceID(NewUDAServiceID("SwitchPower").String())
	if err != nil || id != NewUDAServiceID("SwitchPower") {
		t.Errorf("ParseServiceID() = %v, %v", id, err)
	}

	dt, err := ParseDeviceType("urn:schemas-upnp-org:device:BinaryLight:1")
	if err != nil || dt != NewUDADeviceType("BinaryLight", 1) {
		t.Errorf("ParseDeviceType() = %v, %v", dt, err)
	}

	udn, err := ParseUDN("UUID:abc-123")
	if err != nil || udn.String() != "uuid:abc-123" {
		t.Errorf("ParseUDN() = %v, %v", udn, err)
	}
	if _, err := ParseUDN("uuid:"); !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("ParseUDN(empty) error = %v", err)
	}

	if UDNFromName("kitchen") != UDNFromName("kitchen") {
		t.Error("UDNFromName() is not stable")
	}
	if NewUDN() == NewUDN() {
		t.Error("NewUDN() returned duplicates")
	}
}

func newSwitchService(t *testing.T, id string) *Service {
	t.Helper()
	svc, err := NewService(ServiceDef{
		Type:           NewUDAServiceType("SwitchPower", 1),
		ID:             NewUDAServiceID(id),
		Actions:        []*Action{mustAction(t, "SetTarget", NewArgument("newTargetValue", "Target", In))},
		StateVariables: switchPowerVariables(),
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestNewDevice_Tree(t *testing.T) {
	child, err := NewDevice(DeviceDef{
		Identity: Identity{UDN: "child"},
		Type:     NewUDADeviceType("BinaryLight", 1),
		Details:  Details{FriendlyName: "Lamp"},
		Services: []*Service{newSwitchService(t, "SwitchPower")},
	})
	if err != nil {
		t.Fatalf("NewDevice(child) error = %v", err)
	}

	log := &recordingLogger{}
	root, err := NewDevice(DeviceDef{
		Identity: Identity{UDN: "root"},
		Type:     NewUDADeviceType("Basic", 1),
		Details:  Details{FriendlyName: "Hub", Manufacturer: "Gray Logic", ModelName: "Hub"},
		Icons: []Icon{
			{MimeType: "image/png", Width: 48, Height: 48, Depth: 24, URI: "/icon.png"},
			{MimeType: "image/png", URI: "/broken.png"},
		},
		Services: []*Service{newSwitchService(t, "Main")},
		Embedded: []*Device{child},
	}, WithLogger(log))
	if err != nil {
		t.Fatalf("NewDevice(root) error = %v", err)
	}

	if len(root.Icons()) != 1 {
		t.Errorf("len(Icons()) = %d, want 1 after dropping invalid icon", len(root.Icons()))
	}
	if !slices.Contains(log.warnings, "dropping invalid icon") {
		t.Errorf("warnings = %v, want icon drop logged", log.warnings)
	}
	if child.Parent() != root || child.Root() != root || !root.IsRoot() {
		t.Error("parent references not bound")
	}
	if root.FindDevice("child") != child {
		t.Error("FindDevice(child) failed")
	}
	if s := root.FindService(NewUDAServiceID("SwitchPower")); s == nil || s.Device() != child {
		t.Error("FindService() did not find embedded service")
	}
	if got := len(root.FindServices(NewUDAServiceType("SwitchPower", 1))); got != 2 {
		t.Errorf("len(FindServices()) = %d, want 2", got)
	}
	if got := len(root.AllDevices()); got != 2 {
		t.Errorf("len(AllDevices()) = %d, want 2", got)
	}
}

func TestNewDevice_Invalid(t *testing.T) {
	_, err := NewDevice(DeviceDef{
		Type:     NewUDADeviceType("Basic", 1),
		Services: []*Service{newSwitchService(t, "Main")},
	})
	if !errors.Is(err, ErrInvalidDevice) {
		t.Fatalf("NewDevice() error = %v, want ErrInvalidDevice", err)
	}
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) != 2 {
		t.Errorf("ValidationErrors = %v, want UDN and friendlyName", verrs)
	}
}

func TestNewDevice_ServiceAlreadyBound(t *testing.T) {
	svc := newSwitchService(t, "Main")
	def := DeviceDef{
		Identity: Identity{UDN: "a"},
		Type:     NewUDADeviceType("Basic", 1),
		Details:  Details{FriendlyName: "A"},
		Services: []*Service{svc},
	}
	if _, err := NewDevice(def); err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}
	def.Identity.UDN = "b"
	if _, err := NewDevice(def); !errors.Is(err, ErrAlreadyBound) {
		t.Errorf("NewDevice() error = %v, want ErrAlreadyBound", err)
	}
}

func TestNewDevice_RemoteRequiresRemoteServices(t *testing.T) {
	base, _ := url.Parse("http://192.0.2.1:49152/desc.xml")
	_, err := NewDevice(DeviceDef{
		Kind:     Remote,
		Identity: Identity{UDN: "r", DescriptorURL: base},
		Type:     NewUDADeviceType("Basic", 1),
		Details:  Details{FriendlyName: "Remote"},
		Services: []*Service{newSwitchService(t, "Main")},
	})
	if !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("NewDevice() error = %v, want ErrInvalidDevice", err)
	}
}

func TestNamespace(t *testing.T) {
	svc := newSwitchService(t, "SwitchPower")
	root, err := NewDevice(DeviceDef{
		Identity: Identity{UDN: "light-1"},
		Type:     NewUDADeviceType("BinaryLight", 1),
		Details:  Details{FriendlyName: "Lamp"},
		Services: []*Service{svc},
	})
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}

	ns := NewNamespace("/upnp/")
	path := ns.ControlPath(svc)
	if path != "/upnp/dev/light-1/svc/upnp-org/SwitchPower/action" {
		t.Errorf("ControlPath() = %q", path)
	}

	got, res, err := ns.Resolve(root, ns.CallbackPath(svc))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != svc || res != CallbackResource {
		t.Errorf("Resolve() = %v, %q", got, res)
	}

	for _, bad := range []string{
		"/other/dev/light-1/svc/upnp-org/SwitchPower/action",
		"/upnp/dev/light-2/svc/upnp-org/SwitchPower/action",
		"/upnp/dev/light-1/svc/upnp-org/Dimming/action",
		"/upnp/dev/light-1/svc/upnp-org/SwitchPower/desc",
	} {
		if _, _, err := ns.Resolve(root, bad); !errors.Is(err, ErrUnknownResource) {
			t.Errorf("Resolve(%q) error = %v, want ErrUnknownResource", bad, err)
		}
	}
}

func actionByName(t *testing.T, actions []*Action, name string) *Action {
	t.Helper()
	for _, a := range actions {
		if a.Name() == name {
			return a
		}
	}
	t.Fatalf("no action %q", name)
	return nil
}
