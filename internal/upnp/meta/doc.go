// Package meta provides the UPnP metadata graph for Gray Logic UPnP.
//
// The graph describes what a device offers: its services, the actions each
// service exposes, the arguments of those actions, and the typed state
// variables that give every argument its datatype.
//
// # Structure
//
//	Device ──▶ Service ──▶ Action ──▶ Argument
//	   │          │                      │
//	   ▼          └──▶ StateVariable ◀───┘ (by name)
//	embedded
//	devices
//
// Every node holds a back-reference to its owner. Back-references are bound
// once by the owning constructor (NewAction, NewService, NewDevice); handing a
// node that is already owned to a second constructor fails with
// ErrAlreadyBound. After construction the graph is read-only and safe for
// concurrent use.
//
// # Validation
//
// Validation has two severities:
//
//   - ValidationError: a structural problem (missing name, unknown direction,
//     orphan state variable reference). Invalid actions and icons are dropped
//     and logged; remaining errors make NewService/NewDevice fail with
//     ErrInvalidService/ErrInvalidDevice wrapping ValidationErrors.
//   - Warning: a deviation from the UDA naming and retval rules. Devices in
//     the field break these routinely, so warnings are logged and returned
//     by Warnings() but never block construction.
//
// # Usage
//
//	status := meta.NewStateVariable("Status", meta.TypeDetails{Datatype: datatype.Boolean},
//	    meta.EventDetails{SendEvents: true})
//	target := meta.NewStateVariable("Target", meta.TypeDetails{Datatype: datatype.Boolean}, meta.EventDetails{})
//
//	setTarget, err := meta.NewAction("SetTarget",
//	    meta.NewArgument("NewTargetValue", "Target", meta.In, meta.WithAliases("newTargetValue")))
//
//	svc, err := meta.NewService(meta.ServiceDef{
//	    Type:           meta.NewUDAServiceType("SwitchPower", 1),
//	    ID:             meta.NewUDAServiceID("SwitchPower"),
//	    Actions:        []*meta.Action{setTarget},
//	    StateVariables: []*meta.StateVariable{status, target},
//	}, meta.WithLogger(log))
package meta
