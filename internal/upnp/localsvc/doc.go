// Package localsvc executes actions of locally hosted services against an
// in-memory table of state variable values.
//
// Without a registered Handler an action follows the UDA state model:
// every input argument writes its related state variable and every output
// argument reads its related state variable. QueryStateVariable is answered
// from the same table. Handlers replace this default per action name.
//
// Changes to evented state variables are published to listeners as
// gena.StateVariableValue slices, moderated by each variable's MaxRate and
// MinDelta. Moderated changes are held back and delivered with the next
// change of the service once their window has passed.
//
// Thread Safety:
//
// Executor and Host are safe for concurrent use. Listeners are called
// after the state lock is released, in the goroutine that made the change.
package localsvc
