package domain

// Transition defines a valid state change: an event moves an entity from Src to Dst.
// The same edge shape serves both workflow machines, so it is generic over the
// concrete state and event string types.
type Transition[S ~string, E ~string] struct {
	Event E
	Src   S
	Dst   S
}
