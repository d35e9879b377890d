package types

// EditEvent is one whole-document snapshot relayed between collaborators.
// There is no diffing: Content always carries the full serialized document.
type EditEvent struct {
	Content        string
	User           string
	CursorPosition *Position // nil when the sender had no selection
}
