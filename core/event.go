package core

// IEvent is the interface all pipeline events implement.
type IEvent interface {
	GetId() string
}

// IExternalInputEvent marks events that may be injected from a connected
// client. ExternalType returns the wire type identifier.
type IExternalInputEvent interface {
	IEvent
	ExternalType() string
}

// IExternalOutputEvent marks events that are broadcast to connected
// clients. ExternalType returns the wire type identifier.
type IExternalOutputEvent interface {
	IEvent
	ExternalType() string
}
