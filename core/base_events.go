package core

// Notice is a transient informational message surfaced to the user.
type Notice struct {
	Text string
}

func (Notice) GetId() string        { return "notice" }
func (Notice) ExternalType() string { return "notice" }

// CriticalError signals an unrecoverable failure in a handler or service.
// The screen surfaces it and shuts the session pipeline down.
type CriticalError struct {
	Err error
}

func (CriticalError) GetId() string { return "critical_error" }

// EndSession reports that the active dialogue session has been closed.
// When WantsTakeaways is set a session summary was produced and the screen
// surfaces the takeaways panel over it.
type EndSession struct {
	WantsTakeaways bool
}

func (EndSession) GetId() string { return "end_session" }
