package status

// Connection is the login state of one account.
type Connection string

const (
	Offline    Connection = "OFFLINE"
	Connecting Connection = "CONNECTING"
	Online     Connection = "ONLINE"
	Failed     Connection = "FAILED"
)

// ConnectionTransitions is the allowed lifecycle of an account connection.
var ConnectionTransitions = map[Connection][]Connection{
	Offline:    {Connecting, Online, Failed},
	Connecting: {Online, Failed, Offline},
	Online:     {Offline, Connecting, Failed},
	Failed:     {Connecting, Online, Offline},
}

// NewConnection creates a machine for one account, starting Offline.
func NewConnection(onChange func(from, to Connection)) *Machine[Connection] {
	return NewMachine(Offline, ConnectionTransitions, onChange)
}
