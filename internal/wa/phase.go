package wa

// Phase is the lifecycle of the WhatsApp connection.
type Phase string

const (
	Disconnected Phase = "DISCONNECTED"
	AuthRequired Phase = "AUTH_REQUIRED"
	Connecting   Phase = "CONNECTING"
	Syncing      Phase = "SYNCING"
	Ready        Phase = "READY"
	Reconnecting Phase = "RECONNECTING"
)

var phaseTransitions = map[Phase][]Phase{
	Disconnected: {AuthRequired, Connecting},
	AuthRequired: {Connecting},
	Connecting:   {Syncing, AuthRequired, Reconnecting},
	Syncing:      {Ready, Reconnecting, AuthRequired},
	Ready:        {Reconnecting, AuthRequired},
	Reconnecting: {Connecting, Syncing, AuthRequired},
}
