package protocol

// Wire constants. Records are UTF-8 text terminated by a single ETX byte.
const (
	// ETX terminates every record on the wire. Payloads must not contain it.
	ETX = 0x03

	// BufferSize bounds a single read from the peer socket. A record may
	// span several reads but never more than BufferSize bytes arrive at once.
	BufferSize = 256
)

// Server-to-client record tags.
const (
	TagWelcome = "WELCOME"
	TagServer  = "%SERVER"
	TagName    = "%NAME"
	TagNote    = "%NOTE"
	TagInfo    = "%INFO"
	TagElo     = "%ELO"

	// EchoProbe is sent after an error record so the rejection has a chance
	// to reach the peer before the socket is closed.
	EchoProbe = "%ECHO?"

	NewGame   = "%MOVE -1000"
	PlayBlack = "%MOVE -1001"
	PlayWhite = "%MOVE -1002"
)
