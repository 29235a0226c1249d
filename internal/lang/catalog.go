// Package lang resolves symbolic message keys to display strings in the
// process-wide active language. Language changes race benignly with readers:
// at worst a single message is rendered in the prior language.
package lang

import (
	"fmt"
	"sync/atomic"
)

// Supported languages, in catalog index order.
const (
	EN = 0
	DE = 1

	numLanguages = 2
)

// The original deployment served a German-speaking community.
var active atomic.Int32

func init() {
	active.Store(DE)
}

// SetLanguage switches the active language to n modulo the number of
// supported languages.
func SetLanguage(n int) {
	active.Store(int32(((n % numLanguages) + numLanguages) % numLanguages))
}

// Active returns the current language index.
func Active() int {
	return int(active.Load())
}

// Item is one catalog entry, indexed by language. Entries carrying
// placeholders use fmt verbs and are rendered via Format.
type Item [numLanguages]string

// String resolves the item in the active language.
func (i Item) String() string {
	return i[active.Load()]
}

// Format resolves the item and interpolates args.
func (i Item) Format(args ...any) string {
	return fmt.Sprintf(i.String(), args...)
}

var (
	ConnectedWith   = Item{"connected with %s (%d)", "mit %s (%d) verbunden"}
	ProtocolError   = Item{"Protocol Error", "Protokollfehler"}
	IncorrectPW     = Item{"Incorrect password", "Falsches Passwort. Vielleicht wird der Name schon verwendet."}
	WaitForPlayer   = Item{"...waiting for player...", "...warte auf Spieler..."}
	AlreadyAssigned = Item{"'%s' is already assigned. Please choose a different name", "Der Name '%s' ist schon vergeben. Waehle einen anderen Namen"}
	NotLinked       = Item{"You are not linked with any player.", "Du bist mit keinem Spieler verbunden."}
	TimeoutError    = Item{"Error: connection timeout", "Fehler: Zeitüberschreitung"}
	AuthError       = Item{"Authentication failed", "Fehler bei der Authentifizierung"}
	TooManyIP       = Item{"Too many users with same ip address", "Zu viele Nutzer mit derselben IP-Adresse"}
)
