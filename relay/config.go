package relay

import (
	"github.com/papercomputeco/quill/pkg/eventstream"
	"github.com/papercomputeco/quill/pkg/gateway"
)

// Config is the relay server configuration. It is built once at startup and
// is read-only afterwards.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// Gateway is the upstream chat-completion gateway.
	Gateway gateway.Config

	// Persona is the system instruction template injected ahead of every
	// chat. It is a text/template rendered with {{.Language}}. Defaults to
	// DefaultPersona.
	Persona string

	// Project tags stored transcript nodes.
	Project string

	// AllowOrigins is the CORS allow list for the IDE front end.
	// Defaults to "*".
	AllowOrigins string

	// Publisher receives an event per stored turn. Optional.
	Publisher eventstream.Publisher
}
