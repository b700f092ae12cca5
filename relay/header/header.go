// Package header sets the client-facing headers of a relayed stream.
//
// The relay sits between the IDE client and the chat gateway:
//
//	Client <--> Relay <--> Gateway
//
// Each leg negotiates compression and hops independently. The relay never
// forwards client request headers upstream: the gateway request is built from
// scratch with the relay's own credential.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Handler manages headers on the client leg of a relay.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// skipResponse is the set of upstream response headers (client <-- relay <-- gateway)
// that are not copied back to the downstream client.
var skipResponse = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection":        {},
	"Transfer-Encoding": {},

	// Go's http.Transport strips Content-Encoding after auto-decompression,
	// so the relayed body is always identity encoded.
	"Content-Encoding": {},

	// The stream length is unknown and fasthttp chunks the body itself.
	"Content-Length": {},

	// Gateway cookies belong to the relay's session, not the client's.
	"Set-Cookie": {},
}

// streamDefaults are forced on every relayed event stream.
var streamDefaults = map[string]string{
	fiber.HeaderContentType:  "text/event-stream",
	fiber.HeaderCacheControl: "no-cache",
	"X-Accel-Buffering":      "no",
}

// SetClientResponseHeaders copies response headers from the gateway
// http.Response to the Fiber context, filtering headers the relay should not
// forward, then applies the event-stream defaults.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if _, skip := skipResponse[k]; !skip {
			c.Set(k, strings.Join(v, ", "))
		}
	}

	for k, v := range streamDefaults {
		c.Set(k, v)
	}
}
