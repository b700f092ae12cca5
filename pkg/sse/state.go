// Package sse decodes the line-delimited "data: " frames of an OpenAI-style
// streaming completion into an accumulated text result.
//
// The Decoder is fed raw byte chunks exactly as they arrive from the
// transport, so frames may be split at any byte offset and several frames may
// arrive in a single chunk. Two readers drive it: Reader pulls chunks on the
// client side of the relay, and TeeReader forwards bytes verbatim to a
// downstream writer while decoding them on the relay itself.
//
// Event stream format:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// State is the lifecycle state of a Decoder.
type State int32

const (
	// StateBuffering is the initial state: frames are being accumulated.
	StateBuffering State = iota

	// StateDone is entered when the [DONE] sentinel frame is decoded. It is
	// terminal; no further frames are processed.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateBuffering:
		return "buffering"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

const (
	// dataPrefix marks a data frame. The [DONE] sentinel is only recognized
	// behind this prefix; a bare "[DONE]" line is ignored like any other
	// non-data line.
	dataPrefix = "data: "

	// doneSentinel is the payload that terminates an upstream stream.
	doneSentinel = "[DONE]"
)
