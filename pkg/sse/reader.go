package sse

import (
	"context"
	"errors"
	"io"
)

// defaultChunkSize is the read buffer size used for transport reads.
const defaultChunkSize = 4 * 1024

// Reader pulls chunks from a transport and feeds them to a Decoder. Each call
// to Next awaits exactly one transport read.
type Reader struct {
	src io.Reader
	dec *Decoder
	buf []byte
}

// NewReader returns a Reader that decodes src into dec.
func NewReader(src io.Reader, dec *Decoder) *Reader {
	return &Reader{
		src: src,
		dec: dec,
		buf: make([]byte, defaultChunkSize),
	}
}

// Decoder returns the decoder fed by this reader.
func (r *Reader) Decoder() *Decoder {
	return r.dec
}

// Next awaits the next chunk from the transport and feeds it to the decoder.
//
// Next returns io.EOF once the decoder reaches StateDone or the transport
// completes, whichever happens first. Any other error is a transport failure;
// the decoder keeps the partial result in that case.
//
// Cancelling ctx only takes effect between reads. To interrupt a blocked read,
// src must be tied to ctx (as the body of an http.Request built with
// NewRequestWithContext is).
func (r *Reader) Next(ctx context.Context) error {
	if r.dec.Finished() {
		return io.EOF
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	n, err := r.src.Read(r.buf)
	if n > 0 && r.dec.Feed(r.buf[:n]) {
		return io.EOF
	}

	switch {
	case errors.Is(err, io.EOF):
		r.dec.Close()
		return io.EOF
	case err != nil:
		return err
	default:
		return nil
	}
}

// TeeReader reads a stream from a source io.Reader while simultaneously
// writing all raw bytes verbatim to a destination io.Writer and decoding them.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │ TeeReader.Next() │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │     Decoder      │
// └──────────────────┘
//
// Unlike Reader, TeeReader keeps copying after the [DONE] sentinel so the
// destination receives the stream unaltered.
type TeeReader struct {
	src  io.Reader
	dest io.Writer
	dec  *Decoder
	buf  []byte
}

// NewTeeReader returns a TeeReader that copies src to dest and decodes it.
// The dest writer typically backs an io.Pipe connected to the downstream HTTP
// response.
func NewTeeReader(src io.Reader, dest io.Writer, opts ...DecoderOption) *TeeReader {
	return &TeeReader{
		src:  src,
		dest: dest,
		dec:  NewDecoder(opts...),
		buf:  make([]byte, defaultChunkSize),
	}
}

// Decoder returns the decoder fed by this reader.
func (r *TeeReader) Decoder() *Decoder {
	return r.dec
}

// Next copies the next chunk to the destination and feeds it to the decoder.
// It returns io.EOF when the source is exhausted.
func (r *TeeReader) Next() error {
	n, err := r.src.Read(r.buf)
	if n > 0 {
		if _, werr := r.dest.Write(r.buf[:n]); werr != nil {
			return werr
		}
		r.dec.Feed(r.buf[:n])
	}

	if errors.Is(err, io.EOF) {
		r.dec.Close()
		return io.EOF
	}
	return err
}

// Drain calls Next until the source is exhausted. It returns nil on a clean
// end of stream.
func (r *TeeReader) Drain() error {
	for {
		if err := r.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
