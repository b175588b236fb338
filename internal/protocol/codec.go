package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single message. Anything larger is treated as
// a protocol violation, not an allocation request.
const MaxFrameSize = 16 << 20 // 16MiB

// ErrProtocol classifies any framing or decoding failure on the wire.
var ErrProtocol = errors.New("protocol error")

// WriteFrame JSON-encodes v and writes it with a 4-byte big-endian
// length prefix.
func WriteFrame(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrProtocol, err)
	}
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: frame of %d bytes exceeds limit", ErrProtocol, len(payload))
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))

	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame and JSON-decodes it into v.
func ReadFrame(r io.Reader, v any) error {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: truncated frame length", ErrProtocol)
		}
		return fmt.Errorf("read frame length: %w", err)
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length > MaxFrameSize {
		return fmt.Errorf("%w: frame of %d bytes exceeds limit", ErrProtocol, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("%w: truncated frame payload", ErrProtocol)
	}

	if err := json.Unmarshal(payload, v); err != nil {
		if errors.Is(err, ErrProtocol) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return nil
}

// WriteRequest frames one request.
func WriteRequest(w io.Writer, req Request) error {
	return WriteFrame(w, req)
}

// ReadRequest reads one framed request.
func ReadRequest(r io.Reader) (Request, error) {
	var req Request
	if err := ReadFrame(r, &req); err != nil {
		return Request{}, err
	}
	return req, nil
}

// WriteResponse frames one response.
func WriteResponse(w io.Writer, resp Response) error {
	return WriteFrame(w, resp)
}

// ReadResponse reads one framed response.
func ReadResponse(r io.Reader) (Response, error) {
	var resp Response
	if err := ReadFrame(r, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}
