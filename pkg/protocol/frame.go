// Package protocol implements the network front-end's wire format: a
// simple type-tagged length-prefixed frame plus three payload codecs
// (text passthrough, BSON-backed ExtJSON, and a length-prefixed binary
// tuple stream), and the `maayn://` connection string clients open a
// session with. Per spec.md this surface is explicitly "thin and
// routine" — the interesting system is the storage engine underneath.
package protocol

import (
	"encoding/binary"
	"io"

	"github.com/francodb/francodb/pkg/errors"
)

// FrameType tags a frame's payload codec.
type FrameType byte

const (
	// FrameText carries a raw SQL statement or text response, no codec.
	FrameText FrameType = 'Q'
	// FrameJSON carries a BSON-backed canonical-ExtJSON document.
	FrameJSON FrameType = 'J'
	// FrameBinary carries a length-prefixed stream of encoded tuples.
	FrameBinary FrameType = 'B'
)

// maxFrameLen bounds a single frame's payload so a corrupt or hostile
// length prefix can't make the reader allocate unbounded memory.
const maxFrameLen = 64 << 20

// WriteFrame writes one [u8 type][u32 len][payload] frame.
func WriteFrame(w io.Writer, ftype FrameType, payload []byte) error {
	header := make([]byte, 5)
	header[0] = byte(ftype)
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return errors.Wrap(errors.IOError, err, "writing frame header")
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(errors.IOError, err, "writing frame payload")
	}
	return nil
}

// ReadFrame reads one frame, or io.EOF if the connection closed cleanly
// before a new frame started.
func ReadFrame(r io.Reader) (FrameType, []byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF {
			return 0, nil, io.EOF
		}
		return 0, nil, errors.Wrap(errors.IOError, err, "reading frame header")
	}

	length := binary.BigEndian.Uint32(header[1:])
	if length > maxFrameLen {
		return 0, nil, errors.Newf(errors.IOError, "frame length %d exceeds %d byte limit", length, maxFrameLen)
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, errors.Wrap(errors.IOError, err, "reading frame payload")
		}
	}
	return FrameType(header[0]), payload, nil
}
