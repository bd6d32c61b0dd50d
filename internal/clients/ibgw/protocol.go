package ibgw

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Wire format: a 4-byte big-endian payload length followed by the
// payload, which is a sequence of fields each terminated by NUL. The
// first field names the message type.

// Outgoing message types.
const (
	msgStartAPI          = "startApi"
	msgReqAccountSummary = "reqAccountSummary"
	msgReqPositions      = "reqPositions"
)

// Incoming message types.
const (
	msgNextValidID       = "nextValidId"
	msgAccountSummary    = "accountSummary"
	msgAccountSummaryEnd = "accountSummaryEnd"
	msgPosition          = "position"
	msgPositionEnd       = "positionEnd"
	msgError             = "error"
)

const maxFrameSize = 1 << 20

// writeMessage frames the fields and writes them in one call.
func writeMessage(w io.Writer, fields ...string) error {
	var buf bytes.Buffer
	buf.Write(make([]byte, 4))
	for _, f := range fields {
		buf.WriteString(f)
		buf.WriteByte(0)
	}
	binary.BigEndian.PutUint32(buf.Bytes()[:4], uint32(buf.Len()-4))

	_, err := w.Write(buf.Bytes())
	return err
}

// readMessage reads one frame and splits it into fields.
func readMessage(r io.Reader) ([]string, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(head[:])
	if size == 0 {
		return nil, nil
	}
	if size > maxFrameSize {
		return nil, errors.Errorf("gateway frame of %d bytes exceeds limit", size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return strings.Split(strings.TrimSuffix(string(payload), "\x00"), "\x00"), nil
}
