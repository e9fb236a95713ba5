package bson

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

var objectIDCounter = readRandomUint32()
var processUnique = readProcessUnique()

func readRandomUint32() uint32 {
	var b [4]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		return 0
	}
	return binary.BigEndian.Uint32(b[:])
}

func readProcessUnique() [5]byte {
	var b [5]byte
	_, _ = io.ReadFull(rand.Reader, b[:])
	return b
}

// NewObjectID generates a new ObjectID using the current time, a
// process-wide random value, and a monotonically increasing counter, per
// the standard BSON ObjectID layout.
func NewObjectID() ObjectID {
	var id ObjectID
	binary.BigEndian.PutUint32(id[0:4], uint32(time.Now().Unix()))
	copy(id[4:9], processUnique[:])
	c := atomic.AddUint32(&objectIDCounter, 1)
	id[9] = byte(c >> 16)
	id[10] = byte(c >> 8)
	id[11] = byte(c)
	return id
}

// Hex returns the lowercase hex encoding of id.
func (id ObjectID) Hex() string {
	return hex.EncodeToString(id[:])
}

func (id ObjectID) String() string {
	return fmt.Sprintf("ObjectID(%q)", id.Hex())
}

// IsZero reports whether id is the nil ObjectID.
func (id ObjectID) IsZero() bool {
	return id == NilObjectID
}

// Timestamp returns the timestamp portion of the ObjectID as a time.Time.
func (id ObjectID) Timestamp() time.Time {
	unix := int64(binary.BigEndian.Uint32(id[0:4]))
	return time.Unix(unix, 0).UTC()
}

// ObjectIDFromHex parses a hex-encoded ObjectID string.
func ObjectIDFromHex(s string) (ObjectID, error) {
	var id ObjectID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != 12 {
		return id, fmt.Errorf("bson: invalid ObjectID length %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}
