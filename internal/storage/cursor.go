package storage

import (
	"bytes"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// EncodeCursor renders c as the wire cursor format "<created_at_ms>:<u128_id>".
func EncodeCursor(c Cursor) string {
	n := new(big.Int).SetBytes(c.ID[:])
	return fmt.Sprintf("%d:%s", c.CreatedAt, n.String())
}

// DecodeCursor parses a cursor previously produced by EncodeCursor.
func DecodeCursor(raw string) (Cursor, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return Cursor{}, ErrBadCursor
	}
	createdAt, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: bad timestamp", ErrBadCursor)
	}
	n, ok := new(big.Int).SetString(parts[1], 10)
	if !ok || n.Sign() < 0 {
		return Cursor{}, fmt.Errorf("%w: bad id", ErrBadCursor)
	}
	b := n.Bytes()
	if len(b) > 16 {
		return Cursor{}, fmt.Errorf("%w: bad id", ErrBadCursor)
	}
	var id uuid.UUID
	copy(id[16-len(b):], b)
	return Cursor{CreatedAt: createdAt, ID: id}, nil
}

// Before reports whether (createdAt, id) sorts strictly before cur in the
// (created_at DESC, id_u128 DESC) total order, i.e. whether it belongs on the
// page returned for a request anchored at cur.
func (c Cursor) Before(createdAt int64, id uuid.UUID) bool {
	if createdAt != c.CreatedAt {
		return createdAt < c.CreatedAt
	}
	return bytes.Compare(id[:], c.ID[:]) < 0
}

// lessDesc orders two (createdAt, id) pairs for the DESC, DESC listing order:
// a sorts before b iff a should appear earlier in the page.
func lessDesc(aCreatedAt int64, aID uuid.UUID, bCreatedAt int64, bID uuid.UUID) bool {
	if aCreatedAt != bCreatedAt {
		return aCreatedAt > bCreatedAt
	}
	return bytes.Compare(aID[:], bID[:]) > 0
}
