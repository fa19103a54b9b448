// Package identity derives deterministic UUIDs for every graph entity.
//
// Identifiers are UUIDv8 (RFC 9562): a 48-bit big-endian millisecond
// timestamp, the version nibble, the variant bits, and a 74-bit suffix.
// The suffix is content-addressed (SHA-256 of namespace plus timestamp)
// unless randomness is requested, so the same inputs always produce the
// same UUID. UUIDv5 is used where entities are keyed by name alone.
package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// Base is the root namespace for all derived identifiers.
var Base = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("forgeos.local"))

// V5 returns the SHA-1 name-based UUID of name under the given namespace.
func V5(name string, namespace uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(name))
}

// V8 builds a UUIDv8 from a namespace and a millisecond timestamp.
//
// When random is false the 10-byte suffix is the truncated SHA-256 of the
// namespace bytes concatenated with the big-endian 64-bit timestamp, which
// makes the result a pure function of its inputs.
func V8(namespace uuid.UUID, tsMillis int64, random bool) uuid.UUID {
	var b [16]byte
	b[0] = byte(tsMillis >> 40)
	b[1] = byte(tsMillis >> 32)
	b[2] = byte(tsMillis >> 24)
	b[3] = byte(tsMillis >> 16)
	b[4] = byte(tsMillis >> 8)
	b[5] = byte(tsMillis)

	if random {
		if _, err := rand.Read(b[6:]); err != nil {
			panic(err) // crypto/rand never fails on supported platforms
		}
	} else {
		var ts [8]byte
		binary.BigEndian.PutUint64(ts[:], uint64(tsMillis))
		h := sha256.New()
		h.Write(namespace[:])
		h.Write(ts[:])
		copy(b[6:], h.Sum(nil)[:10])
	}

	b[6] = (b[6] & 0x0F) | 0x80 // version 8
	b[8] = (b[8] & 0x3F) | 0x80 // variant 10

	return uuid.UUID(b)
}

// V8FromString derives a deterministic UUIDv8 for a named entity: the
// name is first folded into a v5 namespace, then combined with the
// timestamp.
func V8FromString(name string, namespace uuid.UUID, tsMillis int64) uuid.UUID {
	return V8(V5(name, namespace), tsMillis, false)
}

// CompositePair returns an order-independent UUID for a pair: the two
// string forms are sorted lexicographically before hashing, so
// CompositePair(a, b) == CompositePair(b, a).
func CompositePair(a, b uuid.UUID) uuid.UUID {
	as, bs := a.String(), b.String()
	if as > bs {
		as, bs = bs, as
	}
	return V5(as+bs, Base)
}

// ParentChild combines the parent's high 8 bytes with the child's low
// 8 bytes, forcing the variant bits so the result stays a valid UUID.
func ParentChild(parent, child uuid.UUID) uuid.UUID {
	var b [16]byte
	copy(b[:8], parent[:8])
	copy(b[8:], child[8:])
	b[8] = (b[8] & 0x3F) | 0x80
	return uuid.UUID(b)
}

// ExtractTimestamp decodes the 48-bit millisecond prefix of a UUIDv8.
// For any other version the current time is returned, since only v8
// identifiers carry a timestamp.
func ExtractTimestamp(u uuid.UUID) time.Time {
	if u.Version() != 8 {
		return time.Now().UTC()
	}
	return time.UnixMilli(ExtractMillis(u)).UTC()
}

// ExtractMillis returns the raw 48-bit millisecond prefix. Callers must
// check the version themselves when it matters.
func ExtractMillis(u uuid.UUID) int64 {
	return int64(u[0])<<40 | int64(u[1])<<32 | int64(u[2])<<24 |
		int64(u[3])<<16 | int64(u[4])<<8 | int64(u[5])
}

// ProjectUUID returns the immutable identity of a named project.
func ProjectUUID(name string) uuid.UUID {
	return V5("project:"+name, Base)
}

// PrimingUUID returns the identity of a priming block keyed by territory.
func PrimingUUID(territoryName string, projectUUID uuid.UUID) uuid.UUID {
	return V5("priming:"+territoryName, projectUUID)
}

// FlagUUID returns the identity of an expedition flag. Deterministic on
// (description, conversation), so planting the same flag twice is a no-op.
func FlagUUID(description, conversationID string, projectUUID uuid.UUID) uuid.UUID {
	return V5("flag:"+description+":"+conversationID, projectUUID)
}
