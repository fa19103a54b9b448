package identity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestV8Deterministic(t *testing.T) {
	ns := V5("project:alpha", Base)
	ts := int64(1700000000000)

	a := V8(ns, ts, false)
	b := V8(ns, ts, false)
	assert.Equal(t, a, b)

	// Different timestamp or namespace changes the result.
	assert.NotEqual(t, a, V8(ns, ts+1, false))
	assert.NotEqual(t, a, V8(V5("project:beta", Base), ts, false))
}

func TestV8VersionAndVariant(t *testing.T) {
	u := V8(Base, 1700000000000, false)
	assert.Equal(t, uuid.Version(8), u.Version())
	assert.Equal(t, uuid.RFC4122, u.Variant())

	r := V8(Base, 1700000000000, true)
	assert.Equal(t, uuid.Version(8), r.Version())
	assert.Equal(t, uuid.RFC4122, r.Variant())
}

func TestV8RandomIsUnique(t *testing.T) {
	ts := int64(1700000000000)
	a := V8(Base, ts, true)
	b := V8(Base, ts, true)
	assert.NotEqual(t, a, b)
}

func TestExtractTimestampRoundTrip(t *testing.T) {
	ts := int64(1700000000123)
	u := V8FromString("conv-1", Base, ts)
	require.Equal(t, uuid.Version(8), u.Version())
	assert.Equal(t, ts, ExtractMillis(u))
	assert.Equal(t, time.UnixMilli(ts).UTC(), ExtractTimestamp(u))
}

func TestExtractTimestampNonV8FallsBackToNow(t *testing.T) {
	v5 := V5("not-a-v8", Base)
	before := time.Now().UTC()
	got := ExtractTimestamp(v5)
	after := time.Now().UTC()
	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
}

func TestCompositePairSymmetry(t *testing.T) {
	a := V8FromString("a", Base, 1)
	b := V8FromString("b", Base, 2)
	assert.Equal(t, CompositePair(a, b), CompositePair(b, a))
	assert.NotEqual(t, CompositePair(a, b), CompositePair(a, a))
}

func TestParentChild(t *testing.T) {
	p := V8FromString("parent", Base, 10)
	c := V8FromString("child", Base, 20)
	u := ParentChild(p, c)
	assert.Equal(t, p[:8], u[:8])
	assert.Equal(t, uuid.RFC4122, u.Variant())
}

func TestProjectUUIDStable(t *testing.T) {
	assert.Equal(t, ProjectUUID("alpha"), ProjectUUID("alpha"))
	assert.NotEqual(t, ProjectUUID("alpha"), ProjectUUID("beta"))
}

func TestFlagUUIDDeterministic(t *testing.T) {
	p := ProjectUUID("alpha")
	a := FlagUUID("watch the cache", "conv-1", p)
	b := FlagUUID("watch the cache", "conv-1", p)
	c := FlagUUID("watch the cache", "conv-2", p)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
