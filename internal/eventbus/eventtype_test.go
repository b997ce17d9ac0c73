package eventbus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/eventmesh/internal/eventbus"
)

const (
	familyServer eventbus.Family = 1

	subAdd    eventbus.Subtype = 1 << 0
	subRemove eventbus.Subtype = 1 << 1
)

func TestMatches_SameFamilyIntersectingBits(t *testing.T) {
	filter := eventbus.NewType(familyServer, subAdd)
	event := eventbus.NewType(familyServer, subAdd)
	assert.True(t, eventbus.Matches(filter, event))
}

func TestMatches_ZeroFilterMatchesWholeFamily(t *testing.T) {
	filter := eventbus.NewType(familyServer, 0)
	event := eventbus.NewType(familyServer, subRemove)
	assert.True(t, eventbus.Matches(filter, event))
}

func TestMatches_DifferentFamilyNeverMatches(t *testing.T) {
	filter := eventbus.NewType(familyServer, 0)
	event := eventbus.NewType(eventbus.Family(2), subAdd)
	assert.False(t, eventbus.Matches(filter, event))
}

func TestMatches_DisjointBitsDoNotMatch(t *testing.T) {
	filter := eventbus.NewType(familyServer, subAdd)
	event := eventbus.NewType(familyServer, subRemove)
	assert.False(t, eventbus.Matches(filter, event))
}

func TestAdd_CombinesBitsWithinFamily(t *testing.T) {
	combined, err := eventbus.Add(eventbus.NewType(familyServer, subAdd), eventbus.NewType(familyServer, subRemove))
	require.NoError(t, err)
	assert.Equal(t, subAdd|subRemove, combined.Subtype)
}

func TestAdd_RejectsCrossFamilyCombination(t *testing.T) {
	_, err := eventbus.Add(eventbus.NewType(familyServer, subAdd), eventbus.NewType(eventbus.Family(2), subAdd))
	assert.Error(t, err)
}

func TestHasSingleSubtypeBit(t *testing.T) {
	assert.True(t, eventbus.HasSingleSubtypeBit(eventbus.NewType(familyServer, subAdd)))
	assert.False(t, eventbus.HasSingleSubtypeBit(eventbus.NewType(familyServer, subAdd|subRemove)))
	assert.False(t, eventbus.HasSingleSubtypeBit(eventbus.NewType(familyServer, 0)))
}

func TestRegisterNameAndParseType(t *testing.T) {
	evt := eventbus.NewType(familyServer, subAdd)
	require.NoError(t, eventbus.RegisterName(evt, "server.add.roundtrip_test"))

	assert.Equal(t, "server.add.roundtrip_test", eventbus.String(evt))

	got, ok := eventbus.ParseType("server.add.roundtrip_test")
	require.True(t, ok)
	assert.True(t, eventbus.Equal(evt, got))
}

func TestString_UnregisteredFallsBackToNumeric(t *testing.T) {
	evt := eventbus.NewType(eventbus.Family(99), 1<<7)
	assert.Contains(t, eventbus.String(evt), "99:")
}

func TestRegisterName_RejectsMultiBitType(t *testing.T) {
	err := eventbus.RegisterName(eventbus.NewType(familyServer, subAdd|subRemove), "bad")
	assert.Error(t, err)
}
