package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityRankOrdering(t *testing.T) {
	assert.Less(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityLow.Rank())
	// Unknown priorities rank with medium.
	assert.Equal(t, PriorityMedium.Rank(), Priority("urgent?").Rank())
}

func TestCategoryBoostOrdering(t *testing.T) {
	order := []Category{
		CategoryDecision,
		CategoryThread,
		CategoryPriming,
		CategoryPattern,
		CategoryConversation,
		CategoryMessage,
	}
	for i := 1; i < len(order); i++ {
		assert.Greater(t, order[i-1].Boost(), order[i].Boost(), "%s vs %s", order[i-1], order[i])
	}
	assert.Equal(t, 0.0, CategoryMessage.Boost())
}

func TestRoleGravityTypes(t *testing.T) {
	cases := map[Role]GravityType{
		RoleConnector: GravityLateral,
		RoleNavigator: GravityDirectional,
		RoleBuilder:   GravityImplementation,
		RoleEvaluator: GravityQuality,
		RoleCritic:    GravityCritical,
		RoleCompiler:  GravitySynthesis,
	}
	for role, want := range cases {
		got, ok := role.GravityType()
		assert.True(t, ok, role)
		assert.Equal(t, want, got)
	}
	_, ok := Role("astrologer").GravityType()
	assert.False(t, ok)
}

func TestFlagCategoryValid(t *testing.T) {
	for _, c := range []FlagCategory{FlagInversion, FlagIsomorphism, FlagFSD, FlagManifestation, FlagTrap, FlagGeneral} {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, FlagCategory("hunch").Valid())
}
