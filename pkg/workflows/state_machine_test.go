package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	sm := NewStateMachine()

	assert.True(t, sm.CanTransition("draft", "pending_verification"))
	assert.True(t, sm.CanTransition("pending_verification", "verified"))
	assert.True(t, sm.CanTransition("pending_verification", "draft"))
	assert.True(t, sm.CanTransition("verified", "active"))
	assert.True(t, sm.CanTransition("active", "completed"))

	assert.False(t, sm.CanTransition("draft", "verified"))
	assert.False(t, sm.CanTransition("completed", "active"))
	assert.False(t, sm.CanTransition("verified", "draft"))
	assert.False(t, sm.CanTransition("bogus", "draft"))
}

func TestGetAllowedTransitions(t *testing.T) {
	sm := NewStateMachine()

	assert.ElementsMatch(t, []string{"verified", "draft"}, sm.GetAllowedTransitions("pending_verification"))
	assert.Empty(t, sm.GetAllowedTransitions("completed"))
	assert.Empty(t, sm.GetAllowedTransitions("unknown"))
}
