package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocKey_States(t *testing.T) {
	cases := []struct {
		name  string
		key   DocKey
		state DocState
	}{
		{"new", KeyNew, StateNew},
		{"new draft", KeyNewDraft, StateDraft},
		{"new pending", KeyNewPending, StatePending},
		{"pending", KeyPending, StatePending},
		{"draft slot 0", NewDraftKey(0), StateDraft},
		{"draft slot 3", NewDraftKey(3), StateDraft},
		{"persisted zero", FromNumber(0), StateCommitted},
		{"persisted", FromNumber(42), StateCommitted},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.state, c.key.State())
		})
	}
}

func TestDocKey_Number(t *testing.T) {
	assert.Equal(t, int64(42), FromNumber(42).Number())
	assert.Equal(t, int64(0), FromNumber(0).Number())
	assert.Equal(t, int64(-1), KeyNew.Number())
	assert.Equal(t, int64(-1), NewDraftKey(2).Number())
}

func TestDocKey_DraftSlots(t *testing.T) {
	assert.Equal(t, int64(0), NewDraftKey(0).DraftSlot())
	assert.Equal(t, int64(5), NewDraftKey(5).DraftSlot())
	assert.Equal(t, int64(-1), KeyNew.DraftSlot())
	assert.Equal(t, int64(-1), FromNumber(7).DraftSlot())

	// Slots round-trip through the encoding.
	for slot := int64(0); slot < 10; slot++ {
		key := NewDraftKey(slot)
		assert.True(t, key.IsDraft())
		assert.False(t, key.IsPersisted())
		assert.Equal(t, slot, key.DraftSlot())
	}
}

func TestDocKey_NewVariants(t *testing.T) {
	assert.True(t, KeyNew.IsNew())
	assert.True(t, KeyNewDraft.IsNew())
	assert.True(t, KeyNewPending.IsNew())
	assert.False(t, KeyPending.IsNew())
	assert.False(t, FromNumber(1).IsNew())

	assert.True(t, KeyNewPending.IsPending())
	assert.True(t, KeyPending.IsPending())
	assert.False(t, KeyNewDraft.IsPending())
}
