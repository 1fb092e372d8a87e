package types

// DocKey encodes document identity and lifecycle state in a single integer.
//
//	key >= 0    persisted document with that number
//	key == -1   New (never saved)
//	key == -2   NewDraft
//	key == -3   NewPending
//	key == -4   Pending
//	key <= -10  Draft occupying slot -(key+10)
//
// The resolution and allocation passes clone and renumber documents and must
// preserve this encoding exactly.
type DocKey int64

const (
	KeyNew        DocKey = -1
	KeyNewDraft   DocKey = -2
	KeyNewPending DocKey = -3
	KeyPending    DocKey = -4

	draftBase DocKey = -10
)

// DocState is the coarse lifecycle state derived from a DocKey.
type DocState string

const (
	StateNew       DocState = "new"
	StateDraft     DocState = "draft"
	StatePending   DocState = "pending"
	StateCommitted DocState = "committed"
)

// NewDraftKey returns the key for draft slot n (n >= 0).
func NewDraftKey(slot int64) DocKey {
	return draftBase - DocKey(slot)
}

// FromNumber returns the key of a persisted document.
func FromNumber(number int64) DocKey {
	return DocKey(number)
}

func (k DocKey) IsPersisted() bool { return k >= 0 }

func (k DocKey) IsNew() bool {
	return k == KeyNew || k == KeyNewDraft || k == KeyNewPending
}

func (k DocKey) IsDraft() bool { return k == KeyNewDraft || k <= draftBase }

func (k DocKey) IsPending() bool { return k == KeyPending || k == KeyNewPending }

// Number returns the persisted document number, or -1 if not persisted.
func (k DocKey) Number() int64 {
	if k >= 0 {
		return int64(k)
	}
	return -1
}

// DraftSlot returns the draft slot index, or -1 if the key is not a saved draft.
func (k DocKey) DraftSlot() int64 {
	if k <= draftBase {
		return int64(-(k - draftBase))
	}
	return -1
}

// State maps the key to its lifecycle state.
func (k DocKey) State() DocState {
	switch {
	case k.IsPersisted():
		return StateCommitted
	case k.IsDraft():
		return StateDraft
	case k.IsPending():
		return StatePending
	default:
		return StateNew
	}
}
