package core

import "fmt"

// EditorPhase enumerates the states of an entity form.
type EditorPhase int

const (
	Idle EditorPhase = iota
	Editing
	Submitting
)

func (p EditorPhase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Editing:
		return "editing"
	case Submitting:
		return "submitting"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// EditorState replaces the separate "is editing" flag and "current id" pair
// of a CRUD form. EntityID is only meaningful while editing or while
// submitting an edit; zero means a new entity is being created.
type EditorState struct {
	Phase    EditorPhase
	EntityID int64
}

// Edit moves an idle form to editing the given entity.
func (s EditorState) Edit(id int64) (EditorState, error) {
	if s.Phase != Idle {
		return s, fmt.Errorf("cannot edit %d while %s", id, s.Phase)
	}
	if id <= 0 {
		return s, ErrMissingID
	}
	return EditorState{Phase: Editing, EntityID: id}, nil
}

// Submit starts a create (from Idle) or an update (from Editing).
func (s EditorState) Submit() (EditorState, error) {
	switch s.Phase {
	case Idle:
		return EditorState{Phase: Submitting}, nil
	case Editing:
		return EditorState{Phase: Submitting, EntityID: s.EntityID}, nil
	default:
		return s, fmt.Errorf("cannot submit while %s", s.Phase)
	}
}

// Done finishes a submission. On failure an edit returns to Editing so the
// form keeps its target; a failed create returns to Idle.
func (s EditorState) Done(ok bool) (EditorState, error) {
	if s.Phase != Submitting {
		return s, fmt.Errorf("nothing to finish while %s", s.Phase)
	}
	if !ok && s.EntityID != 0 {
		return EditorState{Phase: Editing, EntityID: s.EntityID}, nil
	}
	return EditorState{}, nil
}

// Cancel abandons an edit. Submissions cannot be cancelled.
func (s EditorState) Cancel() (EditorState, error) {
	if s.Phase == Submitting {
		return s, fmt.Errorf("cannot cancel while %s", s.Phase)
	}
	return EditorState{}, nil
}

// IsUpdate reports whether a submission targets an existing entity.
func (s EditorState) IsUpdate() bool {
	return s.Phase == Submitting && s.EntityID != 0
}
