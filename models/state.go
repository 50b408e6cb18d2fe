package models

import (
	"sort"

	"github.com/google/uuid"
)

// NewID returns a fresh opaque identifier. IDs are never reused.
func NewID() string {
	return uuid.NewString()
}

// NewState returns the default empty state.
func NewState() AppState {
	return AppState{
		Classes:   []ClassGroup{},
		Students:  []Student{},
		Questions: []Question{},
	}
}

// NewStudent returns a student with zero score and an empty history.
func NewStudent(classID, name string) Student {
	return Student{
		ID:      NewID(),
		ClassID: classID,
		Name:    name,
		History: []HistoryEntry{},
	}
}

// Normalize replaces nil collections with empty ones so the state always
// serializes arrays instead of null.
func (s AppState) Normalize() AppState {
	if s.Classes == nil {
		s.Classes = []ClassGroup{}
	}
	if s.Students == nil {
		s.Students = []Student{}
	}
	if s.Questions == nil {
		s.Questions = []Question{}
	}
	// Elements are fixed up on a copy; the backing arrays may be shared with the caller.
	for i := range s.Students {
		if s.Students[i].History == nil {
			s.Students = append([]Student{}, s.Students...)
			for j := i; j < len(s.Students); j++ {
				if s.Students[j].History == nil {
					s.Students[j].History = []HistoryEntry{}
				}
			}
			break
		}
	}
	for i := range s.Questions {
		if s.Questions[i].Tags == nil {
			s.Questions = append([]Question{}, s.Questions...)
			for j := i; j < len(s.Questions); j++ {
				if s.Questions[j].Tags == nil {
					s.Questions[j].Tags = []string{}
				}
			}
			break
		}
	}
	return s
}

// Clone returns a deep copy that shares no memory with s.
func (s AppState) Clone() AppState {
	out := AppState{}
	if s.Classes != nil {
		out.Classes = append([]ClassGroup{}, s.Classes...)
	}
	if s.ActiveClassID != nil {
		id := *s.ActiveClassID
		out.ActiveClassID = &id
	}
	if s.Students != nil {
		out.Students = make([]Student, len(s.Students))
		for i, st := range s.Students {
			if st.History != nil {
				st.History = append([]HistoryEntry{}, st.History...)
			}
			out.Students[i] = st
		}
	}
	if s.Questions != nil {
		out.Questions = make([]Question, len(s.Questions))
		for i, q := range s.Questions {
			if q.Tags != nil {
				q.Tags = append([]string{}, q.Tags...)
			}
			out.Questions[i] = q
		}
	}
	return out
}

// ActiveID returns the active class ID, or "" when none is set.
func (s AppState) ActiveID() string {
	if s.ActiveClassID == nil {
		return ""
	}
	return *s.ActiveClassID
}

// WithActive returns a copy of s with the active class set to id ("" clears it).
func (s AppState) WithActive(id string) AppState {
	if id == "" {
		s.ActiveClassID = nil
		return s
	}
	s.ActiveClassID = &id
	return s
}

// FindClass returns the class with the given ID.
func (s AppState) FindClass(id string) (ClassGroup, bool) {
	for _, c := range s.Classes {
		if c.ID == id {
			return c, true
		}
	}
	return ClassGroup{}, false
}

// ActiveClass returns the class referenced by ActiveClassID, if it resolves.
func (s AppState) ActiveClass() (ClassGroup, bool) {
	if s.ActiveClassID == nil {
		return ClassGroup{}, false
	}
	return s.FindClass(*s.ActiveClassID)
}

// FindStudent returns the student with the given ID.
func (s AppState) FindStudent(id string) (Student, bool) {
	for _, st := range s.Students {
		if st.ID == id {
			return st, true
		}
	}
	return Student{}, false
}

// StudentsInClass returns the roster of a class in insertion order.
func (s AppState) StudentsInClass(classID string) []Student {
	roster := []Student{}
	for _, st := range s.Students {
		if st.ClassID == classID {
			roster = append(roster, st)
		}
	}
	return roster
}

// ActiveStudents returns the roster of the active class.
func (s AppState) ActiveStudents() []Student {
	c, ok := s.ActiveClass()
	if !ok {
		return []Student{}
	}
	return s.StudentsInClass(c.ID)
}

// Rankings returns the roster of a class sorted by score, highest first.
// Ties keep roster order. limit <= 0 returns everyone.
func (s AppState) Rankings(classID string, limit int) []Student {
	ranked := s.StudentsInClass(classID)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Summary is the dashboard view of the state
type Summary struct {
	ClassCount    int         `json:"classCount"`
	ActiveClass   *ClassGroup `json:"activeClass"`
	StudentCount  int         `json:"studentCount"` // Students in the active class
	QuestionCount int         `json:"questionCount"`
}

func (s AppState) Summary() Summary {
	sum := Summary{
		ClassCount:    len(s.Classes),
		QuestionCount: len(s.Questions),
	}
	if c, ok := s.ActiveClass(); ok {
		sum.ActiveClass = &c
		sum.StudentCount = len(s.StudentsInClass(c.ID))
	}
	return sum
}
