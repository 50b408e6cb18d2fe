// Package roster holds the class and student mutators.
//
// Every function takes the current state and returns a new one; the input is
// never modified. Validation failures leave the state untouched and return one
// of the sentinel errors below.
package roster

import (
	"errors"
	"fmt"
	"strings"

	"classroom-rollcall-go/models"
)

var (
	ErrEmptyName       = errors.New("name cannot be empty")
	ErrNoClass         = errors.New("no class selected")
	ErrClassNotFound   = errors.New("class not found")
	ErrStudentNotFound = errors.New("student not found")
	// ErrLastClass guards the invariant that at least one class always exists.
	ErrLastClass = errors.New("must keep at least one class")
)

// --- Class Operations ---

// CreateClass appends a new class. It becomes active only when activate is set.
func CreateClass(state models.AppState, name, description string, activate bool) (models.AppState, models.ClassGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return state, models.ClassGroup{}, ErrEmptyName
	}

	clazz := models.ClassGroup{
		ID:          models.NewID(),
		Name:        name,
		Description: strings.TrimSpace(description),
	}

	out := state.Clone().Normalize()
	out.Classes = append(out.Classes, clazz)
	if activate {
		out = out.WithActive(clazz.ID)
	}
	return out, clazz, nil
}

// DeleteClass removes a class together with every student in it. When the
// deleted class was active, the first remaining class becomes active.
func DeleteClass(state models.AppState, classID string) (models.AppState, error) {
	if _, ok := state.FindClass(classID); !ok {
		return state, fmt.Errorf("%w: %s", ErrClassNotFound, classID)
	}
	if len(state.Classes) <= 1 {
		return state, ErrLastClass
	}

	out := state.Clone().Normalize()

	classes := make([]models.ClassGroup, 0, len(out.Classes)-1)
	for _, c := range out.Classes {
		if c.ID != classID {
			classes = append(classes, c)
		}
	}
	out.Classes = classes

	students := make([]models.Student, 0, len(out.Students))
	for _, s := range out.Students {
		if s.ClassID != classID {
			students = append(students, s)
		}
	}
	out.Students = students

	if out.ActiveID() == classID {
		out = out.WithActive(out.Classes[0].ID)
	}
	return out, nil
}

// SetActiveClass switches the active class.
func SetActiveClass(state models.AppState, classID string) (models.AppState, error) {
	if _, ok := state.FindClass(classID); !ok {
		return state, fmt.Errorf("%w: %s", ErrClassNotFound, classID)
	}
	return state.Clone().WithActive(classID), nil
}

// --- Student Operations ---

func checkClass(state models.AppState, classID string) error {
	if classID == "" {
		return ErrNoClass
	}
	if _, ok := state.FindClass(classID); !ok {
		return fmt.Errorf("%w: %s", ErrClassNotFound, classID)
	}
	return nil
}

// AddStudent adds a student with zero score and no history to a class.
func AddStudent(state models.AppState, classID, name string) (models.AppState, models.Student, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return state, models.Student{}, ErrEmptyName
	}
	if err := checkClass(state, classID); err != nil {
		return state, models.Student{}, err
	}

	student := models.NewStudent(classID, name)
	out := state.Clone().Normalize()
	out.Students = append(out.Students, student)
	return out, student, nil
}

// UpdateStudent applies fn to the student with the given ID. The ID is
// preserved whatever fn does to it.
func UpdateStudent(state models.AppState, studentID string, fn func(*models.Student)) (models.AppState, models.Student, error) {
	out := state.Clone().Normalize()
	for i := range out.Students {
		if out.Students[i].ID != studentID {
			continue
		}
		fn(&out.Students[i])
		out.Students[i].ID = studentID
		return out, out.Students[i], nil
	}
	return state, models.Student{}, fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
}

// RenameStudent changes a student's display name.
func RenameStudent(state models.AppState, studentID, name string) (models.AppState, models.Student, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return state, models.Student{}, ErrEmptyName
	}
	return UpdateStudent(state, studentID, func(s *models.Student) {
		s.Name = name
	})
}

// DeleteStudent removes a student and its history. Unknown IDs are ignored.
func DeleteStudent(state models.AppState, studentID string) models.AppState {
	out := state.Clone().Normalize()
	students := make([]models.Student, 0, len(out.Students))
	for _, s := range out.Students {
		if s.ID != studentID {
			students = append(students, s)
		}
	}
	out.Students = students
	return out
}

// RecordScore adds entry.Points to the student's score and appends entry to
// its history.
func RecordScore(state models.AppState, studentID string, entry models.HistoryEntry) (models.AppState, models.Student, error) {
	return UpdateStudent(state, studentID, func(s *models.Student) {
		s.Score += entry.Points
		s.History = append(s.History, entry)
	})
}
