package models

// DefaultClassName is the name of the class synthesized for a state without classes.
const DefaultClassName = "默认班级"

// Repair brings a freshly loaded state in line with the class invariants.
//
// With no classes, a default class is created, made active, and every student
// without a class is attached to it. Students that already name a class keep it.
// Otherwise an unset or dangling active class is replaced by the first class.
// Repair is idempotent; changed reports whether anything was modified.
func Repair(s AppState) (repaired AppState, changed bool) {
	out := s.Clone().Normalize()

	if len(out.Classes) == 0 {
		def := ClassGroup{ID: NewID(), Name: DefaultClassName}
		out.Classes = []ClassGroup{def}
		out = out.WithActive(def.ID)
		for i := range out.Students {
			if out.Students[i].ClassID == "" {
				out.Students[i].ClassID = def.ID
			}
		}
		return out, true
	}

	if _, ok := out.ActiveClass(); !ok {
		out = out.WithActive(out.Classes[0].ID)
		return out, true
	}

	return out, false
}
