package roster

import (
	"regexp"
	"strings"

	"classroom-rollcall-go/models"
)

var (
	lineBreak     = regexp.MustCompile(`\r?\n`)
	nameStripping = strings.NewReplacer(`"`, "", `'`, "", ",", "")
)

// CleanName strips quote and comma characters from an imported name.
func CleanName(raw string) string {
	return strings.TrimSpace(nameStripping.Replace(strings.TrimSpace(raw)))
}

// ParseStudentNames extracts one name per non-empty line of a plain text or
// CSV roster.
func ParseStudentNames(raw string) []string {
	names := []string{}
	for _, line := range lineBreak.Split(raw, -1) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if name := CleanName(line); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ImportNames attaches one new student per name to a class and returns the
// number of students created.
func ImportNames(state models.AppState, classID string, names []string) (models.AppState, int, error) {
	if err := checkClass(state, classID); err != nil {
		return state, 0, err
	}

	out := state.Clone().Normalize()
	imported := 0
	for _, name := range names {
		name = CleanName(name)
		if name == "" {
			continue
		}
		out.Students = append(out.Students, models.NewStudent(classID, name))
		imported++
	}
	return out, imported, nil
}

// BulkImportStudents imports a plain text or CSV roster into a class.
func BulkImportStudents(state models.AppState, classID, raw string) (models.AppState, int, error) {
	return ImportNames(state, classID, ParseStudentNames(raw))
}
