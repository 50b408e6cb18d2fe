package models

// Difficulty classifies a question
type Difficulty string

const (
	Easy   Difficulty = "Easy"
	Medium Difficulty = "Medium"
	Hard   Difficulty = "Hard"
)

// ClassGroup represents a class
type ClassGroup struct {
	ID          string `json:"id"`                    // Opaque class ID
	Name        string `json:"name"`                  // Display name, not required to be unique
	Description string `json:"description,omitempty"` // Optional free text
}

// HistoryEntry is one scoring event. Entries are never edited once appended.
type HistoryEntry struct {
	QuestionID string `json:"questionId,omitempty"` // Empty when no question was shown
	Points     int    `json:"points"`
	Timestamp  int64  `json:"timestamp"` // Epoch milliseconds
	Note       string `json:"note,omitempty"`
}

// Student represents a student
type Student struct {
	ID      string         `json:"id"`      // Opaque student ID
	ClassID string         `json:"classId"` // ID of the class the student belongs to
	Name    string         `json:"name"`
	Score   int            `json:"score"`   // Signed, no floor or ceiling
	History []HistoryEntry `json:"history"` // Chronological, append-only
}

// Question is an entry of the shared question bank
type Question struct {
	ID         string     `json:"id"`
	Content    string     `json:"content"`
	Difficulty Difficulty `json:"difficulty"`
	Subject    string     `json:"subject,omitempty"`
	Tags       []string   `json:"tags"`
}

// AppState is the aggregate persisted and restored as one unit
type AppState struct {
	Classes       []ClassGroup `json:"classes"`
	ActiveClassID *string      `json:"activeClassId"` // nil when no class is active
	Students      []Student    `json:"students"`
	Questions     []Question   `json:"questions"`
}
