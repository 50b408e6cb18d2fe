// Package app owns the single AppState of a running classroom.
//
// Every mutation runs a pure mutator from roster or bank, swaps the result in
// and hands a copy to the Saver. Reads return copies and re-derive views
// (active class, rosters, rankings) from the current state.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"classroom-rollcall-go/bank"
	"classroom-rollcall-go/db"
	"classroom-rollcall-go/generator"
	"classroom-rollcall-go/models"
	"classroom-rollcall-go/roster"
	"classroom-rollcall-go/session"
	"classroom-rollcall-go/spreadsheet"
)

var (
	ErrNoActiveClass = errors.New("no active class")
	ErrEmptyTopic    = errors.New("topic cannot be empty")
)

// Saver mirrors committed states to durable storage. Save must not block.
type Saver interface {
	Save(state models.AppState)
}

// Options wires the collaborators of a Classroom.
type Options struct {
	Engine    *session.Engine
	Saver     Saver
	Generator generator.Generator // nil disables question generation
	Now       func() time.Time
	Log       zerolog.Logger
}

type Classroom struct {
	mu    sync.RWMutex
	state models.AppState

	engine *session.Engine
	saver  Saver
	gen    generator.Generator
	now    func() time.Time
	log    zerolog.Logger
}

// New repairs the loaded state and takes ownership of it. A repaired state is
// saved right away.
func New(loaded models.AppState, opts Options) *Classroom {
	c := &Classroom{
		engine: opts.Engine,
		saver:  opts.Saver,
		gen:    opts.Generator,
		now:    opts.Now,
		log:    opts.Log.With().Str("component", "classroom").Logger(),
	}
	if c.engine == nil {
		c.engine = session.NewEngine(session.Options{})
	}
	if c.saver == nil {
		c.saver = discardSaver{}
	}
	if c.now == nil {
		c.now = time.Now
	}

	state, changed := models.Repair(loaded)
	c.state = state
	if changed {
		c.log.Info().
			Int("classes", len(state.Classes)).
			Str("active_class", state.ActiveID()).
			Msg("repaired loaded state")
		c.saver.Save(state.Clone())
	}
	return c
}

type discardSaver struct{}

func (discardSaver) Save(models.AppState) {}

// commit installs next and queues it for saving. Callers hold c.mu.
func (c *Classroom) commit(next models.AppState) {
	c.state = next
	c.saver.Save(next.Clone())
}

// State returns a copy of the whole state.
func (c *Classroom) State() models.AppState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Clone()
}

func (c *Classroom) Summary() models.Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Summary()
}

// --- Classes ---

func (c *Classroom) Classes() []models.ClassGroup {
	return c.State().Classes
}

func (c *Classroom) CreateClass(name, description string, activate bool) (models.ClassGroup, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, clazz, err := roster.CreateClass(c.state, name, description, activate)
	if err != nil {
		return models.ClassGroup{}, err
	}
	if err := c.switchingActive(next); err != nil {
		return models.ClassGroup{}, err
	}
	c.commit(next)
	c.log.Info().Str("class_id", clazz.ID).Str("name", clazz.Name).Msg("class created")
	return clazz, nil
}

func (c *Classroom) DeleteClass(classID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := roster.DeleteClass(c.state, classID)
	if err != nil {
		return err
	}
	if err := c.switchingActive(next); err != nil {
		return err
	}
	c.commit(next)
	c.log.Info().Str("class_id", classID).Str("active_class", next.ActiveID()).Msg("class deleted")
	return nil
}

func (c *Classroom) SetActiveClass(classID string) (models.ClassGroup, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := roster.SetActiveClass(c.state, classID)
	if err != nil {
		return models.ClassGroup{}, err
	}
	if err := c.switchingActive(next); err != nil {
		return models.ClassGroup{}, err
	}
	c.commit(next)
	clazz, _ := next.ActiveClass()
	return clazz, nil
}

// switchingActive abandons an unscored round when next changes the active
// class. A running roll cannot be abandoned. Callers hold c.mu.
func (c *Classroom) switchingActive(next models.AppState) error {
	if next.ActiveID() == c.state.ActiveID() {
		return nil
	}
	return c.engine.Reset()
}

// --- Students ---

func (c *Classroom) Students(classID string) ([]models.Student, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.state.FindClass(classID); !ok {
		return nil, fmt.Errorf("%w: %s", roster.ErrClassNotFound, classID)
	}
	return c.state.Clone().StudentsInClass(classID), nil
}

// classOrActive resolves an empty class ID to the active class. Callers hold c.mu.
func (c *Classroom) classOrActive(classID string) string {
	if classID == "" {
		return c.state.ActiveID()
	}
	return classID
}

// AddStudent adds a student to classID, or to the active class when classID is empty.
func (c *Classroom) AddStudent(classID, name string) (models.Student, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, student, err := roster.AddStudent(c.state, c.classOrActive(classID), name)
	if err != nil {
		return models.Student{}, err
	}
	c.commit(next)
	return student, nil
}

func (c *Classroom) RenameStudent(studentID, name string) (models.Student, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, student, err := roster.RenameStudent(c.state, studentID, name)
	if err != nil {
		return models.Student{}, err
	}
	c.commit(next)
	return student, nil
}

// DeleteStudent removes a student. A revealed round for that student is abandoned.
func (c *Classroom) DeleteStudent(studentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.state.FindStudent(studentID); !ok {
		return fmt.Errorf("%w: %s", roster.ErrStudentNotFound, studentID)
	}
	snap := c.engine.Snapshot()
	if snap.Phase == session.Revealed && snap.Student != nil && snap.Student.ID == studentID {
		if err := c.engine.Reset(); err != nil {
			return err
		}
	}
	c.commit(roster.DeleteStudent(c.state, studentID))
	return nil
}

// ImportStudents imports a plain text or CSV roster.
func (c *Classroom) ImportStudents(classID, raw string) (int, error) {
	return c.ImportStudentNames(classID, roster.ParseStudentNames(raw))
}

// ImportStudentsFromExcel imports names from column A of an Excel workbook.
func (c *Classroom) ImportStudentsFromExcel(classID string, file io.Reader) (int, error) {
	names, err := spreadsheet.ReadStudentNames(file)
	if err != nil {
		return 0, err
	}
	return c.ImportStudentNames(classID, names)
}

func (c *Classroom) ImportStudentNames(classID string, names []string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	classID = c.classOrActive(classID)
	next, n, err := roster.ImportNames(c.state, classID, names)
	if err != nil {
		return 0, err
	}
	c.commit(next)
	c.log.Info().Str("class_id", classID).Int("imported", n).Msg("students imported")
	return n, nil
}

// Rankings returns the class roster by descending score.
func (c *Classroom) Rankings(classID string, limit int) (models.ClassGroup, []models.Student, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clazz, ok := c.state.FindClass(classID)
	if !ok {
		return models.ClassGroup{}, nil, fmt.Errorf("%w: %s", roster.ErrClassNotFound, classID)
	}
	return clazz, c.state.Clone().Rankings(classID, limit), nil
}

// WriteRankings writes the class ranking as an Excel workbook.
func (c *Classroom) WriteRankings(w io.Writer, classID string) error {
	clazz, ranked, err := c.Rankings(classID, 0)
	if err != nil {
		return err
	}
	return spreadsheet.WriteRankings(w, clazz.Name, ranked)
}

// --- Questions ---

func (c *Classroom) Questions() []models.Question {
	return c.State().Questions
}

func (c *Classroom) AddQuestion(content string, difficulty models.Difficulty, subject string) (models.Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, q, err := bank.AddQuestion(c.state, content, difficulty, subject)
	if err != nil {
		return models.Question{}, err
	}
	c.commit(next)
	return q, nil
}

func (c *Classroom) DeleteQuestion(questionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commit(bank.DeleteQuestion(c.state, questionID))
}

func (c *Classroom) ImportQuestions(raw string) []models.Question {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, imported := bank.BulkImportQuestions(c.state, raw)
	c.commit(next)
	c.log.Info().Int("imported", len(imported)).Msg("questions imported")
	return imported
}

// GeneratorAvailable reports whether GenerateQuestions can be used.
func (c *Classroom) GeneratorAvailable() bool {
	return c.gen != nil
}

// GenerateQuestions asks the generator for questions and adds them to the
// bank. On failure the bank is left untouched.
func (c *Classroom) GenerateQuestions(ctx context.Context, topic string, count int, difficulty models.Difficulty) ([]models.Question, error) {
	if c.gen == nil {
		return nil, generator.ErrNotConfigured
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	drafts, err := c.gen.Generate(ctx, topic, generator.ClampCount(count), difficulty)
	if err != nil {
		c.log.Error().Err(err).Str("topic", topic).Msg("question generation failed")
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	next, added := bank.AddGenerated(c.state, drafts)
	c.commit(next)
	return added, nil
}

// --- Session ---

// Draw starts a round on the active class. c.mu is held until the engine has
// taken the roster, so the active class cannot change in between. Engine
// ticks never take c.mu.
func (c *Classroom) Draw() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.state.ActiveClass(); !ok {
		return ErrNoActiveClass
	}
	return c.engine.Draw(c.state.ActiveStudents(), c.state.Questions)
}

// ScoreResult is a scored round together with the updated student.
type ScoreResult struct {
	session.Outcome
	Student models.Student `json:"student"`
}

// Score closes the revealed round and records the points for the selected student.
func (c *Classroom) Score(points int) (ScoreResult, error) {
	out, err := c.engine.Score(points)
	if err != nil {
		return ScoreResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	next, student, err := roster.RecordScore(c.state, out.StudentID, out.Entry)
	if err != nil {
		c.log.Warn().Str("student_id", out.StudentID).Msg("scored student no longer exists")
		return ScoreResult{}, err
	}
	c.commit(next)
	c.log.Info().
		Str("student_id", student.ID).
		Int("points", out.Entry.Points).
		Int("score", student.Score).
		Msg("round scored")
	return ScoreResult{Outcome: out, Student: student}, nil
}

// Session returns the engine snapshot with the highlighted student's current
// record.
func (c *Classroom) Session() session.Snapshot {
	snap := c.engine.Snapshot()
	if snap.Student == nil {
		return snap
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if live, ok := c.state.FindStudent(snap.Student.ID); ok {
		snap.Student = &live
	}
	return snap
}

// --- Export ---

// Export renders the whole state for a manual backup.
func (c *Classroom) Export() ([]byte, string, error) {
	return db.Export(c.State(), c.now())
}
