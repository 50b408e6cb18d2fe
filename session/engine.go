// Package session implements the roll-call round: a random student is rolled
// and the presenter scores their answer.
//
// A round moves Idle -> Rolling -> Revealed -> Idle. Rolling is driven by a
// Scheduler; every tick runs under the engine lock, so ticks never overlap
// and never interleave with Draw, Score or Snapshot.
package session

import (
	"errors"
	"sync"
	"time"

	"classroom-rollcall-go/models"
)

// Phase is the state of the round.
type Phase string

const (
	Idle     Phase = "idle"
	Rolling  Phase = "rolling"
	Revealed Phase = "revealed"
)

const (
	DefaultSteps    = 21
	DefaultInterval = 80 * time.Millisecond
)

var (
	ErrNoStudents      = errors.New("no students in class")
	ErrRoundInProgress = errors.New("a round is already in progress")
	ErrNotRevealed     = errors.New("no student is waiting for a score")
	ErrInvalidPoints   = errors.New("points must be one of -1, 0, 1, 2")
)

// ValidPoints reports whether p is an accepted score decision. Zero skips.
func ValidPoints(p int) bool {
	switch p {
	case -1, 0, 1, 2:
		return true
	}
	return false
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	Steps     int
	Interval  time.Duration
	Rand      Rand
	Scheduler Scheduler
	Notifier  Notifier
	Now       func() time.Time
}

// Feedback is the transient result indicator shown after scoring.
type Feedback struct {
	Kind   string `json:"kind"` // success, failure or skip
	Points int    `json:"points"`
}

// Outcome is a score decision ready to be applied to the state.
type Outcome struct {
	StudentID   string              `json:"studentId"`
	StudentName string              `json:"studentName"`
	Entry       models.HistoryEntry `json:"entry"`
	Feedback    Feedback            `json:"feedback"`
}

// Snapshot is the observable state of the engine.
type Snapshot struct {
	Phase        Phase            `json:"phase"`
	Step         int              `json:"step"`
	Steps        int              `json:"steps"`
	Student      *models.Student  `json:"student"`
	Question     *models.Question `json:"question"`
	ShowControls bool             `json:"showControls"`
}

// Engine runs one round at a time.
type Engine struct {
	mu sync.Mutex

	steps     int
	interval  time.Duration
	rand      Rand
	scheduler Scheduler
	notifier  Notifier
	now       func() time.Time

	phase     Phase
	step      int
	roster    []models.Student
	questions []models.Question
	student   *models.Student
	question  *models.Question
}

// NewEngine creates an idle engine.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		steps:     opts.Steps,
		interval:  opts.Interval,
		rand:      opts.Rand,
		scheduler: opts.Scheduler,
		notifier:  opts.Notifier,
		now:       opts.Now,
		phase:     Idle,
	}
	if e.steps <= 0 {
		e.steps = DefaultSteps
	}
	if e.interval <= 0 {
		e.interval = DefaultInterval
	}
	if e.rand == nil {
		e.rand = NewRand()
	}
	if e.scheduler == nil {
		e.scheduler = TickerScheduler{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func (e *Engine) emit(events ...Event) {
	for _, ev := range events {
		safeNotify(e.notifier, ev)
	}
}

// Draw starts a round over roster. The question is later drawn from questions,
// which may be empty.
func (e *Engine) Draw(roster []models.Student, questions []models.Question) error {
	e.mu.Lock()
	if e.phase != Idle {
		e.mu.Unlock()
		return ErrRoundInProgress
	}
	if len(roster) == 0 {
		e.mu.Unlock()
		e.emit(Event{Kind: EventNoStudents})
		return ErrNoStudents
	}

	e.roster = append([]models.Student(nil), roster...)
	e.questions = append([]models.Question(nil), questions...)
	e.student = nil
	e.question = nil
	e.step = 0
	e.phase = Rolling
	e.mu.Unlock()

	e.scheduler.Repeat(e.interval, e.tick)
	return nil
}

// tick advances the roll by one step. It returns false once the roll settled.
func (e *Engine) tick() bool {
	e.mu.Lock()
	if e.phase != Rolling {
		e.mu.Unlock()
		return false
	}

	picked := e.roster[e.rand.Intn(len(e.roster))]
	e.student = &picked
	e.step++
	events := []Event{{Kind: EventTick, Step: e.step, StudentID: picked.ID, StudentName: picked.Name}}

	settled := e.step >= e.steps
	if settled {
		e.phase = Revealed
		if len(e.questions) > 0 {
			q := e.questions[e.rand.Intn(len(e.questions))]
			e.question = &q
		}
		selected := Event{Kind: EventSelected, Step: e.step, StudentID: picked.ID, StudentName: picked.Name}
		if e.question != nil {
			selected.QuestionID = e.question.ID
		}
		events = append(events, selected)
	}
	e.mu.Unlock()

	e.emit(events...)
	return !settled
}

// Score closes the round with the given points and returns the history entry
// to record for the selected student.
func (e *Engine) Score(points int) (Outcome, error) {
	if !ValidPoints(points) {
		return Outcome{}, ErrInvalidPoints
	}

	e.mu.Lock()
	if e.phase != Revealed || e.student == nil {
		e.mu.Unlock()
		return Outcome{}, ErrNotRevealed
	}

	entry := models.HistoryEntry{
		Points:    points,
		Timestamp: e.now().UnixMilli(),
	}
	if e.question != nil {
		entry.QuestionID = e.question.ID
	}
	out := Outcome{
		StudentID:   e.student.ID,
		StudentName: e.student.Name,
		Entry:       entry,
		Feedback:    feedbackFor(points),
	}
	e.clear()
	e.mu.Unlock()

	events := []Event{}
	switch {
	case points > 0:
		events = append(events, Event{Kind: EventSuccess, StudentID: out.StudentID, Points: points})
	case points < 0:
		events = append(events, Event{Kind: EventFailure, StudentID: out.StudentID, Points: points})
	}
	events = append(events, Event{Kind: EventScored, StudentID: out.StudentID, QuestionID: entry.QuestionID, Points: points})
	e.emit(events...)

	return out, nil
}

// Reset abandons a revealed round without scoring it. It is refused while
// the roll is running.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase == Rolling {
		return ErrRoundInProgress
	}
	e.clear()
	return nil
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Snapshot returns a copy of the observable state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Phase:        e.phase,
		Step:         e.step,
		Steps:        e.steps,
		ShowControls: e.phase == Revealed,
	}
	if e.student != nil {
		s := *e.student
		snap.Student = &s
	}
	if e.question != nil && e.phase == Revealed {
		q := *e.question
		snap.Question = &q
	}
	return snap
}

// clear returns to Idle. Callers hold e.mu.
func (e *Engine) clear() {
	e.phase = Idle
	e.step = 0
	e.student = nil
	e.question = nil
	e.roster = nil
	e.questions = nil
}

func feedbackFor(points int) Feedback {
	switch {
	case points > 0:
		return Feedback{Kind: "success", Points: points}
	case points < 0:
		return Feedback{Kind: "failure", Points: points}
	default:
		return Feedback{Kind: "skip", Points: 0}
	}
}
