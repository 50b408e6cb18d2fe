package session

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// Rand picks uniformly from [0, n).
type Rand interface {
	Intn(n int) int
}

// NewRand returns a math/rand source seeded from crypto/rand. It falls back
// to the clock if the system source cannot be read.
func NewRand() *rand.Rand {
	var b [8]byte
	seed := time.Now().UnixNano()
	if _, err := crand.Read(b[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(b[:]))
	}
	return rand.New(rand.NewSource(seed))
}

// Scheduler runs fn every interval until fn returns false.
type Scheduler interface {
	Repeat(interval time.Duration, fn func() bool)
}

// TickerScheduler drives fn from a time.Ticker in its own goroutine.
type TickerScheduler struct{}

func (TickerScheduler) Repeat(interval time.Duration, fn func() bool) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if !fn() {
				return
			}
		}
	}()
}

// EventKind names a session cue.
type EventKind string

const (
	EventTick       EventKind = "tick"        // a student was highlighted during the roll
	EventSelected   EventKind = "selected"    // the roll settled
	EventSuccess    EventKind = "success"     // positive score
	EventFailure    EventKind = "failure"     // negative score
	EventScored     EventKind = "scored"      // any score decision, including skip
	EventNoStudents EventKind = "no_students" // draw refused on an empty roster
)

// Event is a fire-and-forget cue for the presentation layer.
type Event struct {
	Kind        EventKind `json:"kind"`
	Step        int       `json:"step,omitempty"`
	StudentID   string    `json:"studentId,omitempty"`
	StudentName string    `json:"studentName,omitempty"`
	QuestionID  string    `json:"questionId,omitempty"`
	Points      int       `json:"points,omitempty"`
}

// Notifier receives session cues. Implementations must not block for long
// and may drop events.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(ev Event) { f(ev) }

// MultiNotifier fans an event out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ev Event) {
	for _, n := range m {
		safeNotify(n, ev)
	}
}

// LogNotifier writes cues to a logger at debug level.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) Notify(ev Event) {
	n.Log.Debug().
		Str("kind", string(ev.Kind)).
		Int("step", ev.Step).
		Str("student_id", ev.StudentID).
		Int("points", ev.Points).
		Msg("session cue")
}

func safeNotify(n Notifier, ev Event) {
	if n == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	n.Notify(ev)
}
