// Package speech turns streamed assistant text into spoken audio. A
// debounce window coalesces fine-grained fragments into whole utterances,
// and playback is immediately preemptible when the user starts talking.
package speech

import (
	"log"
	"strings"
	"sync"
	"time"
)

// Voice is one synthesis voice offered by the runtime.
type Voice struct {
	Name string
	Lang string
}

// Synthesizer is the playback capability. Speak reports completion
// through exactly one of onEnd or onErr; CancelAll stops everything that
// is playing or queued inside the synthesizer.
type Synthesizer interface {
	Voices() []Voice
	Speak(text string, voice *Voice, onEnd func(), onErr func(error))
	CancelAll()
}

// Profile narrows voice selection by name and language.
type Profile struct {
	ID    string
	Name  string
	Match func(Voice) bool
}

func isEnglish(v Voice) bool { return strings.HasPrefix(v.Lang, "en") }

func nameHasAny(v Voice, names ...string) bool {
	for _, n := range names {
		if strings.Contains(v.Name, n) {
			return true
		}
	}
	return false
}

// Profiles are the selectable voice profiles, default first.
var Profiles = []Profile{
	{ID: "default", Name: "Default", Match: isEnglish},
	{ID: "female", Name: "Female", Match: func(v Voice) bool {
		return isEnglish(v) && nameHasAny(v, "Female", "Samantha", "Victoria", "Karen")
	}},
	{ID: "male", Name: "Male", Match: func(v Voice) bool {
		return isEnglish(v) && nameHasAny(v, "Male", "Daniel", "Alex", "Tom")
	}},
	{ID: "british", Name: "British", Match: func(v Voice) bool { return v.Lang == "en-GB" }},
}

// ProfileByID returns the named profile, or the default when unknown.
func ProfileByID(id string) Profile {
	for _, p := range Profiles {
		if p.ID == id {
			return p
		}
	}
	return Profiles[0]
}

// SelectVoice picks a voice for a profile: profile match, then any
// English voice, then the first voice available. Nil when no voices
// exist.
func SelectVoice(profile Profile, voices []Voice) *Voice {
	for i := range voices {
		if profile.Match(voices[i]) {
			return &voices[i]
		}
	}
	for i := range voices {
		if isEnglish(voices[i]) {
			return &voices[i]
		}
	}
	if len(voices) > 0 {
		return &voices[0]
	}
	return nil
}

// DefaultDebounce is the coalescing window for streamed fragments.
const DefaultDebounce = 100 * time.Millisecond

type Config struct {
	Synthesizer Synthesizer // nil disables playback entirely
	Logger      *log.Logger
	ProfileID   string
	Debounce    time.Duration

	// After is injectable for tests; nil picks time.AfterFunc.
	After func(d time.Duration, fn func())
}

// Queue owns the pending-text buffer and the currently playing
// utterance. Every started utterance gets a sequence number; callbacks
// carrying a stale number are ignored, which makes cancellation exits
// indistinguishable from natural ones to callers.
type Queue struct {
	synth    Synthesizer
	logger   *log.Logger
	debounce time.Duration
	after    func(d time.Duration, fn func())

	mu        sync.Mutex
	profileID string
	pending   []string
	speaking  bool
	seq       uint64
}

func NewQueue(cfg Config) *Queue {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	after := cfg.After
	if after == nil {
		after = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	return &Queue{
		synth:     cfg.Synthesizer,
		logger:    logger,
		debounce:  debounce,
		after:     after,
		profileID: cfg.ProfileID,
	}
}

// Supported reports whether playback is available in this runtime.
func (q *Queue) Supported() bool { return q.synth != nil }

// SetProfile switches the voice profile for subsequent utterances.
func (q *Queue) SetProfile(id string) {
	q.mu.Lock()
	q.profileID = id
	q.mu.Unlock()
}

func (q *Queue) IsSpeaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.speaking
}

// Enqueue buffers a fragment and arms the debounce window. Fragments
// accumulated while an utterance plays are spoken as one utterance when
// it ends.
func (q *Queue) Enqueue(fragment string) {
	if q.synth == nil || fragment == "" {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, fragment)
	q.mu.Unlock()

	q.after(q.debounce, q.flush)
}

func (q *Queue) flush() {
	q.mu.Lock()
	if q.speaking || len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	text := strings.Join(q.pending, " ")
	q.pending = nil
	start := q.speakLocked(text)
	q.mu.Unlock()
	start()
}

// SpeakNow drops the pending buffer, cancels current playback, and
// speaks text immediately. IsSpeaking stays true across the handover.
func (q *Queue) SpeakNow(text string) {
	if q.synth == nil || text == "" {
		return
	}
	q.mu.Lock()
	q.pending = nil
	start := q.speakLocked(text)
	q.mu.Unlock()

	// The cancelled utterance's callback carries a stale sequence number
	// and is ignored.
	q.synth.CancelAll()
	start()
}

// Cancel stops playback and clears pending state. Safe when nothing is
// playing.
func (q *Queue) Cancel() {
	if q.synth == nil {
		return
	}
	q.mu.Lock()
	q.seq++
	q.pending = nil
	q.speaking = false
	q.mu.Unlock()

	q.synth.CancelAll()
}

// speakLocked claims the next sequence number and returns the playback
// start to run once the lock is released; Speak must not be invoked
// under the queue lock.
func (q *Queue) speakLocked(text string) func() {
	q.seq++
	mySeq := q.seq
	q.speaking = true
	voice := SelectVoice(ProfileByID(q.profileID), q.synth.Voices())
	return func() {
		q.synth.Speak(text, voice,
			func() { q.utteranceEnded(mySeq, nil) },
			func(err error) { q.utteranceEnded(mySeq, err) })
	}
}

func (q *Queue) utteranceEnded(seq uint64, err error) {
	q.mu.Lock()
	if seq != q.seq {
		q.mu.Unlock()
		return
	}
	if err != nil {
		q.logger.Printf("speech: synthesis error: %v", err)
		q.speaking = false
		q.mu.Unlock()
		return
	}
	if len(q.pending) > 0 {
		text := strings.Join(q.pending, " ")
		q.pending = nil
		start := q.speakLocked(text)
		q.mu.Unlock()
		start()
		return
	}
	q.speaking = false
	q.mu.Unlock()
}
