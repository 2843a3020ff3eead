package session

import (
	"strings"
	"sync"
	"time"
)

// Speaker identifies who produced a transcript line.
type Speaker string

const (
	// SpeakerAssistant marks text streamed from the remote service.
	SpeakerAssistant Speaker = "assistant"

	// SpeakerUser marks captions of the local user's speech.
	SpeakerUser Speaker = "user"
)

// Line is one turn of the conversation.
type Line struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// Transcript accumulates the conversation. Consecutive assistant deltas are
// merged into one line until a user line interrupts them.
//
// All methods are safe for concurrent use.
type Transcript struct {
	mu    sync.Mutex
	lines []Line
	now   func() time.Time
}

// NewTranscript returns an empty transcript. A nil now uses [time.Now].
func NewTranscript(now func() time.Time) *Transcript {
	if now == nil {
		now = time.Now
	}
	return &Transcript{now: now}
}

// AppendAssistant adds an incremental assistant text delta.
func (t *Transcript) AppendAssistant(delta string) {
	if delta == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.lines); n > 0 && t.lines[n-1].Speaker == SpeakerAssistant {
		t.lines[n-1].Text += delta
		return
	}
	t.lines = append(t.lines, Line{Speaker: SpeakerAssistant, Text: delta, At: t.now()})
}

// AppendUser adds a final caption of the user's speech.
func (t *Transcript) AppendUser(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, Line{Speaker: SpeakerUser, Text: text, At: t.now()})
}

// Lines returns a copy of the transcript.
func (t *Transcript) Lines() []Line {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Line, len(t.lines))
	copy(out, t.lines)
	return out
}

// String renders the transcript as "speaker: text" lines.
func (t *Transcript) String() string {
	var b strings.Builder
	for _, l := range t.Lines() {
		b.WriteString(string(l.Speaker))
		b.WriteString(": ")
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
