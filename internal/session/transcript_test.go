package session

import (
	"testing"
	"time"
)

func TestTranscript_MergesAssistantDeltas(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tr := NewTranscript(func() time.Time { return at })

	tr.AppendAssistant("Hello")
	tr.AppendAssistant(", how are")
	tr.AppendAssistant(" you?")
	tr.AppendUser("  fine thanks ")
	tr.AppendUser("")
	tr.AppendAssistant("Great.")
	tr.AppendAssistant("")

	lines := tr.Lines()
	want := []Line{
		{Speaker: SpeakerAssistant, Text: "Hello, how are you?", At: at},
		{Speaker: SpeakerUser, Text: "fine thanks", At: at},
		{Speaker: SpeakerAssistant, Text: "Great.", At: at},
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %+v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, lines[i], want[i])
		}
	}

	wantStr := "assistant: Hello, how are you?\nuser: fine thanks\nassistant: Great.\n"
	if got := tr.String(); got != wantStr {
		t.Errorf("String() = %q, want %q", got, wantStr)
	}
}
