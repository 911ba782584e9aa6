package chatlog

import (
	"os"
	"testing"
	"time"
)

func newTestLog(t *testing.T, assistant string) *Log {
	t.Helper()
	l, err := New(t.TempDir(), assistant)
	if err != nil {
		t.Fatal(err)
	}
	l.now = func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return l
}

func TestAppendWritesToDatedFile(t *testing.T) {
	l := newTestLog(t, "Jarvis")
	l.Append("hello")

	data, err := os.ReadFile(l.filename("2024-06-01"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello\n" {
		t.Errorf("file contents = %q, want %q", data, "hello\n")
	}
}

func TestPartialAppendsBuildOneLine(t *testing.T) {
	l := newTestLog(t, "Jarvis")
	l.AppendPartial("Jarvis: ")
	l.AppendPartial("First chunk. ")
	l.AppendPartial("Second chunk.")
	l.Append("")

	msgs := l.ForDate("2024-06-01")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	want := "Jarvis: First chunk. Second chunk."
	if msgs[0].Message != want {
		t.Errorf("message = %q, want %q", msgs[0].Message, want)
	}
}

func TestForDateFoldsExchange(t *testing.T) {
	l := newTestLog(t, "Jarvis")
	l.User("what's the weather")
	l.Assistant("Jarvis", "Sunny and warm.")
	l.User("thanks")
	l.Assistant("Jarvis", "Any time.")

	msgs := l.ForDate("2024-06-01")
	want := []string{
		"You: what's the weather",
		"Jarvis: Sunny and warm.",
		"You: thanks",
		"Jarvis: Any time.",
	}
	if len(msgs) != len(want) {
		t.Fatalf("got %d messages, want %d: %v", len(msgs), len(want), msgs)
	}
	for i, w := range want {
		if msgs[i].Message != w {
			t.Errorf("message[%d] = %q, want %q", i, msgs[i].Message, w)
		}
	}
}

func TestForDateFoldsContinuationLines(t *testing.T) {
	l := newTestLog(t, "Jarvis")
	l.Append("You: tell me a poem ")
	l.Append("Jarvis: Roses are red. ")
	l.Append("Violets are blue.")

	msgs := l.ForDate("2024-06-01")
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2: %v", len(msgs), msgs)
	}
	want := "Jarvis: Roses are red. \nViolets are blue."
	if msgs[1].Message != want {
		t.Errorf("folded message = %q, want %q", msgs[1].Message, want)
	}
}

func TestAssistantPrefixMatchIsCaseInsensitive(t *testing.T) {
	l := newTestLog(t, "jarvis")
	l.Append("Jarvis: Hello. ")

	msgs := l.ForDate("2024-06-01")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1: %v", len(msgs), msgs)
	}
}

func TestForDateMissingFileIsEmpty(t *testing.T) {
	l := newTestLog(t, "Jarvis")
	msgs := l.ForDate("1999-01-01")
	if len(msgs) != 0 {
		t.Errorf("got %d messages from a missing file, want 0", len(msgs))
	}
}
