package llm

// ReplyKind distinguishes a single text answer from a streamed one.
type ReplyKind int

const (
	SingleText  ReplyKind = iota // one complete utterance
	ChunkStream                  // sentences arriving as the model generates
)

// Reply is the backend's answer: either one finished text or a stream
// of sentence-sized chunks. A nil *Reply signals hard failure.
type Reply struct {
	kind   ReplyKind
	text   string
	chunks <-chan string
}

// NewText wraps a complete answer.
func NewText(text string) *Reply {
	return &Reply{kind: SingleText, text: text}
}

// NewStream wraps a channel of sentence chunks. The producer closes the
// channel when the model is done.
func NewStream(chunks <-chan string) *Reply {
	return &Reply{kind: ChunkStream, chunks: chunks}
}

// Kind reports which variant this reply is.
func (r *Reply) Kind() ReplyKind { return r.kind }

// Sentences provides uniform consumption for both variants: a channel
// yielding each chunk in order, closed when the reply is exhausted.
func (r *Reply) Sentences() <-chan string {
	if r.kind == ChunkStream {
		return r.chunks
	}
	ch := make(chan string, 1)
	ch <- r.text
	close(ch)
	return ch
}
