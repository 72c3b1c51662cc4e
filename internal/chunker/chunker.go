package chunker

import (
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"

	"distill/internal/domain"
)

// MinMaxTokens is the smallest accepted bound. Any single rune encodes into
// at most four byte-level tokens, so hard splits always make progress.
const MinMaxTokens = 4

type Options struct {
	MaxTokens      int
	StripCitations bool
}

type Chunker struct {
	counter TokenCounter
	opts    Options
}

func New(counter TokenCounter, opts Options) (*Chunker, error) {
	if counter == nil {
		return nil, fmt.Errorf("token counter is nil")
	}

	if opts.MaxTokens < MinMaxTokens {
		return nil, fmt.Errorf("max tokens %d is below %d", opts.MaxTokens, MinMaxTokens)
	}

	return &Chunker{counter: counter, opts: opts}, nil
}

func (c *Chunker) Counter() TokenCounter {
	return c.counter
}

func (c *Chunker) MaxTokens() int {
	return c.opts.MaxTokens
}

// WithMaxTokens returns a chunker sharing the counter with a different bound.
func (c *Chunker) WithMaxTokens(maxTokens int) (*Chunker, error) {
	opts := c.opts
	opts.MaxTokens = maxTokens

	return New(c.counter, opts)
}

// Chunks prepares a lazy sequence over doc. It fails with
// domain.ErrEmptyDocument when nothing is left after normalization.
func (c *Chunker) Chunks(doc *domain.Document) (*Sequence, error) {
	text := Normalize(doc.Text(), c.opts.StripCitations)
	if text == "" {
		return nil, &domain.ChunkingError{Kind: domain.ChunkingEmptyDocument}
	}

	return &Sequence{
		doc:     doc,
		text:    text,
		max:     c.opts.MaxTokens,
		counter: c.counter,
	}, nil
}

// Sequence yields chunks in document order. It is consumed once.
type Sequence struct {
	doc     *domain.Document
	text    string
	pos     int
	max     int
	counter TokenCounter

	current    string
	queue      []domain.Chunk
	index      int
	done       bool
	hardSplits int
}

// Text is the normalized document text the chunks are cut from.
func (s *Sequence) Text() string {
	return s.text
}

// HardSplits reports how many chunks so far were cut inside a sentence.
func (s *Sequence) HardSplits() int {
	return s.hardSplits
}

func (s *Sequence) Next() (domain.Chunk, bool) {
	for len(s.queue) == 0 {
		if s.done {
			return domain.Chunk{}, false
		}
		s.advance()
	}

	c := s.queue[0]
	s.queue = s.queue[1:]

	return c, true
}

func (s *Sequence) All() iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		for {
			c, ok := s.Next()
			if !ok || !yield(c) {
				return
			}
		}
	}
}

func (s *Sequence) advance() {
	sentence, ok := s.nextSentence()
	if !ok {
		s.flush()
		s.done = true

		return
	}

	if s.counter.Count(s.current+sentence) <= s.max {
		s.current += sentence
		return
	}

	s.flush()

	if s.counter.Count(sentence) <= s.max {
		s.current = sentence
		return
	}

	s.hardSplit(sentence)
}

func (s *Sequence) flush() {
	if s.current == "" {
		return
	}

	s.emit(s.current, false)
	s.current = ""
}

func (s *Sequence) emit(text string, hardSplit bool) {
	s.queue = append(s.queue, domain.Chunk{
		Doc:        s.doc,
		Index:      s.index,
		Text:       text,
		TokenCount: s.counter.Count(text),
		HardSplit:  hardSplit,
	})
	s.index++

	if hardSplit {
		s.hardSplits++
	}
}

func (s *Sequence) hardSplit(sentence string) {
	rest := sentence
	for rest != "" {
		piece := s.counter.Truncate(rest, s.max)

		if piece != rest {
			if cut := strings.LastIndexByte(piece, ' '); cut > 0 {
				piece = piece[:cut+1]
			}
		}

		for piece != "" && s.counter.Count(piece) > s.max {
			_, size := utf8.DecodeLastRuneInString(piece)
			piece = piece[:len(piece)-size]
		}

		if piece == "" {
			_, size := utf8.DecodeRuneInString(rest)
			piece = rest[:size]
		}

		s.emit(piece, true)
		rest = rest[len(piece):]
	}
}

// nextSentence returns the next sentence including its terminator and the
// single space that follows it.
func (s *Sequence) nextSentence() (string, bool) {
	if s.pos >= len(s.text) {
		return "", false
	}

	start := s.pos
	end := sentenceEnd(s.text, start)
	s.pos = end

	return s.text[start:end], true
}

func sentenceEnd(text string, start int) int {
	for i := start; i < len(text); i++ {
		if !isTerminator(text[i]) {
			continue
		}

		j := i + 1
		for j < len(text) && (isTerminator(text[j]) || isCloser(text[j])) {
			j++
		}

		if j == len(text) {
			return j
		}

		if text[j] == ' ' {
			return j + 1
		}
	}

	return len(text)
}

func isTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func isCloser(b byte) bool {
	return b == '"' || b == '\'' || b == ')' || b == ']'
}

// Collect drains a sequence into a slice.
func Collect(seq *Sequence) []domain.Chunk {
	var chunks []domain.Chunk
	for c := range seq.All() {
		chunks = append(chunks, c)
	}

	return chunks
}
