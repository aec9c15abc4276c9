// Package confirm provides the yes/no decisions the acquisition driver needs
// before it overwrites a populated destination. Interactive and scripted
// policies share one interface so unattended runs never block on stdin.
package confirm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Request describes the destination awaiting a decision.
type Request struct {
	LabName     string
	Reference   string
	Description string
	Destination string
}

// Confirmer decides whether a populated destination may be downloaded into.
type Confirmer interface {
	Confirm(ctx context.Context, req Request) (bool, error)
}

// Func adapts a function to the Confirmer interface.
type Func func(ctx context.Context, req Request) (bool, error)

func (f Func) Confirm(ctx context.Context, req Request) (bool, error) { return f(ctx, req) }

// Always returns a Confirmer that gives the same answer every time.
func Always(answer bool) Confirmer {
	return Func(func(context.Context, Request) (bool, error) { return answer, nil })
}

// Script replays a fixed sequence of answers and declines once exhausted.
type Script struct {
	mu       sync.Mutex
	answers  []bool
	requests []Request
}

// NewScript creates a scripted confirmer.
func NewScript(answers ...bool) *Script {
	return &Script{answers: answers}
}

func (s *Script) Confirm(_ context.Context, req Request) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.answers) == 0 {
		return false, nil
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}

// Requests returns every request seen so far.
func (s *Script) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Prompter asks on out and reads single-line answers from in.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter creates a Prompter.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Confirm prints the overwrite warning and asks whether to continue.
func (p *Prompter) Confirm(ctx context.Context, req Request) (bool, error) {
	fmt.Fprintf(p.out, "   Directory not empty. Files already exist in %s\n", req.Destination)
	return p.Ask(ctx, "   Download anyway? This will add/overwrite files.")
}

// Ask prints question followed by " [y/N]: " and reports whether the answer
// was y or yes. End of input counts as no.
func (p *Prompter) Ask(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(p.out, "%s [y/N]: ", question)

	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	if errors.Is(err, io.EOF) && line == "" {
		fmt.Fprintln(p.out)
	}
	return isYes(line), nil
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
