package render

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Prompter asks questions on a line-oriented terminal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer

	start sync.Once
	lines chan string
	err   error // set before lines is closed
}

// NewPrompter reads answers from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Confirm asks a yes/no question. Anything but y or yes, or a cancelled
// context, declines.
func (p *Prompter) Confirm(ctx context.Context, title, msg string) bool {
	fmt.Fprintf(p.out, "%s: %s [y/N] ", title, msg)
	answer, err := p.readLine(ctx)
	if err != nil {
		fmt.Fprintln(p.out)
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}

// Ask prints prompt and returns the trimmed answer.
func (p *Prompter) Ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	return p.readLine(ctx)
}

// ReadLine returns the next trimmed input line.
func (p *Prompter) ReadLine(ctx context.Context) (string, error) {
	return p.readLine(ctx)
}

// readLine waits for the next line or for ctx to end. A line typed after
// ctx ended is kept for the next call.
func (p *Prompter) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.start.Do(func() {
		p.lines = make(chan string)
		go p.readLoop()
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-p.lines:
		if !ok {
			return "", p.err
		}
		return line, nil
	}
}

// readLoop feeds lines until the input fails. The terminal read itself
// cannot be interrupted, so it lives on its own goroutine.
func (p *Prompter) readLoop() {
	for {
		line, err := p.in.ReadString('\n')
		if line != "" || err == nil {
			p.lines <- strings.TrimSpace(line)
		}
		if err != nil {
			p.err = err
			close(p.lines)
			return
		}
	}
}
