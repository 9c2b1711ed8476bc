package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// SessionExpiredText is printed when the backend rejects the stored credential.
const SessionExpiredText = `Session expired. Run "pdfchat login".`

// prompter reads answers from the command's input. One prompter must be
// shared per command so buffered input is not lost between prompts.
type prompter struct {
	in   *bufio.Reader
	file *os.File // set when input is a real file, for password masking
	out  io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok {
		p.file = f
	}
	return p
}

// Line prints label and returns the next input line without its newline.
// io.EOF is returned only when no input was read at all.
func (p *prompter) Line(label string) (string, error) {
	if label != "" {
		fmt.Fprint(p.out, label)
	}
	line, err := p.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Password reads a secret without echo when input is a terminal.
func (p *prompter) Password(label string) (string, error) {
	if p.file == nil || !term.IsTerminal(int(p.file.Fd())) {
		return p.Line(label)
	}
	fmt.Fprint(p.out, label)
	b, err := term.ReadPassword(int(p.file.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

// Confirm asks a y/N question. Anything but an explicit yes is a refusal.
func (p *prompter) Confirm(prompt string) bool {
	answer, err := p.Line(prompt + " [y/N] ")
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// alwaysConfirm approves every prompt. Used with --yes.
type alwaysConfirm struct{}

func (alwaysConfirm) Confirm(string) bool { return true }

// loginNotice tells the user to log in again. A command prints it at most once
// even when several in-flight requests are rejected.
type loginNotice struct {
	out  io.Writer
	once sync.Once
}

func (n *loginNotice) ToLogin() {
	n.once.Do(func() {
		fmt.Fprintln(n.out, errorStyle.Render(SessionExpiredText))
	})
}
