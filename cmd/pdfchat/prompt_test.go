package main

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestPrompter_Line(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("first\r\nsecond"), &out)

	got, err := p.Line("> ")
	if err != nil || got != "first" {
		t.Fatalf("Line() = %q, %v, want %q", got, err, "first")
	}
	got, err = p.Line("")
	if err != nil || got != "second" {
		t.Fatalf("Line() = %q, %v, want %q", got, err, "second")
	}
	if _, err := p.Line(""); err != io.EOF {
		t.Fatalf("Line() at end error = %v, want io.EOF", err)
	}
	if out.String() != "> " {
		t.Errorf("prompt output = %q, want %q", out.String(), "> ")
	}
}

func TestPrompter_Password_NotTerminal(t *testing.T) {
	p := newPrompter(strings.NewReader("s3cret\n"), io.Discard)

	got, err := p.Password("Password: ")
	if err != nil {
		t.Fatalf("Password() error = %v", err)
	}
	if got != "s3cret" {
		t.Errorf("Password() = %q, want %q", got, "s3cret")
	}
}

func TestPrompter_Confirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			p := newPrompter(strings.NewReader(tt.input), &out)
			if got := p.Confirm("Delete this PDF?"); got != tt.want {
				t.Errorf("Confirm() = %v, want %v", got, tt.want)
			}
			if !strings.Contains(out.String(), "Delete this PDF? [y/N]") {
				t.Errorf("prompt = %q", out.String())
			}
		})
	}
}

func TestLoginNotice_PrintsOnce(t *testing.T) {
	var out bytes.Buffer
	n := &loginNotice{out: &out}

	n.ToLogin()
	n.ToLogin()

	if got := strings.Count(out.String(), SessionExpiredText); got != 1 {
		t.Errorf("notice printed %d times, want 1", got)
	}
}
