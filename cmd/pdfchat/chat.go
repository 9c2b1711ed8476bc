package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"pdfchat/internal/app"
	"pdfchat/internal/pdfchat"

	"github.com/spf13/cobra"
)

const chatHelp = "Type a question. /new starts a new conversation, /wait waits for indexing, /quit exits."

// runChat reads questions line by line until /quit, end of input or the
// command context ends.
func runChat(cmd *cobra.Command, a *app.App) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	p := newPrompter(cmd.InOrStdin(), out)

	unsubscribe := a.Subscribe(func(snap pdfchat.Snapshot) {
		if snap.State == pdfchat.Sending {
			fmt.Fprintln(out, metaStyle.Render("thinking..."))
		}
	})
	defer unsubscribe()

	fmt.Fprintln(out, metaStyle.Render(chatHelp))
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := p.Line(userStyle.Render("> "))
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		switch strings.TrimSpace(line) {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(out, metaStyle.Render(chatHelp))
			continue
		case "/new":
			snap := a.Snapshot()
			if snap.Document == nil {
				renderError(out, pdfchat.ErrNoSelection)
				continue
			}
			if snap, err = a.NewConversation(ctx, snap.Document.FileID); err != nil {
				if done := chatError(out, err); done != nil {
					return done
				}
				continue
			}
			renderTranscript(out, snap)
			continue
		case "/wait":
			snap := a.Snapshot()
			if snap.Document == nil {
				renderError(out, pdfchat.ErrNoSelection)
				continue
			}
			fmt.Fprintln(out, pendingStyle.Render("Waiting for indexing..."))
			if _, err := a.WaitIndexed(ctx, snap.Document.FileID); err != nil {
				if done := chatError(out, err); done != nil {
					return done
				}
				continue
			}
			fmt.Fprintln(out, readyStyle.Render("Ready."))
			continue
		}

		reply, err := a.Ask(ctx, line)
		if err != nil {
			if done := chatError(out, err); done != nil {
				return done
			}
			continue
		}
		renderMessage(out, reply)
	}
}

// chatError reports err and returns it again when the loop cannot continue.
func chatError(out io.Writer, err error) error {
	switch {
	case errors.Is(err, pdfchat.ErrSessionExpired), errors.Is(err, pdfchat.ErrNotAuthenticated):
		return err
	case errors.Is(err, pdfchat.ErrNotReady):
		fmt.Fprintln(out, pendingStyle.Render("This PDF is still being indexed. Type /wait to wait for it."))
	default:
		renderError(out, err)
	}
	return nil
}
