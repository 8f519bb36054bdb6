// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/jeranaias/chatdeck/internal/chat"
	"github.com/jeranaias/chatdeck/internal/export"
	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/settings"
	"github.com/jeranaias/chatdeck/internal/storage"
	"github.com/jeranaias/chatdeck/internal/upload"
)

const chatHelp = `Commands:
  /clear                  Start a new conversation
  /model [id]             Show models or switch the selected model
  /attach [path]          Attach a file to the next message (no path lists pending files)
  /export [format] [dir]  Export the conversation (text, json, html, markdown)
  /save                   Save the conversation to history
  /history                List saved conversations
  /resume <id>            Continue a saved conversation
  /help                   Show this help
  /quit                   Exit (also: exit, quit, Ctrl+D)
`

// =============================================================================
// INPUT
// =============================================================================

// lineSource reads REPL input.
type lineSource interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// linerInput provides line editing and persistent input history.
type linerInput struct {
	line        *liner.State
	historyFile string
}

func newLinerInput(historyFile string) *linerInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	in := &linerInput{line: line, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return in
}

func (l *linerInput) Prompt(prompt string) (string, error) {
	input, err := l.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		l.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves input history with mode 0600 and restores the terminal.
func (l *linerInput) Close() error {
	if err := os.MkdirAll(filepath.Dir(l.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(l.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = l.line.WriteHistory(f)
			f.Close()
		}
	}
	return l.line.Close()
}

// =============================================================================
// SESSION
// =============================================================================

// chatSession is one interactive REPL run.
type chatSession struct {
	app *App
	in  lineSource
	out io.Writer

	pending []upload.File

	mu     sync.Mutex
	cancel context.CancelFunc
}

// HandleChat runs the interactive REPL until the user quits.
func HandleChat(ctx context.Context, app *App, args Args) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	if err := app.WatchSettings(ctx); err != nil {
		app.Log.Warn("settings watch disabled", zap.Error(err))
	}

	dataDir, err := app.Config.DataDir()
	if err != nil {
		return err
	}
	s := &chatSession{
		app: app,
		in:  newLinerInput(filepath.Join(dataDir, "chat_history")),
		out: app.Out,
	}
	defer s.in.Close()

	if args.Resume != "" {
		if err := s.resume(args.Resume); err != nil {
			return err
		}
	}

	// Only interrupts are caught; SIGTERM keeps its default behavior.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	done := make(chan struct{})
	defer func() {
		signal.Stop(sigCh)
		close(done)
	}()
	go s.watchInterrupts(sigCh, done, app.Err)

	if !app.Quiet {
		s.welcome()
	}
	err = s.run(ctx)
	s.goodbye()
	return err
}

// run is the read-eval-print loop.
func (s *chatSession) run(ctx context.Context) error {
	for {
		input, err := s.in.Prompt(PromptStyle.Render("chatdeck> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		switch {
		case input == "":
			continue
		case strings.EqualFold(input, "exit"), strings.EqualFold(input, "quit"):
			return nil
		case strings.HasPrefix(input, "/"):
			quit, err := s.command(ctx, input)
			if err != nil {
				fmt.Fprintf(s.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if quit {
				return nil
			}
		default:
			s.send(ctx, input)
		}
	}
}

// send submits text with any pending attachments and prints the reply.
// Attachments stay pending when the send is rejected or busy.
func (s *chatSession) send(ctx context.Context, text string) {
	sendCtx, cancel := context.WithCancel(ctx)
	s.setCancel(cancel)
	defer func() {
		s.setCancel(nil)
		cancel()
	}()

	res, err := sendWithFiles(sendCtx, s.app.Chat, text, s.pending)
	if res.Status == chat.StatusSucceeded || res.Status == chat.StatusFailed {
		s.pending = nil
	}
	switch res.Status {
	case chat.StatusBusy:
		fmt.Fprintln(s.out, WarningStyle.Render("A request is already in progress."))
	case chat.StatusRejected:
		fmt.Fprintf(s.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
	default:
		if reply, ok := s.app.Conversation.Snapshot().MessageByID(res.AssistantID); ok {
			fmt.Fprintln(s.out)
			s.renderer().Message(s.out, reply)
		}
	}
}

// watchInterrupts cancels the in-flight send on every signal until done is
// closed.
func (s *chatSession) watchInterrupts(sigCh <-chan os.Signal, done <-chan struct{}, w io.Writer) {
	for {
		select {
		case <-done:
			return
		case <-sigCh:
			if s.cancelSend() {
				fmt.Fprintln(w, "\n"+WarningStyle.Render("[Cancelled]"))
			}
		}
	}
}

func (s *chatSession) setCancel(fn context.CancelFunc) {
	s.mu.Lock()
	s.cancel = fn
	s.mu.Unlock()
}

// cancelSend cancels the in-flight send, reporting whether there was one.
func (s *chatSession) cancelSend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	return true
}

func (s *chatSession) renderer() *Renderer {
	return NewRenderer(s.app.View.Get().Theme, renderWidth())
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// command runs a slash command and reports whether the REPL should exit.
func (s *chatSession) command(ctx context.Context, input string) (bool, error) {
	fields := strings.Fields(input)
	name := strings.ToLower(fields[0])
	rest := fields[1:]

	switch name {
	case "/quit", "/exit", "/q":
		return true, nil
	case "/help", "/?":
		fmt.Fprint(s.out, chatHelp)
	case "/clear":
		if !s.app.Chat.Reset() {
			return false, errors.New("cannot clear while a request is in progress")
		}
		s.pending = nil
		fmt.Fprintln(s.out, SuccessStyle.Render("Conversation cleared."))
	case "/model":
		return false, s.model(rest)
	case "/attach":
		return false, s.attach(strings.TrimSpace(strings.TrimPrefix(input, fields[0])))
	case "/export":
		return false, s.export(rest)
	case "/save":
		return false, s.save()
	case "/history":
		metas, err := s.app.History.List()
		if err != nil {
			return false, err
		}
		fmt.Fprintln(s.out, storage.FormatList(metas))
	case "/resume":
		if len(rest) != 1 {
			return false, usagef("usage: /resume <id>")
		}
		return false, s.resume(rest[0])
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}

func (s *chatSession) model(rest []string) error {
	current := s.app.View.Get().SelectedModel
	if len(rest) == 0 {
		writeModelTable(s.out, model.Models(), current.ID)
		return nil
	}

	m, ok := model.ModelByID(rest[0])
	if !ok {
		return fmt.Errorf("unknown model %q", rest[0])
	}
	s.app.PinModel(model.ChatModel{})
	s.app.Settings.Update(settings.Patch{SelectedModel: &m})
	fmt.Fprintf(s.out, "%s %s\n", SuccessStyle.Render("Model:"), m.String())

	if m.APIKeyRequired && s.app.Settings.Get().APIKey(m.Provider) == "" {
		fmt.Fprintln(s.out, WarningStyle.Render(fmt.Sprintf(
			"No API key stored for %s. Run: chatdeck settings key set %s <key>",
			m.Provider.DisplayName(), m.Provider)))
	}
	return nil
}

func (s *chatSession) attach(path string) error {
	if path == "" {
		if len(s.pending) == 0 {
			fmt.Fprintln(s.out, DimStyle.Render("No pending attachments."))
		}
		for _, f := range s.pending {
			fmt.Fprintf(s.out, "  %s (%s, %s)\n", f.Name, f.Type, upload.FormatSize(f.Size))
		}
		return nil
	}
	if s.app.Uploader == nil {
		return upload.ErrNoUploader
	}

	f, err := upload.FileFromPath(path, s.app.Config.Upload.MaxSize)
	if err != nil {
		return err
	}
	if err := s.app.Config.UploadLimits().Validate(f); err != nil {
		return err
	}
	s.pending = append(s.pending, f)
	fmt.Fprintf(s.out, "%s %s (%s)\n", SuccessStyle.Render("Attached"), f.Name, upload.FormatSize(f.Size))
	return nil
}

func (s *chatSession) export(rest []string) error {
	format := export.FormatMarkdown
	dir := "."
	if len(rest) > 0 {
		f, err := export.ParseFormat(rest[0])
		if err != nil {
			return err
		}
		format = f
	}
	if len(rest) > 1 {
		dir = rest[1]
	}

	path, err := export.WriteFile(dir, format, s.app.Conversation.Messages())
	if errors.Is(err, export.ErrNothingToExport) {
		fmt.Fprintln(s.out, DimStyle.Render("Nothing to export."))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s %s\n", SuccessStyle.Render("Exported to"), path)
	return nil
}

func (s *chatSession) save() error {
	msgs := s.app.Conversation.Messages()
	if len(msgs) == 0 {
		fmt.Fprintln(s.out, DimStyle.Render("Nothing to save."))
		return nil
	}
	id := s.app.Chat.ConversationID()
	if err := s.app.History.SaveMessages(id, s.app.View.Get().SelectedModel.ID, msgs); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s %s\n", SuccessStyle.Render("Saved as"), id)
	return nil
}

func (s *chatSession) resume(id string) error {
	conv, err := s.app.History.Load(id)
	if err != nil {
		return &CommandError{Command: "chat", Action: "resume", Err: err}
	}
	if !s.app.Chat.Resume(conv.ID, conv.Messages) {
		return errors.New("cannot resume while a request is in progress")
	}
	s.pending = nil
	fmt.Fprintf(s.out, "%s %s (%d messages)\n\n", SuccessStyle.Render("Resumed"), conv.Summary, len(conv.Messages))
	s.renderer().Transcript(s.out, s.app.Conversation.Messages())
	return nil
}

// =============================================================================
// BANNERS
// =============================================================================

func (s *chatSession) welcome() {
	st := s.app.View.Get()
	fmt.Fprintln(s.out, TitleStyle.Render("chatdeck"))
	fmt.Fprintf(s.out, "%s%s\n", RenderLabel("Model:", 10), ValueStyle.Render(st.SelectedModel.String()))
	if st.SelectedModel.APIKeyRequired && st.APIKey(st.SelectedModel.Provider) == "" {
		fmt.Fprintln(s.out, WarningStyle.Render("No API key stored for "+st.SelectedModel.Provider.DisplayName()+"."))
	}
	fmt.Fprintln(s.out, DimStyle.Render("Type /help for commands, /quit to exit."))
	fmt.Fprintln(s.out)
}

func (s *chatSession) goodbye() {
	if s.app.Quiet {
		return
	}
	n := len(s.app.Conversation.Messages())
	if n > 0 && s.app.View.Get().SaveHistory {
		fmt.Fprintln(s.out, DimStyle.Render(fmt.Sprintf("%d messages saved as %s", n, s.app.Chat.ConversationID())))
	}
}
