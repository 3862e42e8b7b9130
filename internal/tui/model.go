// Package tui is the interactive terminal request form.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fyrsmithlabs/reqtrace/internal/boundary"
	"github.com/fyrsmithlabs/reqtrace/internal/rum"
	"github.com/fyrsmithlabs/reqtrace/internal/submission"
)

// BoundaryName identifies the form in reported panics.
const BoundaryName = "RequestForm"

// SubmittingLabel replaces the submit label while a request is outstanding.
const SubmittingLabel = "Submitting…"

type field int

const (
	fieldName field = iota
	fieldOperation
	fieldPriority
	fieldDebug
	fieldNotes
	fieldSubmit
	fieldCount
)

// Submitter sends a form and reports state transitions.
type Submitter interface {
	Submit(ctx context.Context, f submission.Form, onState func(submission.State)) (submission.State, error)
}

// stateMsg delivers a submission state and the channel the next one arrives on.
type stateMsg struct {
	state submission.State
	next  <-chan tea.Msg
}

// doneMsg ends a submission. err is set only when the submitter refused the form.
type doneMsg struct {
	state submission.State
	err   error
}

// Model is the bubbletea form model.
type Model struct {
	ctx       context.Context
	submitter Submitter
	reporter  rum.Reporter
	endpoint  string

	name  textinput.Model
	notes textarea.Model

	operation int
	priority  int
	debug     bool

	focus   field
	state   submission.State
	pending bool
	refused error

	crash    *boundary.PanicError
	quitting bool
}

// NewModel creates the form. reporter receives panics recovered while
// handling events.
func NewModel(ctx context.Context, s Submitter, reporter rum.Reporter, endpoint string) Model {
	name := textinput.New()
	name.Placeholder = "e.g. rotate staging keys"
	name.CharLimit = 200
	name.Focus()

	notes := textarea.New()
	notes.Placeholder = "Optional notes"
	notes.ShowLineNumbers = false
	notes.SetHeight(3)

	defaults := submission.NewForm()
	return Model{
		ctx:       ctx,
		submitter: s,
		reporter:  reporter,
		endpoint:  endpoint,
		name:      name,
		notes:     notes,
		operation: indexOf(submission.Operations, defaults.Operation),
		priority:  indexOf(submission.Priorities, defaults.Priority),
		state:     submission.Idle(),
	}
}

func indexOf[T comparable](xs []T, v T) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return 0
}

// Form returns the current field values.
func (m Model) Form() submission.Form {
	return submission.Form{
		RequestName:          m.name.Value(),
		Operation:            submission.Operations[m.operation],
		Priority:             submission.Priorities[m.priority],
		IncludeDebugMetadata: m.debug,
		Notes:                m.notes.Value(),
	}
}

// State returns the current submission state.
func (m Model) State() submission.State { return m.state }

// Crashed returns the recovered panic, if any.
func (m Model) Crashed() *boundary.PanicError { return m.crash }

func (m Model) busy() bool { return m.pending || m.state.Busy() }

func (m Model) canSubmit() bool {
	return !m.pending && submission.CanSubmit(m.Form(), m.state)
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles msg inside a panic boundary. After a panic only quit keys
// are handled and the fallback is rendered.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.crash != nil {
		if k, ok := msg.(tea.KeyMsg); ok && isQuit(k) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	next, cmd := m, tea.Cmd(nil)
	err := boundary.Guard(m.ctx, m.reporter, BoundaryName, func() error {
		next, cmd = m.update(msg)
		return nil
	})
	var pe *boundary.PanicError
	if errors.As(err, &pe) {
		m.crash = pe
		return m, nil
	}
	return next, cmd
}

func isQuit(k tea.KeyMsg) bool {
	switch k.String() {
	case "ctrl+c", "esc":
		return true
	}
	return false
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case stateMsg:
		m.state = msg.state
		return m, waitFor(msg.next)

	case doneMsg:
		m.pending = false
		m.refused = msg.err
		if msg.err == nil {
			m.state = msg.state
		}
		return m, nil
	}

	return m.updateFocused(msg)
}

func (m Model) handleKey(k tea.KeyMsg) (Model, tea.Cmd) {
	if isQuit(k) {
		m.quitting = true
		return m, tea.Quit
	}

	switch k.String() {
	case "tab", "down":
		if k.String() == "down" && m.focus == fieldNotes {
			break
		}
		return m.setFocus((m.focus + 1) % fieldCount), nil
	case "shift+tab", "up":
		if k.String() == "up" && m.focus == fieldNotes {
			break
		}
		return m.setFocus((m.focus + fieldCount - 1) % fieldCount), nil
	}

	if m.busy() {
		return m, nil
	}

	switch m.focus {
	case fieldOperation:
		m.operation = cycle(m.operation, len(submission.Operations), k.String())
		return m, nil
	case fieldPriority:
		m.priority = cycle(m.priority, len(submission.Priorities), k.String())
		return m, nil
	case fieldDebug:
		if k.String() == " " || k.String() == "enter" {
			m.debug = !m.debug
		}
		return m, nil
	case fieldSubmit:
		if k.String() == "enter" || k.String() == " " {
			return m.submit()
		}
		return m, nil
	case fieldName:
		if k.String() == "enter" {
			return m.submit()
		}
	}

	return m.updateFocused(k)
}

func cycle(i, n int, key string) int {
	switch key {
	case "left", "h":
		return (i + n - 1) % n
	case "right", "l", " ":
		return (i + 1) % n
	}
	return i
}

func (m Model) setFocus(f field) Model {
	m.focus = f
	m.name.Blur()
	m.notes.Blur()
	switch f {
	case fieldName:
		m.name.Focus()
	case fieldNotes:
		m.notes.Focus()
	}
	return m
}

func (m Model) updateFocused(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case fieldName:
		m.name, cmd = m.name.Update(msg)
	case fieldNotes:
		m.notes, cmd = m.notes.Update(msg)
	}
	return m, cmd
}

func (m Model) submit() (Model, tea.Cmd) {
	if !m.canSubmit() {
		return m, nil
	}
	m.pending = true
	m.refused = nil
	return m, submitCmd(m.ctx, m.submitter, m.Form())
}

// submitCmd runs the submission in the background. Each state reported by
// the submitter becomes a stateMsg; the final result becomes a doneMsg.
func submitCmd(ctx context.Context, s Submitter, f submission.Form) tea.Cmd {
	return func() tea.Msg {
		events := make(chan tea.Msg, 4)
		go func() {
			defer close(events)
			st, err := s.Submit(ctx, f, func(st submission.State) {
				events <- stateMsg{state: st, next: events}
			})
			events <- doneMsg{state: st, err: err}
		}()
		return <-events
	}
}

func waitFor(events <-chan tea.Msg) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

// View renders the form, or the fallback after a panic.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.crash != nil {
		return containerStyle.Render(
			errorStyle.Render(boundary.FallbackMessage) + "\n\n" +
				dimStyle.Render(m.crash.Hint()),
		)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("New request"))
	b.WriteString("\n")

	form := m.Form()
	errs := form.Validate()

	b.WriteString(m.label(fieldName, "Request name") + "\n")
	b.WriteString(m.name.View() + "\n")
	if msg, ok := errs[submission.FieldRequestName]; ok {
		b.WriteString(alertStyle.Render(msg) + "\n")
	}
	b.WriteString("\n")

	b.WriteString(m.label(fieldOperation, "Operation type") + "  ")
	b.WriteString(choices(submission.Operations, m.operation, "< ", " >") + "\n\n")

	b.WriteString(m.label(fieldPriority, "Priority") + "  ")
	b.WriteString(choices(submission.Priorities, m.priority, "(•) ", "") + "\n\n")

	box := "[ ]"
	if m.debug {
		box = "[x]"
	}
	b.WriteString(m.label(fieldDebug, box+" Include debug metadata") + "\n\n")

	b.WriteString(m.label(fieldNotes, "Notes") + "\n")
	b.WriteString(m.notes.View() + "\n\n")

	b.WriteString(m.button() + "\n")

	if panel := m.statusPanel(); panel != "" {
		b.WriteString("\n" + panel + "\n")
	}

	b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("endpoint %s · tab next field · ←/→ change · esc quit", m.endpoint)))
	return containerStyle.Render(b.String())
}

func (m Model) label(f field, text string) string {
	if m.focus == f {
		return focusedLabelStyle.Render(text)
	}
	return labelStyle.Render(text)
}

func choices[T ~string](xs []T, selected int, prefix, suffix string) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		if i == selected {
			parts[i] = monoStyle.Render(prefix + string(x) + suffix)
		} else {
			parts[i] = dimStyle.Render(string(x))
		}
	}
	return strings.Join(parts, "  ")
}

func (m Model) button() string {
	label := "Submit"
	if m.busy() {
		label = SubmittingLabel
	}
	style := buttonStyle
	if !m.canSubmit() {
		style = disabledButtonStyle
	}
	if m.focus == fieldSubmit {
		label = "› " + label
	}
	return style.Render(label)
}

func (m Model) statusPanel() string {
	var lines []string
	switch m.state.Kind {
	case submission.KindSuccess:
		lines = append(lines, successStyle.Render(fmt.Sprintf("Success (HTTP %d)", m.state.Status)))
	case submission.KindFailed:
		head := "Error"
		if m.state.Status != 0 {
			head = fmt.Sprintf("Error (HTTP %d)", m.state.Status)
		}
		lines = append(lines, errorStyle.Render(head), alertStyle.Render(m.state.Message))
	}
	if m.refused != nil {
		lines = append(lines, alertStyle.Render(m.refused.Error()))
	}
	if m.state.Traceparent != "" {
		lines = append(lines, dimStyle.Render("traceparent ")+monoStyle.Render(m.state.Traceparent))
	}
	return strings.Join(lines, "\n")
}
