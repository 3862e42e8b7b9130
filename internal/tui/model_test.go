package tui

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fyrsmithlabs/reqtrace/internal/boundary"
	"github.com/fyrsmithlabs/reqtrace/internal/rum"
	"github.com/fyrsmithlabs/reqtrace/internal/submission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTraceparent = "00-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa-bbbbbbbbbbbbbbbb-01"

type fakeSubmitter struct {
	final submission.State
	err   error

	mu    sync.Mutex
	forms []submission.Form
}

func (f *fakeSubmitter) Submit(_ context.Context, form submission.Form, onState func(submission.State)) (submission.State, error) {
	f.mu.Lock()
	f.forms = append(f.forms, form)
	f.mu.Unlock()
	if f.err != nil {
		return submission.Idle(), f.err
	}
	onState(submission.State{Kind: submission.KindSubmitting, Traceparent: testTraceparent})
	onState(f.final)
	return f.final, nil
}

type fakeReporter struct {
	errs []error
	ctxs []rum.Context
}

func (r *fakeReporter) ReportError(_ context.Context, err error, c rum.Context) {
	r.errs = append(r.errs, err)
	r.ctxs = append(r.ctxs, c)
}

func newTestModel(s Submitter, r rum.Reporter) Model {
	return NewModel(context.Background(), s, r, "http://localhost:9090/api/requests")
}

func send(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

// drain feeds cmd's messages back into m until the submission finishes.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for i := 0; cmd != nil && i < 10; i++ {
		msg := cmd()
		if msg == nil {
			break
		}
		m, cmd = send(t, m, msg)
	}
	return m
}

func TestNewModel(t *testing.T) {
	m := newTestModel(&fakeSubmitter{}, &fakeReporter{})

	form := m.Form()
	assert.Equal(t, submission.OperationCreate, form.Operation)
	assert.Equal(t, submission.PriorityNormal, form.Priority)
	assert.False(t, form.IncludeDebugMetadata)
	assert.Equal(t, submission.KindIdle, m.State().Kind)
	assert.False(t, m.canSubmit())
	assert.NotNil(t, m.Init())
}

func TestView_ValidationMessageUntilNameEntered(t *testing.T) {
	m := newTestModel(&fakeSubmitter{}, &fakeReporter{})
	assert.Contains(t, m.View(), submission.MsgRequestNameRequired)

	m = typeText(t, m, "My request")

	assert.Equal(t, "My request", m.Form().RequestName)
	assert.True(t, m.canSubmit())
	assert.NotContains(t, m.View(), submission.MsgRequestNameRequired)
}

func TestSubmit_DisabledWhileInvalid(t *testing.T) {
	sub := &fakeSubmitter{}
	m := newTestModel(sub, &fakeReporter{})

	_, cmd := send(t, m, key(tea.KeyEnter))

	assert.Nil(t, cmd)
	assert.Empty(t, sub.forms)
}

func TestSubmit_Success(t *testing.T) {
	sub := &fakeSubmitter{final: submission.State{
		Kind: submission.KindSuccess, Traceparent: testTraceparent, Status: 201,
	}}
	m := newTestModel(sub, &fakeReporter{})
	m = typeText(t, m, "My request")

	m, cmd := send(t, m, key(tea.KeyEnter))
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), SubmittingLabel)
	assert.False(t, m.canSubmit())

	m = drain(t, m, cmd)

	assert.Equal(t, submission.KindSuccess, m.State().Kind)
	view := m.View()
	assert.Contains(t, view, "Success")
	assert.Contains(t, view, testTraceparent)
	assert.NotContains(t, view, SubmittingLabel)
	require.Len(t, sub.forms, 1)
	assert.Equal(t, "My request", sub.forms[0].RequestName)
}

func TestSubmit_FailedStatus(t *testing.T) {
	sub := &fakeSubmitter{final: submission.State{
		Kind: submission.KindFailed, Traceparent: testTraceparent, Status: 500,
		Message: "Request failed (500).",
	}}
	m := newTestModel(sub, &fakeReporter{})
	m = typeText(t, m, "My request")

	m, cmd := send(t, m, key(tea.KeyEnter))
	m = drain(t, m, cmd)

	view := m.View()
	assert.Contains(t, view, "Error (HTTP 500)")
	assert.Contains(t, view, "Request failed (500).")
	assert.Contains(t, view, testTraceparent)
	assert.True(t, m.canSubmit())
}

func TestSubmit_Refused(t *testing.T) {
	sub := &fakeSubmitter{err: submission.ErrInFlight}
	m := newTestModel(sub, &fakeReporter{})
	m = typeText(t, m, "My request")

	m, cmd := send(t, m, key(tea.KeyEnter))
	m = drain(t, m, cmd)

	assert.Equal(t, submission.KindIdle, m.State().Kind)
	assert.Contains(t, m.View(), submission.ErrInFlight.Error())
}

func TestFieldNavigation(t *testing.T) {
	m := newTestModel(&fakeSubmitter{}, &fakeReporter{})

	m, _ = send(t, m, key(tea.KeyTab))
	m, _ = send(t, m, key(tea.KeyRight))
	assert.Equal(t, submission.OperationUpdate, m.Form().Operation)
	m, _ = send(t, m, key(tea.KeyLeft))
	m, _ = send(t, m, key(tea.KeyLeft))
	assert.Equal(t, submission.OperationDelete, m.Form().Operation)

	m, _ = send(t, m, key(tea.KeyTab))
	m, _ = send(t, m, key(tea.KeyRight))
	assert.Equal(t, submission.PriorityHigh, m.Form().Priority)

	m, _ = send(t, m, key(tea.KeyTab))
	m, _ = send(t, m, key(tea.KeySpace))
	assert.True(t, m.Form().IncludeDebugMetadata)

	m, _ = send(t, m, key(tea.KeyTab))
	m = typeText(t, m, "see ticket")
	assert.Equal(t, "see ticket", m.Form().Notes)

	m, _ = send(t, m, key(tea.KeyShiftTab))
	assert.Equal(t, fieldDebug, m.focus)
}

func TestQuit(t *testing.T) {
	m := newTestModel(&fakeSubmitter{}, &fakeReporter{})
	m, cmd := send(t, m, key(tea.KeyCtrlC))
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
	assert.Empty(t, m.View())
}

func TestUpdate_PanicRendersFallback(t *testing.T) {
	reporter := &fakeReporter{}
	m := newTestModel(&fakeSubmitter{}, reporter)
	m.operation = len(submission.Operations) + 5

	m, cmd := send(t, m, key(tea.KeyEnter))

	assert.Nil(t, cmd)
	require.NotNil(t, m.Crashed())
	assert.Len(t, m.Crashed().ErrorID, 16)

	view := m.View()
	assert.Contains(t, view, boundary.FallbackMessage)
	assert.Contains(t, view, m.Crashed().ErrorID)

	require.Len(t, reporter.errs, 1)
	assert.Equal(t, BoundaryName, reporter.ctxs[0]["boundary"])
	assert.Equal(t, m.Crashed().ErrorID, reporter.ctxs[0]["errorId"])

	// Further events are ignored and not reported again.
	m, cmd = send(t, m, key(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.Len(t, reporter.errs, 1)

	_, cmd = send(t, m, key(tea.KeyEsc))
	assert.NotNil(t, cmd)
}

func TestWaitFor_ClosedChannel(t *testing.T) {
	ch := make(chan tea.Msg)
	close(ch)
	assert.Nil(t, waitFor(ch)())
	assert.Nil(t, waitFor(nil))
}
