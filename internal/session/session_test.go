package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/bitcoach/internal/bundle"
	coacherrors "github.com/hpungsan/bitcoach/internal/errors"
	"github.com/hpungsan/bitcoach/internal/policy"
	"github.com/hpungsan/bitcoach/internal/workspace"
)

var testRefs = []string{"https://microbit-micropython.readthedocs.io/en/v2-docs/button.html"}

type fakeModel struct {
	requests []*Request
	err      error
	replies  []string
}

func (m *fakeModel) Complete(_ context.Context, req *Request) (*Reply, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.replies) > 0 {
		r := m.replies[0]
		m.replies = m.replies[1:]
		return &Reply{Text: r}, nil
	}
	return &Reply{Text: fmt.Sprintf("reply %d", len(m.requests))}, nil
}

type fakeHost struct {
	inputs   []string
	inputErr error
	written  []string
	menus    int
}

func (h *fakeHost) Input(_ context.Context) (string, error) {
	if len(h.inputs) == 0 {
		if h.inputErr != nil {
			return "", h.inputErr
		}
		return "", io.EOF
	}
	in := h.inputs[0]
	h.inputs = h.inputs[1:]
	return in, nil
}

func (h *fakeHost) Write(_ context.Context, text string) error {
	h.written = append(h.written, text)
	return nil
}

func (h *fakeHost) ShowMenu(_ context.Context) error {
	h.menus++
	return nil
}

type fakeRecorder struct {
	transcripts []*Transcript
}

func (r *fakeRecorder) Record(_ context.Context, t *Transcript) error {
	r.transcripts = append(r.transcripts, t)
	return nil
}

func testBundle() *bundle.Bundle {
	return bundle.Package([]workspace.FileRecord{
		{Path: "main.py", Content: "from microbit import *"},
	}, testRefs)
}

func newTestSession(t *testing.T, b *bundle.Bundle, m Model, opts Options) *Session {
	t.Helper()
	s, err := New(opts, policy.Build(policy.DefaultOptions(testRefs, 5)), b, m)
	require.NoError(t, err)
	return s
}

func TestNew_AssignsIDAndDefaults(t *testing.T) {
	s := newTestSession(t, nil, &fakeModel{}, Options{})

	assert.Len(t, s.ID(), 26)
	assert.Equal(t, StateAwaitingInput, s.State())
	assert.Equal(t, 10, s.opts.WindowTurns)
	assert.Equal(t, "thanks", s.opts.TerminationPhrase)
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := New(Options{}, policy.Build(policy.DefaultOptions(testRefs, 5)), nil, nil)
	assert.True(t, coacherrors.Is(err, coacherrors.ErrInvalidRequest))
}

func TestSend_InjectsContextOnlyIntoFirstTurn(t *testing.T) {
	m := &fakeModel{}
	b := testBundle()
	s := newTestSession(t, b, m, Options{})
	ctx := context.Background()

	_, err := s.Send(ctx, "why does my loop stop?")
	require.NoError(t, err)
	_, err = s.Send(ctx, "ok what next?")
	require.NoError(t, err)

	require.Len(t, m.requests, 2)
	first := m.requests[0].Turns[0].Text
	assert.Equal(t, b.Inject("why does my loop stop?"), first)
	assert.Contains(t, first, bundle.ContextHeader)

	second := m.requests[1].Turns
	require.Len(t, second, 3)
	assert.Equal(t, "ok what next?", second[2].Text)

	injections := 0
	for _, turn := range s.Turns() {
		injections += strings.Count(turn.Text, "### File: main.py")
	}
	assert.Equal(t, 1, injections)
}

func TestSend_EmptyFirstInputStillConsumesInjection(t *testing.T) {
	m := &fakeModel{}
	s := newTestSession(t, testBundle(), m, Options{})
	ctx := context.Background()

	_, err := s.Send(ctx, "")
	require.NoError(t, err)
	_, err = s.Send(ctx, "second")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(m.requests[0].Turns[0].Text, bundle.ContextHeader))
	assert.Equal(t, "second", m.requests[1].Turns[2].Text)
}

func TestSend_NoFilesNoInjection(t *testing.T) {
	m := &fakeModel{}
	s := newTestSession(t, bundle.Package(nil, testRefs), m, Options{})

	_, err := s.Send(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, "hello", m.requests[0].Turns[0].Text)
}

func TestSend_RequestCarriesPromptAndMetadata(t *testing.T) {
	m := &fakeModel{}
	s := newTestSession(t, testBundle(), m, Options{})

	_, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)

	req := m.requests[0]
	assert.Equal(t, s.prompt.Text(), req.SystemPrompt)
	assert.Equal(t, testRefs, req.Metadata.References)
	assert.Equal(t, []string{"main.py"}, req.Metadata.Files)
}

func TestSend_RollingWindowDropsOldestPair(t *testing.T) {
	m := &fakeModel{}
	s := newTestSession(t, testBundle(), m, Options{WindowTurns: 10})
	ctx := context.Background()

	for i := 1; i <= 6; i++ {
		_, err := s.Send(ctx, fmt.Sprintf("q%d", i))
		require.NoError(t, err)
		assert.LessOrEqual(t, len(s.Turns()), 10)
	}

	turns := s.Turns()
	require.Len(t, turns, 10)
	assert.Equal(t, Turn{Role: RoleStudent, Text: "q2"}, turns[0])
	assert.Equal(t, Turn{Role: RoleCoach, Text: "reply 2"}, turns[1])
	assert.Equal(t, Turn{Role: RoleCoach, Text: "reply 6"}, turns[9])

	// The sixth request still saw eleven turns: the window is applied after the reply.
	assert.Len(t, m.requests[5].Turns, 11)
	for _, turn := range turns {
		assert.NotContains(t, turn.Text, bundle.ContextHeader)
	}
}

func TestSend_TerminationPhraseAnyCase(t *testing.T) {
	for _, phrase := range []string{"thanks", "Thanks", "THANKS", "tHaNkS"} {
		t.Run(phrase, func(t *testing.T) {
			m := &fakeModel{}
			rec := &fakeRecorder{}
			s := newTestSession(t, testBundle(), m, Options{Recorder: rec})

			out, err := s.Send(context.Background(), phrase)
			require.NoError(t, err)

			assert.True(t, out.Ended)
			assert.Equal(t, ClosingMessage, out.Message)
			assert.Empty(t, m.requests)
			assert.Equal(t, StateTerminated, s.State())
			require.Len(t, rec.transcripts, 1)
			assert.Equal(t, EndCompleted, rec.transcripts[0].Reason)
		})
	}
}

func TestSend_PhraseInsideSentenceIsNotTermination(t *testing.T) {
	m := &fakeModel{}
	s := newTestSession(t, testBundle(), m, Options{})

	out, err := s.Send(context.Background(), "thanks, but why?")
	require.NoError(t, err)
	assert.False(t, out.Ended)
	assert.Len(t, m.requests, 1)
}

func TestSend_PaddedPhraseIsNotTermination(t *testing.T) {
	for _, phrase := range []string{"  thanks", "thanks\n", "thanks!"} {
		t.Run(phrase, func(t *testing.T) {
			m := &fakeModel{}
			s := newTestSession(t, testBundle(), m, Options{})

			out, err := s.Send(context.Background(), phrase)
			require.NoError(t, err)
			assert.False(t, out.Ended)
			assert.Len(t, m.requests, 1)
		})
	}
}

func TestSend_AfterTermination(t *testing.T) {
	s := newTestSession(t, testBundle(), &fakeModel{}, Options{})
	ctx := context.Background()

	_, err := s.Send(ctx, "thanks")
	require.NoError(t, err)

	_, err = s.Send(ctx, "one more")
	assert.True(t, coacherrors.Is(err, coacherrors.ErrSessionEnded))
}

func TestSend_TransportFailureTerminates(t *testing.T) {
	m := &fakeModel{err: errors.New("connection refused")}
	rec := &fakeRecorder{}
	s := newTestSession(t, testBundle(), m, Options{Recorder: rec})

	out, err := s.Send(context.Background(), "hi")

	assert.Nil(t, out)
	assert.True(t, coacherrors.Is(err, coacherrors.ErrTransportFailed))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, StateTerminated, s.State())
	require.Len(t, rec.transcripts, 1)
	assert.Equal(t, EndTransportFailed, rec.transcripts[0].Reason)
	assert.Equal(t, 1, rec.transcripts[0].Exchanges)
}

func TestSend_EmptyReplyIsTransportFailure(t *testing.T) {
	m := &fakeModel{replies: []string{"   "}}
	s := newTestSession(t, testBundle(), m, Options{})

	_, err := s.Send(context.Background(), "hi")
	assert.True(t, coacherrors.Is(err, coacherrors.ErrTransportFailed))
}

func TestEnd_Idempotent(t *testing.T) {
	rec := &fakeRecorder{}
	s := newTestSession(t, testBundle(), &fakeModel{}, Options{Recorder: rec})
	ctx := context.Background()

	s.End(ctx, EndAbandoned)
	s.End(ctx, EndAbandoned)

	assert.Equal(t, StateTerminated, s.State())
	assert.Len(t, rec.transcripts, 1)
}

func TestRun_ConversationUntilThanks(t *testing.T) {
	m := &fakeModel{}
	host := &fakeHost{inputs: []string{"how do I read button A?", "and B?", "Thanks"}}
	s := newTestSession(t, testBundle(), m, Options{})

	err := Run(context.Background(), s, host)
	require.NoError(t, err)

	assert.Equal(t, []string{"reply 1", "reply 2", ClosingMessage}, host.written)
	assert.Equal(t, 1, host.menus)
	assert.Len(t, m.requests, 2)
}

func TestRun_TransportFailureShowsNotice(t *testing.T) {
	m := &fakeModel{err: errors.New("503")}
	host := &fakeHost{inputs: []string{"hi", "still there?"}}
	s := newTestSession(t, testBundle(), m, Options{})

	err := Run(context.Background(), s, host)

	assert.True(t, coacherrors.Is(err, coacherrors.ErrTransportFailed))
	assert.Equal(t, []string{UnavailableNotice}, host.written)
	assert.NotContains(t, host.written, ClosingMessage)
	assert.Equal(t, 1, host.menus)
	assert.Len(t, m.requests, 1)
	assert.Equal(t, []string{"still there?"}, host.inputs)
}

func TestRun_InputFailureEndsWithoutClosing(t *testing.T) {
	m := &fakeModel{}
	rec := &fakeRecorder{}
	host := &fakeHost{inputs: []string{"hi"}}
	s := newTestSession(t, testBundle(), m, Options{Recorder: rec})

	err := Run(context.Background(), s, host)

	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"reply 1"}, host.written)
	assert.Zero(t, host.menus)
	require.Len(t, rec.transcripts, 1)
	assert.Equal(t, EndInputClosed, rec.transcripts[0].Reason)
	assert.Len(t, rec.transcripts[0].Turns, 2)
}
