// Package session drives one coaching conversation: it injects the workspace
// context into the first student turn, calls the model with the policy prompt
// and a rolling window of turns, and ends on the termination phrase.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/bitcoach/internal/bundle"
	coacherrors "github.com/hpungsan/bitcoach/internal/errors"
	"github.com/hpungsan/bitcoach/internal/logging"
	"github.com/hpungsan/bitcoach/internal/policy"
)

// ClosingMessage is shown when the student ends the session normally.
const ClosingMessage = "You're welcome! Happy coding with your micro:bit."

// UnavailableNotice is shown when the model cannot be reached.
const UnavailableNotice = "The coach is temporarily unavailable. Please try again in a moment."

var errEmptyReply = errors.New("empty reply")

// Role identifies who produced a turn.
type Role string

const (
	RoleStudent Role = "student"
	RoleCoach   Role = "coach"
)

// Turn is one message in the conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// State is the position of a session in its loop.
type State string

const (
	StateAwaitingInput     State = "AWAITING_INPUT"
	StateInjectingContext  State = "INJECTING_CONTEXT"
	StateCallingModel      State = "CALLING_MODEL"
	StateAppendingResponse State = "APPENDING_RESPONSE"
	StateTerminated        State = "TERMINATED"
)

// EndReason records why a session terminated.
type EndReason string

const (
	EndCompleted       EndReason = "completed"        // termination phrase
	EndTransportFailed EndReason = "transport_failed" // model call failed
	EndInputClosed     EndReason = "input_closed"     // host input failed or closed
	EndAbandoned       EndReason = "abandoned"        // host ended the session
)

// Metadata accompanies every model request.
type Metadata struct {
	References []string `json:"references"`
	Files      []string `json:"files"`
}

// Request is what the model sees on each call.
type Request struct {
	SystemPrompt string
	Turns        []Turn
	Metadata     Metadata
}

// Reply is the model's answer.
type Reply struct {
	Text string
}

// Model completes a conversation.
type Model interface {
	Complete(ctx context.Context, req *Request) (*Reply, error)
}

// Host is the chat surface a session talks to.
type Host interface {
	// Input blocks until the student submits a message.
	Input(ctx context.Context) (string, error)
	// Write displays a coach or status message.
	Write(ctx context.Context, text string) error
	// ShowMenu returns the host to its entry menu.
	ShowMenu(ctx context.Context) error
}

// Transcript is the record of a finished session.
type Transcript struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	Reason    EndReason
	Exchanges int    // student messages sent to the model
	Turns     []Turn // turns retained in the window at termination
	Files     []string
}

// Recorder receives the transcript of every terminated session.
type Recorder interface {
	Record(ctx context.Context, t *Transcript) error
}

// Options configure a session.
type Options struct {
	WindowTurns       int
	TerminationPhrase string
	ExampleMaxLines   int
	Recorder          Recorder // optional
}

// Outcome is the result of one Send.
type Outcome struct {
	Reply   string `json:"reply,omitempty"`
	Ended   bool   `json:"ended,omitempty"`
	Message string `json:"message,omitempty"`
}

// Session is a single conversation. Send calls are serialized.
type Session struct {
	mu sync.Mutex

	id        string
	opts      Options
	prompt    policy.Prompt
	bundle    *bundle.Bundle
	model     Model
	log       *logrus.Entry
	startedAt time.Time

	turns     []Turn
	injected  bool
	state     State
	exchanges int
}

// New creates a session in AWAITING_INPUT.
func New(opts Options, prompt policy.Prompt, b *bundle.Bundle, model Model) (*Session, error) {
	if model == nil {
		return nil, coacherrors.NewInvalidRequest("model is required")
	}
	if b == nil {
		b = bundle.Package(nil, prompt.References())
	}
	if opts.WindowTurns <= 0 {
		opts.WindowTurns = 10
	}
	if strings.TrimSpace(opts.TerminationPhrase) == "" {
		opts.TerminationPhrase = "thanks"
	}

	id, err := newID()
	if err != nil {
		return nil, coacherrors.NewInternal(err)
	}

	return &Session{
		id:        id,
		opts:      opts,
		prompt:    prompt,
		bundle:    b,
		model:     model,
		log:       logging.NewLogger("session").WithField("session_id", id),
		startedAt: time.Now().UTC(),
		state:     StateAwaitingInput,
	}, nil
}

func newID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Files returns the workspace paths attached to the session.
func (s *Session) Files() []string { return s.bundle.Files() }

// TruncatedFiles returns the attached paths whose content was cut.
func (s *Session) TruncatedFiles() []string { return s.bundle.TruncatedFiles() }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Turns returns a copy of the retained history.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.turns...)
}

// IsTermination reports whether input is exactly the termination phrase,
// ignoring case. Surrounding whitespace counts as a difference.
func (s *Session) IsTermination(input string) bool {
	return strings.EqualFold(input, s.opts.TerminationPhrase)
}

// Send processes one student message. The termination phrase ends the
// session without a model call. A model failure ends the session and
// returns a TRANSPORT_FAILED error.
func (s *Session) Send(ctx context.Context, input string) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated {
		return nil, coacherrors.NewSessionEnded(s.id)
	}

	if s.IsTermination(input) {
		s.terminate(ctx, EndCompleted)
		return &Outcome{Ended: true, Message: ClosingMessage}, nil
	}

	text := input
	if !s.injected {
		s.setState(StateInjectingContext)
		text = s.bundle.Inject(input)
		s.injected = true
		if s.log.Logger.IsLevelEnabled(logrus.DebugLevel) && !s.bundle.Empty() {
			s.log.WithFields(logrus.Fields{
				"files":  len(s.bundle.Files()),
				"tokens": bundle.EstimateTokens(s.bundle.Render()),
			}).Debug("workspace context injected")
		}
	}
	s.turns = append(s.turns, Turn{Role: RoleStudent, Text: text})
	s.exchanges++

	s.setState(StateCallingModel)
	reply, err := s.model.Complete(ctx, s.request())
	if err == nil && (reply == nil || strings.TrimSpace(reply.Text) == "") {
		err = coacherrors.NewTransportFailed("", errEmptyReply)
	}
	if err != nil {
		s.log.WithError(err).Warn("model call failed")
		s.terminate(ctx, EndTransportFailed)
		if !coacherrors.Is(err, coacherrors.ErrTransportFailed) {
			err = coacherrors.NewTransportFailed("", err)
		}
		return nil, err
	}

	s.setState(StateAppendingResponse)
	s.turns = append(s.turns, Turn{Role: RoleCoach, Text: reply.Text})
	for len(s.turns) > s.opts.WindowTurns {
		s.turns = append([]Turn(nil), s.turns[2:]...)
	}
	s.lint(reply.Text)

	s.setState(StateAwaitingInput)
	return &Outcome{Reply: reply.Text}, nil
}

// End terminates the session on behalf of the host. Ending an already
// terminated session is a no-op.
func (s *Session) End(ctx context.Context, reason EndReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateTerminated {
		return
	}
	s.terminate(ctx, reason)
}

func (s *Session) request() *Request {
	return &Request{
		SystemPrompt: s.prompt.Text(),
		Turns:        append([]Turn(nil), s.turns...),
		Metadata: Metadata{
			References: s.bundle.References(),
			Files:      s.bundle.Files(),
		},
	}
}

func (s *Session) lint(reply string) {
	res := policy.Lint(reply, policy.LintOptions{
		ExampleMaxLines: s.opts.ExampleMaxLines,
		References:      s.prompt.References(),
	})
	if res.Valid {
		return
	}
	s.log.WithFields(logrus.Fields{
		"oversized_blocks":    res.OversizedBlocks,
		"missing_placeholder": res.MissingPlaceholder,
		"uncited_code":        res.UncitedCode,
	}).Warn("coach reply breaks example policy")
}

func (s *Session) setState(state State) {
	s.log.WithFields(logrus.Fields{"from": s.state, "to": state}).Debug("state")
	s.state = state
}

// terminate must be called with mu held.
func (s *Session) terminate(ctx context.Context, reason EndReason) {
	s.setState(StateTerminated)
	s.log.WithFields(logrus.Fields{"reason": reason, "exchanges": s.exchanges}).Info("session ended")

	if s.opts.Recorder == nil {
		return
	}
	t := &Transcript{
		ID:        s.id,
		StartedAt: s.startedAt,
		EndedAt:   time.Now().UTC(),
		Reason:    reason,
		Exchanges: s.exchanges,
		Turns:     append([]Turn(nil), s.turns...),
		Files:     s.bundle.Files(),
	}
	if err := s.opts.Recorder.Record(context.WithoutCancel(ctx), t); err != nil {
		s.log.WithError(err).Warn("failed to archive transcript")
	}
}
