package ws

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/saker-ai/vps-client/internal/protocol"
	"github.com/saker-ai/vps-client/pkg/vps"
)

// ErrEmptyText is returned by Ask for blank input.
var ErrEmptyText = errors.New("ask text is empty")

// Engine is the part of *vps.Engine the bridge drives.
type Engine interface {
	NewSession(opts ...vps.SessionOption) *vps.Session
	Stats() vps.Stats
}

// Ask sends req.Text as one utterance and waits until the backend finishes
// the turn. When ctx ends first the session is canceled and the partial
// result is returned with Canceled set. A failed turn returns the
// collected response together with the session error.
func Ask(ctx context.Context, engine Engine, req protocol.AskRequest) (protocol.AskResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return protocol.AskResponse{}, ErrEmptyText
	}

	t := newTurn()
	s := engine.NewSession(
		vps.WithMuted(req.Muted),
		vps.WithObserver(t),
		vps.WithDispatcher(vps.InlineDispatcher),
	)
	s.SendText(text)

	select {
	case <-t.done:
	case <-ctx.Done():
		s.Cancel()
		<-t.done
	}

	resp, err := t.result()
	resp.SessionID = s.ID()
	return resp, err
}

// turn collects the replies of one session. finished arrives on every
// observer interface; DialogFinished ends the turn.
type turn struct {
	mu   sync.Mutex
	resp protocol.AskResponse
	err  error
	done chan struct{}
	once sync.Once
}

func newTurn() *turn {
	return &turn{
		resp: protocol.AskResponse{
			Transcripts: []string{},
			Replies:     []string{},
			Payloads:    []string{},
		},
		done: make(chan struct{}),
	}
}

func (t *turn) result() (protocol.AskResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resp, t.err
}

func (t *turn) RecognitionPartialResult(_ *vps.Session, text string) {
	t.mu.Lock()
	t.resp.Transcripts = append(t.resp.Transcripts, text)
	t.mu.Unlock()
}

func (t *turn) RecognitionFinished(*vps.Session, bool) {}

func (t *turn) RecognitionError(*vps.Session, error) {}

func (t *turn) DialogText(_ *vps.Session, text string) {
	t.mu.Lock()
	t.resp.Replies = append(t.resp.Replies, text)
	t.mu.Unlock()
}

func (t *turn) DialogPayload(_ *vps.Session, payload string) {
	t.mu.Lock()
	t.resp.Payloads = append(t.resp.Payloads, payload)
	t.mu.Unlock()
}

func (t *turn) DialogFinished(_ *vps.Session, canceled bool) {
	t.mu.Lock()
	t.resp.Canceled = canceled
	t.mu.Unlock()
	t.once.Do(func() { close(t.done) })
}

func (t *turn) DialogError(_ *vps.Session, err error) {
	t.mu.Lock()
	t.err = err
	t.resp.Error = err.Error()
	t.mu.Unlock()
}

func (t *turn) VocalizationVoice(_ *vps.Session, data []byte) {
	t.mu.Lock()
	t.resp.VoiceBytes += len(data)
	t.mu.Unlock()
}

func (t *turn) VocalizationFinished(*vps.Session, bool) {}

func (t *turn) VocalizationError(*vps.Session, error) {}
