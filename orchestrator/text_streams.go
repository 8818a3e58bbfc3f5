package orchestrator

import (
	"errors"
	"strings"

	"github.com/hupe1980/genui/logging"
	"github.com/hupe1980/genui/ui"
)

// textStreams owns one ui.TextStream per run id for the lifetime of a pass.
type textStreams struct {
	sink    *ui.Sink
	logger  logging.Logger
	streams map[string]*ui.TextStream
	order   []string
}

func newTextStreams(sink *ui.Sink, logger logging.Logger) *textStreams {
	return &textStreams{sink: sink, logger: logger, streams: make(map[string]*ui.TextStream)}
}

// ensure returns the stream of runID, appending a new text node to the sink
// on first use only.
func (m *textStreams) ensure(runID string) (*ui.TextStream, error) {
	if ts, ok := m.streams[runID]; ok {
		return ts, nil
	}
	ts, err := m.sink.OpenText()
	if err != nil {
		return nil, err
	}
	m.streams[runID] = ts
	m.order = append(m.order, runID)
	return ts, nil
}

// append adds a token fragment to the stream of runID.
func (m *textStreams) append(runID, fragment string) error {
	ts, err := m.ensure(runID)
	if err != nil {
		return err
	}
	if fragment == "" {
		return nil
	}
	return ts.Append(fragment)
}

// settle routes a complete run result. When the run already streamed a
// prefix of text only the missing suffix is appended. Text that does not
// extend the streamed content is dropped; the streamed text stays as shown.
func (m *textStreams) settle(runID, text string) error {
	ts, ok := m.streams[runID]
	if !ok {
		if text == "" {
			return nil
		}
		return m.append(runID, text)
	}
	streamed := ts.Text()
	if !strings.HasPrefix(text, streamed) {
		m.logger.Warn("orchestrator.text.diverged", "run_id", runID, "streamed_len", len(streamed), "final_len", len(text))
		return nil
	}
	if suffix := text[len(streamed):]; suffix != "" {
		return ts.Append(suffix)
	}
	return nil
}

// closeAll closes every stream still open, each exactly once.
func (m *textStreams) closeAll() error {
	var errs []error
	for _, id := range m.order {
		ts := m.streams[id]
		if ts.Closed() {
			continue
		}
		if err := ts.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *textStreams) len() int { return len(m.order) }
