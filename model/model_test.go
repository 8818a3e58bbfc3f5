package model

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, respCh <-chan Response, errCh <-chan error) ([]Response, error) {
	t.Helper()
	var out []Response
	for r := range respCh {
		out = append(out, r)
	}
	return out, <-errCh
}

func TestMockModel_Streaming(t *testing.T) {
	m := NewMockModel("mock")
	m.AddResponse("hi", "hello there friend")

	respCh, errCh := m.Generate(context.Background(), Request{Messages: []Message{UserMessage("hi")}, Stream: true})
	resps, err := collect(t, respCh, errCh)
	require.NoError(t, err)
	require.Len(t, resps, 4)

	var sb strings.Builder
	for _, r := range resps[:3] {
		assert.True(t, r.Partial)
		sb.WriteString(r.Text)
	}
	assert.Equal(t, "hello there friend", sb.String())
	assert.False(t, resps[3].Partial)
	assert.Equal(t, "hello there friend", resps[3].Text)
	assert.Equal(t, "stop", resps[3].FinishReason)
}

func TestMockModel_DefaultResponse(t *testing.T) {
	m := NewMockModel("mock")
	respCh, errCh := m.Generate(context.Background(), Request{Messages: []Message{UserMessage("ping")}})
	resps, err := collect(t, respCh, errCh)
	require.NoError(t, err)
	require.Len(t, resps, 1)
	assert.Equal(t, "Mock response to: ping", resps[0].Text)
	assert.Equal(t, "mock", m.Info().Provider)
}

func TestMockModel_NoMessages(t *testing.T) {
	respCh, errCh := NewMockModel("mock").Generate(context.Background(), Request{})
	_, err := collect(t, respCh, errCh)
	assert.Error(t, err)
}
