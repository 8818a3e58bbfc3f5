package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/genui/agent"
	"github.com/hupe1980/genui/internal/testutil"
	"github.com/hupe1980/genui/model"
	"github.com/hupe1980/genui/orchestrator"
	"github.com/hupe1980/genui/tool"
	"github.com/hupe1980/genui/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoArgs struct {
	Text string `json:"text"`
}

func newEngine(t *testing.T, llm model.Model, optFns ...func(o *Options)) *Engine {
	t.Helper()
	echo := tool.NewTyped("echo", "Echo the text", func(_ context.Context, args echoArgs) (any, error) {
		return map[string]any{"echo": args.Text}, nil
	})
	reg, err := tool.NewRegistry(echo)
	require.NoError(t, err)

	components := ui.Components{"echo": ui.StaticComponent("echo-loading", "echo-card")}
	return New(agent.New(llm, reg), orchestrator.New(components), optFns...)
}

func await(t *testing.T, inv *orchestrator.Invocation) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := inv.Result.Await(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	return v, err
}

func TestInvokeSync_TextTurn(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Say("Hello ", "world"))
	e := newEngine(t, llm)

	out, err := e.InvokeSync(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", out.Value)
	assert.NotEmpty(t, out.InvocationID)

	require.Len(t, out.Nodes, 1)
	assert.Equal(t, ui.NodeText, out.Nodes[0].Kind)
	assert.Equal(t, "Hello world", out.Nodes[0].Text)
	assert.True(t, out.Nodes[0].Closed)

	sess, err := e.Sessions().Get("s1")
	require.NoError(t, err)
	assert.Equal(t, []model.Message{model.UserMessage("hi"), model.AssistantMessage("Hello world")}, sess.Messages)
}

func TestInvokeSync_ToolTurn(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Call("echo", `{"text":"ping"}`))
	e := newEngine(t, llm)

	out, err := e.InvokeSync(context.Background(), "s1", "echo ping")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"echo": "ping"}, out.Value)

	require.Len(t, out.Nodes, 1)
	slot := out.Nodes[0]
	assert.Equal(t, ui.NodeSlot, slot.Kind)
	assert.Equal(t, ui.SlotFinal, slot.State)
	require.NotNil(t, slot.Fragment)
	assert.Equal(t, "echo-card", slot.Fragment.Component)
	assert.Equal(t, map[string]any{"echo": "ping"}, slot.Fragment.Props)

	sess, err := e.Sessions().Get("s1")
	require.NoError(t, err)
	require.Len(t, sess.Messages, 3)
	assert.Equal(t, model.RoleUser, sess.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, sess.Messages[1].Role)
	assert.Equal(t, model.RoleTool, sess.Messages[2].Role)
}

func TestInvoke_HistoryCarriesOver(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Say("first"), testutil.Say("second"))
	e := newEngine(t, llm)

	_, err := e.InvokeSync(context.Background(), "s1", "one")
	require.NoError(t, err)
	_, err = e.InvokeSync(context.Background(), "s1", "two")
	require.NoError(t, err)

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, []model.Message{
		model.UserMessage("one"),
		model.AssistantMessage("first"),
		model.UserMessage("two"),
	}, reqs[1].Messages)
}

func TestInvoke_SessionsAreIsolated(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Say("a"), testutil.Say("b"))
	e := newEngine(t, llm)

	_, err := e.InvokeSync(context.Background(), "s1", "one")
	require.NoError(t, err)
	_, err = e.InvokeSync(context.Background(), "s2", "two")
	require.NoError(t, err)

	assert.Equal(t, []model.Message{model.UserMessage("two")}, llm.Requests()[1].Messages)
}

func TestInvoke_ConcurrencyLimitAndStop(t *testing.T) {
	llm := testutil.NewScriptedModel(
		testutil.Turn{Chunks: []string{"thinking"}, Block: true},
		testutil.Say("later"),
	)
	e := newEngine(t, llm, func(o *Options) { o.Config.MaxConcurrentInvocations = 1 })

	inv, err := e.Invoke(context.Background(), "s1", "slow")
	require.NoError(t, err)
	assert.Equal(t, []string{inv.ID}, e.ActiveInvocations())

	_, err = e.Invoke(context.Background(), "s1", "again")
	assert.ErrorIs(t, err, ErrTooManyInvocations)

	require.NoError(t, e.StopInvocation(inv.ID))
	_, err = await(t, inv)
	assert.ErrorIs(t, err, context.Canceled)

	var perr *orchestrator.ProducerError
	assert.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, inv.Sink.Err(), context.Canceled)
	assert.Empty(t, e.ActiveInvocations())

	out, err := e.InvokeSync(context.Background(), "s1", "again")
	require.NoError(t, err)
	assert.Equal(t, "later", out.Value)

	sess, err := e.Sessions().Get("s1")
	require.NoError(t, err)
	assert.Equal(t, []model.Message{model.UserMessage("again"), model.AssistantMessage("later")}, sess.Messages)
}

func TestStopInvocation_Unknown(t *testing.T) {
	e := newEngine(t, testutil.NewScriptedModel())
	assert.ErrorIs(t, e.StopInvocation("nope"), ErrInvocationNotFound)
}

func TestInvoke_EmptyInput(t *testing.T) {
	e := newEngine(t, testutil.NewScriptedModel())
	_, err := e.Invoke(context.Background(), "s1", "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestInvoke_FailureIsNotRecorded(t *testing.T) {
	boom := errors.New("provider down")
	llm := testutil.NewScriptedModel(testutil.Turn{Err: boom})

	var onError atomic.Int32
	e := newEngine(t, llm, func(o *Options) {
		o.Callbacks = append(o.Callbacks, NewFunctionCallback(CallbackOnError, func(_ context.Context, cc *CallbackContext) error {
			assert.ErrorIs(t, cc.Err, boom)
			assert.Equal(t, "s1", cc.SessionID)
			onError.Add(1)
			return nil
		}))
	})

	out, err := e.InvokeSync(context.Background(), "s1", "hi")
	require.ErrorIs(t, err, boom)
	assert.Nil(t, out.Value)
	assert.Equal(t, int32(1), onError.Load())

	sess, err := e.Sessions().Get("s1")
	require.NoError(t, err)
	assert.Empty(t, sess.Messages)
}

func TestInvoke_Callbacks(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Say("ok"))
	denied := errors.New("quota exceeded")

	var after atomic.Value
	e := newEngine(t, llm, func(o *Options) {
		o.Config.MaxConcurrentInvocations = 1
		o.Callbacks = append(o.Callbacks,
			NewFunctionCallback(CallbackBeforeInvocation, func(_ context.Context, cc *CallbackContext) error {
				if cc.SessionID == "blocked" {
					return denied
				}
				return nil
			}),
			NewFunctionCallback(CallbackAfterInvocation, func(_ context.Context, cc *CallbackContext) error {
				after.Store(cc.Value)
				return nil
			}),
		)
	})

	_, err := e.Invoke(context.Background(), "blocked", "hi")
	require.ErrorIs(t, err, denied)

	// the rejected call released its slot
	out, err := e.InvokeSync(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Value)
	assert.Equal(t, "ok", after.Load())
}

func TestCallbackManager_StopsAtFirstError(t *testing.T) {
	cm := NewCallbackManager()
	var calls []string
	cm.RegisterCallback(NewFunctionCallback(CallbackAfterInvocation, func(context.Context, *CallbackContext) error {
		calls = append(calls, "a")
		return errors.New("stop")
	}))
	cm.RegisterCallback(NewFunctionCallback(CallbackAfterInvocation, func(context.Context, *CallbackContext) error {
		calls = append(calls, "b")
		return nil
	}))

	cc := &CallbackContext{}
	err := cm.ExecuteCallbacks(context.Background(), CallbackAfterInvocation, cc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after_invocation callback")
	assert.Equal(t, []string{"a"}, calls)
	assert.Equal(t, CallbackAfterInvocation, cc.CallbackType)
}

func TestLoggingCallback(t *testing.T) {
	var got string
	cb := NewLoggingCallback(CallbackOnError, func(msg string) { got = msg })
	assert.Equal(t, CallbackOnError, cb.Type())

	require.NoError(t, cb.Execute(context.Background(), &CallbackContext{
		SessionID:    "s1",
		InvocationID: "i1",
		Err:          errors.New("boom"),
	}))
	assert.Equal(t, "[on_error] session: s1, invocation: i1, error: boom", got)
}
