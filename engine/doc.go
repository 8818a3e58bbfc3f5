// Package engine manages the per-turn invocations of a generative UI agent.
//
// An Engine ties four pieces together:
//   - a session.Store holding the conversation history
//   - an agent.Agent producing the event trace of one turn
//   - an orchestrator.Orchestrator rendering that trace into a ui.Sink
//   - a CallbackManager with before/after/error hooks
//
// Invocations are bounded by Config.MaxConcurrentInvocations and can be
// cancelled individually with StopInvocation. A turn is appended to the
// session only after its result resolved successfully, so failed or stopped
// turns leave the history untouched.
package engine
