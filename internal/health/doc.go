// Package health summarizes session liveness for listings and the
// picker.
//
// A session record's stored status only says what the engine last did;
// it cannot say whether the agent inside a running sandbox is still
// alive. Summary combines the record with a live probe of the agent's
// tmux session (providers implement AgentProber) and reduces the answer
// to one of four states:
//
//	StatusHealthy  sandbox up, agent tmux session alive
//	StatusNoAgent  sandbox up, agent gone (finished or crashed)
//	StatusStopped  sandbox not running
//	StatusUnknown  probe unavailable or failed
//
// Unknown is deliberate: a probe that cannot reach the backend must not
// masquerade as "agent dead".
package health
