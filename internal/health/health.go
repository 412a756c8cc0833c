package health

import (
	"context"
	"fmt"
	"time"

	"github.com/skybox-dev/skybox/internal/session"
)

// Status is the one-word health of a session.
type Status string

const (
	// StatusHealthy means the sandbox is up and the agent's tmux
	// session is alive.
	StatusHealthy Status = "healthy"
	// StatusNoAgent means the sandbox is up but the agent's tmux
	// session is gone (finished or crashed).
	StatusNoAgent Status = "no-agent"
	// StatusStopped means the sandbox is not running.
	StatusStopped Status = "stopped"
	// StatusUnknown means the probe could not reach the sandbox.
	StatusUnknown Status = "unknown"
)

// Icon returns the single-glyph form used in listings.
func (s Status) Icon() string {
	switch s {
	case StatusHealthy:
		return "●"
	case StatusNoAgent:
		return "◌"
	case StatusStopped:
		return "○"
	default:
		return "?"
	}
}

// AgentProber is implemented by providers that can check whether a
// session's agent process is still alive.
type AgentProber interface {
	AgentRunning(ctx context.Context, id string) (bool, error)
}

// Summary reduces a session to one Status. A nil prober, or a probe
// that fails outright, yields StatusUnknown rather than guessing.
func Summary(ctx context.Context, sess *session.Session, prober AgentProber) Status {
	if sess.Status != session.StatusRunning {
		return StatusStopped
	}
	if prober == nil {
		return StatusUnknown
	}
	alive, err := prober.AgentRunning(ctx, sess.ID)
	if err != nil {
		return StatusUnknown
	}
	if !alive {
		return StatusNoAgent
	}
	return StatusHealthy
}

// Uptime renders how long a running session has been up. Sessions that
// are not running, or predate the started-at column, show "-".
func Uptime(sess *session.Session) string {
	if sess.Status != session.StatusRunning || sess.StartedAt.IsZero() {
		return "-"
	}
	return formatDuration(time.Since(sess.StartedAt))
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}
