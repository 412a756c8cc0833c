package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/skybox-dev/skybox/internal/cloudapi"
	"github.com/skybox-dev/skybox/internal/errors"
	"github.com/skybox-dev/skybox/internal/health"
	"github.com/skybox-dev/skybox/internal/provider"
	"github.com/skybox-dev/skybox/internal/secret"
	"github.com/skybox-dev/skybox/internal/session"
)

// resolveSession finds a session by name or id. Names win over ids; an
// ambiguous name resolves to its single running session. Unknown keys
// get a closest-match hint.
func resolveSession(ctx context.Context, key string) (*session.Session, error) {
	sessions, err := sky.Store.List(ctx, session.Filter{})
	if err != nil {
		return nil, err
	}

	var byName []*session.Session
	for _, sess := range sessions {
		if sess.Name == key {
			byName = append(byName, sess)
		}
	}
	switch len(byName) {
	case 1:
		return byName[0], nil
	case 0:
	default:
		var running []*session.Session
		for _, sess := range byName {
			if sess.Status == session.StatusRunning {
				running = append(running, sess)
			}
		}
		if len(running) == 1 {
			return running[0], nil
		}
		e := errors.ValidationError(fmt.Sprintf("session name %q is ambiguous", key))
		e.Hint = "use an id instead: " + joinIDs(byName)
		return nil, e
	}

	for _, sess := range sessions {
		if sess.ID == key {
			return sess, nil
		}
	}
	// Container-style unique id prefix.
	var byPrefix []*session.Session
	if len(key) >= 4 {
		for _, sess := range sessions {
			if strings.HasPrefix(sess.ID, key) {
				byPrefix = append(byPrefix, sess)
			}
		}
	}
	if len(byPrefix) == 1 {
		return byPrefix[0], nil
	}

	e := errors.SessionNotFound(key)
	if suggestion := closestName(key, sessions); suggestion != "" {
		e.Hint = fmt.Sprintf("did you mean %q?", suggestion)
	}
	return nil, e
}

// closestName suggests the nearest session name within edit distance 3.
func closestName(key string, sessions []*session.Session) string {
	best, bestDist := "", 4
	for _, sess := range sessions {
		if d := levenshtein.ComputeDistance(key, sess.Name); d < bestDist {
			best, bestDist = sess.Name, d
		}
	}
	return best
}

func joinIDs(sessions []*session.Session) string {
	ids := make([]string, len(sessions))
	for i, sess := range sessions {
		ids[i] = sess.ID
	}
	return strings.Join(ids, ", ")
}

// providerFor returns the backend that owns the session.
func providerFor(sess *session.Session) (provider.Provider, error) {
	return sky.Provider(sess.Provider)
}

// allSessions lists sessions across both backends with stale statuses
// reconciled. A backend that cannot be reached degrades to its stored
// records rather than hiding them.
func allSessions(ctx context.Context) ([]*session.Session, error) {
	stored, err := sky.Store.List(ctx, session.Filter{})
	if err != nil {
		return nil, err
	}

	byTag := make(map[string][]*session.Session)
	for _, sess := range stored {
		byTag[sess.Provider] = append(byTag[sess.Provider], sess)
	}

	var out []*session.Session
	for tag, fallback := range byTag {
		p, err := sky.Provider(tag)
		if err != nil {
			out = append(out, fallback...)
			continue
		}
		listed, err := p.List(ctx)
		if err != nil {
			logWarning("Could not reconcile %s sessions: %v", tag, err)
			out = append(out, fallback...)
			continue
		}
		out = append(out, listed...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	return out, nil
}

// probeHealth returns the agent health and uptime for display.
func probeHealth(ctx context.Context, sess *session.Session) (health.Status, string) {
	p, err := providerFor(sess)
	if err != nil {
		return health.StatusUnknown, health.Uptime(sess)
	}
	prober, _ := p.(health.AgentProber)
	return health.Summary(ctx, sess, prober), health.Uptime(sess)
}

// cloudClient builds a control-plane client from the configured token.
// Returns nil when not authenticated.
func cloudClient() *cloudapi.Client {
	token := sky.Config.APIToken
	if token == "" && sky.Secrets != nil {
		if v, err := sky.Secrets.Get(secret.Service, secret.TokenAccount); err == nil {
			token = v
		}
	}
	if token == "" {
		return nil
	}
	return cloudapi.NewClient(token, cloudapi.WithBaseURL(sky.Config.CloudAPIURL))
}
