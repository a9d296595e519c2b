// Package events maps realtime database write triggers onto the component
// that handles them.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Megii/CarCareFunctions/groups"
	"go.uber.org/zap"
)

var ErrUnknownPath = errors.New("no handler for path")

type Kind int

const (
	MessageWrite Kind = iota
	VoiceWrite
	CoordinateWrite
	InviteAccepted
	InviteSent
)

var kindNames = [...]string{"message", "voice", "coords", "invite-accepted", "invite-sent"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is a routed trigger: what happened and the path parameters it
// happened under.
type Event struct {
	Kind   Kind
	Params map[string]string
}

type route struct {
	kind    Kind
	pattern []string
}

var routes = []route{
	{MessageWrite, []string{"messages", "{ts}"}},
	{VoiceWrite, []string{"voices", "{ts}"}},
	{CoordinateWrite, []string{"users", "{userId}", "coords"}},
	{InviteAccepted, []string{"groups", "{g}", "invited", "{m}", "wasAccepted"}},
	{InviteSent, []string{"groups", "{g}", "invited", "{m}", "wasSend"}},
}

// Route resolves a trigger resource, either a bare database path or a full
// projects/_/instances/<db>/refs/<path> resource name.
func Route(resource string) (Event, error) {
	path := resource
	if i := strings.Index(path, "/refs/"); i >= 0 && strings.HasPrefix(path, "projects/") {
		path = path[i+len("/refs/"):]
	}

	segs := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	for _, r := range routes {
		if params, ok := match(r.pattern, segs); ok {
			return Event{Kind: r.kind, Params: params}, nil
		}
	}
	return Event{}, fmt.Errorf("%w: %q", ErrUnknownPath, resource)
}

func match(pattern, segs []string) (map[string]string, bool) {
	if len(pattern) != len(segs) {
		return nil, false
	}
	params := make(map[string]string)
	for i, p := range pattern {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			params[p[1:len(p)-1]] = segs[i]
			continue
		}
		if p != segs[i] {
			return nil, false
		}
	}
	return params, true
}

type NearbyMaintainer interface {
	OnCoordinateWrite(ctx context.Context, userID string, cleared bool) error
}

type GroupCoordinator interface {
	OnInviteAccepted(ctx context.Context, groupID, memberID string) (groups.Result, error)
	OnInviteSent(ctx context.Context, groupID, invitedID string) (groups.Result, error)
}

type MessageNotifier interface {
	OnMessageWrite(ctx context.Context, ts string) error
	OnVoiceWrite(ctx context.Context, ts string) error
}

// Handler dispatches routed events to the components.
type Handler struct {
	Nearby   NearbyMaintainer
	Groups   GroupCoordinator
	Messages MessageNotifier
}

// Handle routes resource and runs its component. delta is the value written
// at the trigger path; coordinate writes only use it to tell a removal apart,
// the position itself is read from the store.
func (h *Handler) Handle(ctx context.Context, resource string, delta json.RawMessage) error {
	ev, err := Route(resource)
	if err != nil {
		return err
	}
	zap.S().Debugw("handling event", "kind", ev.Kind, "params", ev.Params)

	switch ev.Kind {
	case MessageWrite:
		return h.Messages.OnMessageWrite(ctx, ev.Params["ts"])
	case VoiceWrite:
		return h.Messages.OnVoiceWrite(ctx, ev.Params["ts"])
	case CoordinateWrite:
		return h.Nearby.OnCoordinateWrite(ctx, ev.Params["userId"], isNull(delta))
	case InviteAccepted:
		_, err := h.Groups.OnInviteAccepted(ctx, ev.Params["g"], ev.Params["m"])
		return err
	case InviteSent:
		_, err := h.Groups.OnInviteSent(ctx, ev.Params["g"], ev.Params["m"])
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnknownPath, resource)
}

// isNull reports whether the written value removed the node. A missing delta
// is not a removal.
func isNull(delta json.RawMessage) bool {
	return strings.TrimSpace(string(delta)) == "null"
}
