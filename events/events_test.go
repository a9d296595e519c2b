package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Megii/CarCareFunctions/groups"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoute(t *testing.T) {
	cases := []struct {
		resource string
		kind     Kind
		params   map[string]string
	}{
		{"messages/1700", MessageWrite, map[string]string{"ts": "1700"}},
		{"/voices/1800", VoiceWrite, map[string]string{"ts": "1800"}},
		{"projects/_/instances/carcare/refs/users/u1/coords", CoordinateWrite, map[string]string{"userId": "u1"}},
		{"groups/g1/invited/m1/wasAccepted", InviteAccepted, map[string]string{"g": "g1", "m": "m1"}},
		{"projects/_/instances/carcare-eu/refs/groups/g1/invited/m1/wasSend", InviteSent, map[string]string{"g": "g1", "m": "m1"}},
	}
	for _, c := range cases {
		t.Run(c.resource, func(t *testing.T) {
			ev, err := Route(c.resource)
			require.NoError(t, err)
			assert.Equal(t, c.kind, ev.Kind)
			assert.Equal(t, c.params, ev.Params)
		})
	}
}

func TestRouteUnknown(t *testing.T) {
	for _, r := range []string{"", "users/u1", "users/u1/token", "messages/1/to", "groups/g1/invited/m1"} {
		_, err := Route(r)
		assert.ErrorIs(t, err, ErrUnknownPath, r)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "coords", CoordinateWrite.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}

type recorder struct {
	calls   []string
	cleared []bool
	err     error
}

func (r *recorder) OnCoordinateWrite(_ context.Context, userID string, cleared bool) error {
	r.calls = append(r.calls, "coords:"+userID)
	r.cleared = append(r.cleared, cleared)
	return r.err
}

func (r *recorder) OnInviteAccepted(_ context.Context, g, m string) (groups.Result, error) {
	r.calls = append(r.calls, "accepted:"+g+"/"+m)
	return groups.Result{Status: groups.Applied}, r.err
}

func (r *recorder) OnInviteSent(_ context.Context, g, m string) (groups.Result, error) {
	r.calls = append(r.calls, "sent:"+g+"/"+m)
	return groups.Result{Status: groups.Skipped, Reason: groups.ReasonAlreadySent}, r.err
}

func (r *recorder) OnMessageWrite(_ context.Context, ts string) error {
	r.calls = append(r.calls, "message:"+ts)
	return r.err
}

func (r *recorder) OnVoiceWrite(_ context.Context, ts string) error {
	r.calls = append(r.calls, "voice:"+ts)
	return r.err
}

func newHandler(r *recorder) *Handler {
	return &Handler{Nearby: r, Groups: r, Messages: r}
}

func TestHandleDispatches(t *testing.T) {
	ctx := context.Background()
	r := &recorder{}
	h := newHandler(r)

	require.NoError(t, h.Handle(ctx, "messages/1", nil))
	require.NoError(t, h.Handle(ctx, "voices/2", nil))
	require.NoError(t, h.Handle(ctx, "groups/g/invited/m/wasAccepted", json.RawMessage(`true`)))
	require.NoError(t, h.Handle(ctx, "groups/g/invited/m/wasSend", json.RawMessage(`true`)))

	assert.Equal(t, []string{"message:1", "voice:2", "accepted:g/m", "sent:g/m"}, r.calls)
}

func TestHandleCoords(t *testing.T) {
	ctx := context.Background()
	r := &recorder{}
	h := newHandler(r)

	for _, delta := range []string{`{"lat":52.23,"lon":21.01}`, `{"lat":52.23}`, `{"lat":null}`, `"north"`, ` null `} {
		require.NoError(t, h.Handle(ctx, "users/u1/coords", json.RawMessage(delta)))
	}
	require.NoError(t, h.Handle(ctx, "users/u1/coords", nil))

	assert.Equal(t, []bool{false, false, false, false, true, false}, r.cleared)
}

func TestHandlePropagatesErrors(t *testing.T) {
	r := &recorder{err: errors.New("store down")}
	h := newHandler(r)
	assert.ErrorIs(t, h.Handle(context.Background(), "messages/1", nil), r.err)
	assert.ErrorIs(t, h.Handle(context.Background(), "groups/g/invited/m/wasSend", nil), r.err)
}

func TestHandleUnknownPath(t *testing.T) {
	r := &recorder{}
	assert.ErrorIs(t, newHandler(r).Handle(context.Background(), "cars/1", nil), ErrUnknownPath)
	assert.Empty(t, r.calls)
}
