package groups

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Megii/CarCareFunctions/notify"
	"github.com/Megii/CarCareFunctions/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// InviteBody is the text of the notification sent to an invited user.
const InviteBody = "Zaproszenie do grupy"

type Dispatcher interface {
	Dispatch(ctx context.Context, rs []notify.Recipient, p *notify.Payload) ([]notify.Outcome, error)
}

// Coordinator grows group member lists from invitation flags.
type Coordinator struct {
	store       store.Store
	dispatcher  Dispatcher
	capacity    int
	clickAction string
}

func NewCoordinator(s store.Store, d Dispatcher, capacity int, clickAction string) *Coordinator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Coordinator{store: s, dispatcher: d, capacity: capacity, clickAction: clickAction}
}

// load reads the group and the candidate's profile concurrently.
func (c *Coordinator) load(ctx context.Context, groupID, userID string) (*Group, *profile, error) {
	var (
		g Group
		p profile
	)
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := c.store.Get(ctx, store.Join("groups", groupID), &g); err != nil {
			return fmt.Errorf("reading group %s: %w", groupID, err)
		}
		return nil
	})
	eg.Go(func() error {
		if err := c.store.Get(ctx, store.Join("users", userID), &p); err != nil {
			return fmt.Errorf("reading user %s: %w", userID, err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return &g, &p, nil
}

func snapshot(id string, p *profile, accepted bool) Member {
	return Member{
		ID:          id,
		Model:       p.Model,
		Nr:          p.Nr,
		Token:       p.Token,
		WasAccepted: &accepted,
	}
}

// OnInviteAccepted appends memberID to the group once its invitation is
// accepted and the group has room. It does not check whether memberID is
// already a member; an accepted invite that was sent through OnInviteSent
// ends up listed twice.
func (c *Coordinator) OnInviteAccepted(ctx context.Context, groupID, memberID string) (Result, error) {
	g, p, err := c.load(ctx, groupID, memberID)
	if err != nil {
		return Result{}, err
	}

	var res Result
	switch {
	case !g.exists():
		res = skipped(ReasonGroupMissing)
	case !g.Invited[memberID].WasAccepted:
		res = skipped(ReasonNotAccepted)
	case len(g.Members) >= c.capacity:
		res = skipped(ReasonGroupFull)
	default:
		res = applied()
	}
	if res.Status == Skipped {
		zap.S().Infow("invite acceptance skipped", "group", groupID, "member", memberID, "reason", res.Reason)
		return res, nil
	}

	members := append(g.Members, snapshot(memberID, p, true))
	if err := c.store.Set(ctx, store.Join("groups", groupID, "members"), members); err != nil {
		return Result{}, fmt.Errorf("writing members of %s: %w", groupID, err)
	}

	zap.S().Infow("member added", "group", groupID, "member", memberID, "members", len(members))
	return res, nil
}

// OnInviteSent records a pending member for invitedID, marks the invitation
// as sent and notifies the invited user. A second call for the same
// invitation does nothing.
func (c *Coordinator) OnInviteSent(ctx context.Context, groupID, invitedID string) (Result, error) {
	g, p, err := c.load(ctx, groupID, invitedID)
	if err != nil {
		return Result{}, err
	}

	var res Result
	switch {
	case !g.exists():
		res = skipped(ReasonGroupMissing)
	case g.Invited[invitedID].WasSend:
		res = skipped(ReasonAlreadySent)
	case len(g.Members) >= c.capacity:
		res = skipped(ReasonGroupFull)
	case g.hasMember(invitedID):
		res = skipped(ReasonAlreadyMember)
	default:
		res = applied()
	}
	if res.Status == Skipped {
		zap.S().Infow("invite send skipped", "group", groupID, "invited", invitedID, "reason", res.Reason)
		return res, nil
	}

	members := append(g.Members, snapshot(invitedID, p, false))
	if err := c.store.Update(ctx, store.Join("groups", groupID), map[string]interface{}{
		"members": members,
		store.Join("invited", invitedID, "wasSend"): true,
	}); err != nil {
		return Result{}, fmt.Errorf("writing invite of %s to %s: %w", invitedID, groupID, err)
	}

	if _, err := c.dispatcher.Dispatch(ctx, c.recipients(invitedID, p), c.invitePayload(groupID, g.Owner, invitedID)); err != nil {
		return res, fmt.Errorf("notifying %s of invite to %s: %w", invitedID, groupID, err)
	}

	zap.S().Infow("invite sent", "group", groupID, "invited", invitedID, "members", len(members))
	return res, nil
}

func (c *Coordinator) recipients(userID string, p *profile) []notify.Recipient {
	if p.Token == "" {
		return nil
	}
	return []notify.Recipient{{Token: p.Token, Path: store.Join("users", userID, "token")}}
}

func (c *Coordinator) invitePayload(groupID, owner, invitedID string) *notify.Payload {
	tag := notify.Tag(notify.KindInvite, groupID, owner, invitedID)
	return &notify.Payload{
		Title:       notify.Title,
		Body:        InviteBody,
		Tag:         tag,
		ClickAction: c.clickAction,
		Data: map[string]string{
			"kind":    strconv.Itoa(notify.KindInvite),
			"group":   groupID,
			"owner":   owner,
			"invited": invitedID,
			"tag":     tag,
		},
	}
}
