package messages

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Megii/CarCareFunctions/notify"
	"github.com/Megii/CarCareFunctions/store"
	"github.com/Megii/CarCareFunctions/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Notifier turns message and voice clip writes into push notifications.
type Notifier struct {
	store       store.Store
	dispatcher  Dispatcher
	signer      ClipSigner
	clickAction string
}

// NewNotifier builds a Notifier. signer may be nil, in which case voice
// notifications carry no download link.
func NewNotifier(s store.Store, d Dispatcher, signer ClipSigner, clickAction string) *Notifier {
	return &Notifier{store: s, dispatcher: d, signer: signer, clickAction: clickAction}
}

// recipients reads the tokens listed under path. Any node without children
// yields no recipient.
func (n *Notifier) recipients(ctx context.Context, path string) ([]notify.Recipient, error) {
	var node interface{}
	if err := n.store.Get(ctx, path, &node); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	children := make(map[string]interface{})
	switch x := node.(type) {
	case map[string]interface{}:
		children = x
	case []interface{}:
		for i, v := range x {
			children[strconv.Itoa(i)] = v
		}
	}

	rs := make([]notify.Recipient, 0, len(children))
	for _, key := range utils.SortedKeys(children) {
		if tok, ok := children[key].(string); ok && tok != "" {
			rs = append(rs, notify.Recipient{Token: tok, Path: store.Join(path, key)})
		}
	}
	return rs, nil
}

func (n *Notifier) get(ctx context.Context, path string, v interface{}) error {
	if err := n.store.Get(ctx, path, v); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// OnMessageWrite notifies the recipients of messages/{ts} with the message text.
func (n *Notifier) OnMessageWrite(ctx context.Context, ts string) error {
	var (
		to        []notify.Recipient
		from, msg string
	)
	base := store.Join("messages", ts)

	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		to, err = n.recipients(ectx, store.Join(base, "to"))
		return err
	})
	eg.Go(func() error { return n.get(ectx, store.Join(base, "from"), &from) })
	eg.Go(func() error { return n.get(ectx, store.Join(base, "msg"), &msg) })
	if err := eg.Wait(); err != nil {
		return err
	}

	if len(to) == 0 {
		zap.S().Infow("no notification tokens to send to", "message", ts)
		return nil
	}
	zap.S().Debugw("sending message notification", "message", ts, "from", from, "tokens", len(to))

	p := &notify.Payload{Title: notify.Title, Body: msg}
	if _, err := n.dispatcher.Dispatch(ctx, to, p); err != nil {
		return fmt.Errorf("notifying message %s: %w", ts, err)
	}
	return nil
}

// OnVoiceWrite notifies the recipients of voices/{ts} that a clip arrived.
func (n *Notifier) OnVoiceWrite(ctx context.Context, ts string) error {
	var (
		to   []notify.Recipient
		from string
	)
	base := store.Join("voices", ts)

	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		to, err = n.recipients(ectx, store.Join(base, "to"))
		return err
	})
	eg.Go(func() error { return n.get(ectx, store.Join(base, "from"), &from) })
	if err := eg.Wait(); err != nil {
		return err
	}

	if len(to) == 0 {
		zap.S().Infow("no notification tokens to send to", "voice", ts)
		return nil
	}

	var model string
	if from != "" {
		if err := n.get(ctx, store.Join("users", from, "model"), &model); err != nil {
			return err
		}
	}

	if _, err := n.dispatcher.Dispatch(ctx, to, n.voicePayload(ts, model)); err != nil {
		return fmt.Errorf("notifying voice %s: %w", ts, err)
	}
	return nil
}

func (n *Notifier) voicePayload(ts, model string) *notify.Payload {
	tag := notify.Tag(notify.KindVoice, ts, model)
	data := map[string]string{
		"kind":  strconv.Itoa(notify.KindVoice),
		"ts":    ts,
		"model": model,
		"tag":   tag,
	}
	if n.signer != nil {
		url, err := n.signer.SignedURL(ts)
		utils.NonFatal(err, "error signing voice clip url")
		if err == nil {
			data["url"] = url
		}
	}

	return &notify.Payload{
		Title:       notify.Title,
		Body:        VoiceBody,
		Tag:         tag,
		ClickAction: n.clickAction,
		Data:        data,
	}
}
