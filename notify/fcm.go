package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/messaging"
)

// APNs rejects collapse ids longer than this many bytes.
const maxCollapseID = 64

// FCM delivers payloads through Firebase Cloud Messaging.
type FCM struct {
	client *messaging.Client
}

func NewFCM(client *messaging.Client) *FCM {
	return &FCM{client: client}
}

func (f *FCM) Send(ctx context.Context, tokens []string, p *Payload) ([]Outcome, error) {
	br, err := f.client.SendEachForMulticast(ctx, multicast(tokens, p))
	if err != nil {
		return nil, err
	}
	if len(br.Responses) != len(tokens) {
		return nil, fmt.Errorf("got %d responses for %d tokens", len(br.Responses), len(tokens))
	}

	outcomes := make([]Outcome, len(tokens))
	for i, r := range br.Responses {
		outcomes[i] = Outcome{Token: tokens[i], Code: errorCode(r.Error)}
	}
	return outcomes, nil
}

func multicast(tokens []string, p *Payload) *messaging.MulticastMessage {
	m := &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   p.Data,
		Notification: &messaging.Notification{
			Title: p.Title,
			Body:  p.Body,
		},
	}

	if p.Tag != "" || p.ClickAction != "" {
		m.Android = &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{
				Tag:         p.Tag,
				ClickAction: p.ClickAction,
			},
		}
	}
	if p.Tag != "" {
		m.APNS = &messaging.APNSConfig{
			Headers: map[string]string{"apns-collapse-id": collapseID(p.Tag)},
		}
	}
	return m
}

// collapseID returns tag, or its sha256 hex digest when tag is too long for APNs.
func collapseID(tag string) string {
	if len(tag) <= maxCollapseID {
		return tag
	}
	sum := sha256.Sum256([]byte(tag))
	return hex.EncodeToString(sum[:])
}

type failure int

const (
	failUnknown failure = iota
	failUnregistered
	failInvalidArgument
	failSenderMismatch
	failQuota
	failThirdPartyAuth
	failUnavailable
	failInternal
)

func classify(err error) failure {
	switch {
	case messaging.IsUnregistered(err):
		return failUnregistered
	case messaging.IsInvalidArgument(err):
		return failInvalidArgument
	case messaging.IsSenderIDMismatch(err):
		return failSenderMismatch
	case messaging.IsQuotaExceeded(err):
		return failQuota
	case messaging.IsThirdPartyAuthError(err):
		return failThirdPartyAuth
	case messaging.IsUnavailable(err):
		return failUnavailable
	case messaging.IsInternal(err):
		return failInternal
	default:
		return failUnknown
	}
}

func errorCode(err error) string {
	if err == nil {
		return ""
	}
	return failureCode(classify(err), err.Error())
}

// failureCode maps a send failure onto an outcome code. INVALID_ARGUMENT is
// also returned for malformed payloads, so it only condemns the token when
// the message is about the registration token.
func failureCode(f failure, msg string) string {
	switch f {
	case failUnregistered:
		return CodeNotRegistered
	case failInvalidArgument:
		if strings.Contains(strings.ToLower(msg), "registration token") {
			return CodeInvalidToken
		}
		return CodeInvalidArgument
	case failSenderMismatch:
		return "messaging/mismatched-credential"
	case failQuota:
		return "messaging/message-rate-exceeded"
	case failThirdPartyAuth:
		return "messaging/third-party-auth-error"
	case failUnavailable:
		return "messaging/server-unavailable"
	case failInternal:
		return "messaging/internal-error"
	default:
		return "messaging/unknown-error"
	}
}
