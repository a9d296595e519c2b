package notify

import (
	"context"
	"strconv"
	"strings"

	"github.com/Megii/CarCareFunctions/utils"
)

// Title heads every notification sent to the app.
const Title = "CarCare"

// Tag kinds let the app group notifications by what triggered them.
const (
	KindVoice  = 0
	KindInvite = 1
)

// Error codes reported by the delivery provider for tokens that will never
// succeed again.
const (
	CodeInvalidToken  = "messaging/invalid-registration-token"
	CodeNotRegistered = "messaging/registration-token-not-registered"
)

// CodeInvalidArgument is a rejected payload; the token may still be valid.
const CodeInvalidArgument = "messaging/invalid-argument"

type Payload struct {
	Title       string
	Body        string
	Tag         string
	ClickAction string
	Data        map[string]string
}

// Recipient is a device token together with the store node it was read from.
type Recipient struct {
	Token string
	Path  string
}

// Outcome is the delivery result for one token. Code is empty on success.
type Outcome struct {
	Token string
	Code  string
}

func (o Outcome) Success() bool {
	return o.Code == ""
}

var permanentCodes = []string{CodeInvalidToken, CodeNotRegistered}

func (o Outcome) Permanent() bool {
	return utils.Contains(o.Code, permanentCodes)
}

// Transport delivers one payload to a batch of tokens and reports one
// outcome per token, in token order.
type Transport interface {
	Send(ctx context.Context, tokens []string, p *Payload) ([]Outcome, error)
}

// Tag builds the client side grouping key "kind;part;part...".
func Tag(kind int, parts ...string) string {
	return strings.Join(append([]string{strconv.Itoa(kind)}, parts...), ";")
}
