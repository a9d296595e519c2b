package messages

import (
	"context"

	"github.com/Megii/CarCareFunctions/notify"
)

// VoiceBody is the text of every voice clip notification.
const VoiceBody = "Nowa wiadomość głosowa"

type Dispatcher interface {
	Dispatch(ctx context.Context, rs []notify.Recipient, p *notify.Payload) ([]notify.Outcome, error)
}

// ClipSigner hands out a temporary download link for a stored voice clip.
type ClipSigner interface {
	SignedURL(object string) (string, error)
}
