// Package platform abstracts the chat platform consumed by the dispatcher.
// The dispatcher only needs send/edit plus distinguishable error kinds; the
// concrete adapter lives in a subpackage.
package platform

import (
	"context"
	"errors"

	"newsherald/app/render"
)

// Error kinds a retry can never fix. Adapters wrap their platform errors
// with one of these sentinels so the dispatcher can classify outcomes with
// errors.Is.
var (
	ErrMissingPermissions = errors.New("missing permissions")
	ErrUnknownChannel     = errors.New("unknown channel")
	ErrUnknownGuild       = errors.New("unknown guild")
	ErrMissingAccess      = errors.New("missing access")
	ErrUnknownMessage     = errors.New("unknown message")
)

type Client interface {
	FetchGuild(ctx context.Context, guildID string) error
	FetchChannel(ctx context.Context, channelID string) error

	// SendMessage delivers a rendered message and returns the platform
	// message id for the posted-message ledger.
	SendMessage(ctx context.Context, channelID string, msg *render.Message) (string, error)

	// EditMessage replaces the content of a previously sent message.
	EditMessage(ctx context.Context, channelID, messageID string, msg *render.Message) error
}

// Permanent reports whether err is one of the terminal destination errors.
func Permanent(err error) bool {
	return errors.Is(err, ErrMissingPermissions) ||
		errors.Is(err, ErrUnknownChannel) ||
		errors.Is(err, ErrUnknownGuild) ||
		errors.Is(err, ErrMissingAccess) ||
		errors.Is(err, ErrUnknownMessage)
}
