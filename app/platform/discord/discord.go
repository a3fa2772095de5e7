// Package discord implements the platform client on top of discordgo.
package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"newsherald/app/platform"
	"newsherald/app/render"
)

var _ platform.Client = (*Client)(nil)

type Client struct {
	session *discordgo.Session
}

// New opens a Discord session for the given bot token. The gateway
// connection is not opened; the client only uses the REST API.
func New(token string) (*Client, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return &Client{session: session}, nil
}

func (c *Client) FetchGuild(ctx context.Context, guildID string) error {
	_, err := c.session.Guild(guildID, discordgo.WithContext(ctx))
	return wrap(err)
}

func (c *Client) FetchChannel(ctx context.Context, channelID string) error {
	_, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	return wrap(err)
}

func (c *Client) SendMessage(ctx context.Context, channelID string, msg *render.Message) (string, error) {
	sent, err := c.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: buildEmbeds(msg),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", wrap(err)
	}
	return sent.ID, nil
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID string, msg *render.Message) error {
	edit := discordgo.NewMessageEdit(channelID, messageID).SetEmbeds(buildEmbeds(msg))
	_, err := c.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return wrap(err)
}

// wrap maps Discord REST error codes onto the platform sentinels so the
// dispatcher can tell terminal destination failures from transient ones.
func wrap(err error) error {
	if err == nil {
		return nil
	}

	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Message == nil {
		return err
	}

	switch restErr.Message.Code {
	case discordgo.ErrCodeMissingPermissions:
		return fmt.Errorf("%w: %v", platform.ErrMissingPermissions, err)
	case discordgo.ErrCodeUnknownChannel:
		return fmt.Errorf("%w: %v", platform.ErrUnknownChannel, err)
	case discordgo.ErrCodeUnknownGuild:
		return fmt.Errorf("%w: %v", platform.ErrUnknownGuild, err)
	case discordgo.ErrCodeMissingAccess:
		return fmt.Errorf("%w: %v", platform.ErrMissingAccess, err)
	case discordgo.ErrCodeUnknownMessage:
		return fmt.Errorf("%w: %v", platform.ErrUnknownMessage, err)
	}
	return err
}

// Discord caps an embed description at 4096 characters and a message at 10
// embeds. The renderer budget is platform-agnostic, so the translation clamps
// to these limits.
const (
	maxDescriptionChars = 4096
	maxEmbeds           = 10
)

func buildEmbeds(msg *render.Message) []*discordgo.MessageEmbed {
	main := &discordgo.MessageEmbed{Color: msg.AccentColor}
	var description string
	var galleries []string

	for _, b := range msg.Blocks {
		switch b.Kind {
		case render.BlockLabel:
			main.Author = &discordgo.MessageEmbedAuthor{Name: b.Text}
		case render.BlockTitle:
			main.Title = b.Text
			main.URL = b.URL
		case render.BlockBanner:
			main.Image = &discordgo.MessageEmbedImage{URL: b.URL}
		case render.BlockText:
			if description != "" {
				description += "\n\n"
			}
			description += b.Text
		case render.BlockGallery:
			galleries = append(galleries, b.Images...)
		case render.BlockSeparator:
			// paragraph break only; Discord has no separator element
		case render.BlockFooter:
			main.Timestamp = b.Timestamp.Format("2006-01-02T15:04:05Z07:00")
		}
	}

	main.Description = clamp(description, maxDescriptionChars)

	embeds := []*discordgo.MessageEmbed{main}
	for _, img := range galleries {
		if len(embeds) >= maxEmbeds {
			break
		}
		if main.Image == nil {
			main.Image = &discordgo.MessageEmbedImage{URL: img}
			continue
		}
		// Embeds sharing the main URL are grouped into one gallery view.
		embeds = append(embeds, &discordgo.MessageEmbed{
			URL:   main.URL,
			Color: msg.AccentColor,
			Image: &discordgo.MessageEmbedImage{URL: img},
		})
	}
	return embeds
}

func clamp(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
