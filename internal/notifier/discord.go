package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// channelSender is the part of *discordgo.Session the notifier uses.
type channelSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type DiscordNotifier struct {
	session   channelSender
	channelID string
}

func NewDiscordNotifier(session *discordgo.Session, channelID string) *DiscordNotifier {
	n := &DiscordNotifier{channelID: channelID}
	if session != nil {
		n.session = session
	}
	return n
}

func (n *DiscordNotifier) Notify(ctx context.Context, event Event) error {
	if n.session == nil {
		return fmt.Errorf("discord session is nil")
	}
	if n.channelID == "" {
		return fmt.Errorf("discord channel ID is empty")
	}

	_, err := n.session.ChannelMessageSend(n.channelID, discordMessage(event), discordgo.WithContext(ctx))
	return err
}

func discordMessage(event Event) string {
	var b strings.Builder
	switch event.Kind {
	case ApplicationSubmitted:
		b.WriteString("📝 **New Application**")
	case ApplicationApproved:
		b.WriteString("✅ **Application Approved**")
	case ApplicationRejected:
		b.WriteString("❌ **Application Rejected**")
	case WorkshopPublished:
		b.WriteString("🎉 **Workshop Published**")
	case WorkshopCancelled:
		b.WriteString("🚫 **Workshop Cancelled**")
	default:
		b.WriteString("**" + string(event.Kind) + "**")
	}

	fmt.Fprintf(&b, "\n**Workshop:** %s", event.Workshop.Title)
	if event.Workshop.Category != "" {
		fmt.Fprintf(&b, " (%s)", event.Workshop.Category)
	}
	if event.Master != nil {
		fmt.Fprintf(&b, "\n**Master:** %s", event.Master.Name)
	}
	if event.Student != nil {
		fmt.Fprintf(&b, "\n**Student:** %s", event.Student.Name)
	}
	if event.Application != nil {
		fmt.Fprintf(&b, "\n**Status:** %s", event.Application.Status)
	}
	return b.String()
}
