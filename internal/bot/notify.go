package bot

import (
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Notifier sends best-effort direct messages. Delivery failures (closed DMs,
// user left the guild) are logged and swallowed: notifications never affect
// the outcome of a committed operation.
type Notifier struct {
	session *discordgo.Session
	timeout time.Duration
}

func NewNotifier(session *discordgo.Session, timeout time.Duration) *Notifier {
	return &Notifier{session: session, timeout: timeout}
}

func (n *Notifier) DirectMessage(userID, text string) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ch, err := n.session.UserChannelCreate(userID)
		if err != nil {
			log.WithError(err).WithField("user_id", userID).Warn("open DM channel failed")
			return
		}
		if _, err := n.session.ChannelMessageSend(ch.ID, text); err != nil {
			log.WithError(err).WithField("user_id", userID).Warn("send DM failed")
		}
	}()

	select {
	case <-done:
	case <-time.After(n.timeout):
		log.WithField("user_id", userID).Warn("DM delivery timed out")
	}
}
