package discord

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
)

// NewSession creates a bot session for token. The session is not opened.
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, errors.New("discord token is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	// Guild messages carry the delete events; message content is not needed.
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	return session, nil
}

// Run connects the gateway, registers the slash commands once ready and
// dispatches events to handler until ctx ends.
func Run(ctx context.Context, session *discordgo.Session, handler *Handler, ready func()) error {
	if session == nil || handler == nil {
		return errors.New("session and handler are required")
	}
	session.AddHandler(handler.OnInteraction)
	session.AddHandler(handler.OnChannelDelete)
	session.AddHandler(handler.OnMessageDelete)
	session.AddHandler(handler.OnMessageDeleteBulk)
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		if _, err := s.ApplicationCommandBulkOverwrite(r.User.ID, "", Commands()); err != nil {
			log.Printf("register slash commands: %v", err)
		}
		log.Printf("connected as %s", r.User.Username)
		if ready != nil {
			ready()
		}
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Printf("close discord gateway: %v", err)
		}
	}()
	<-ctx.Done()
	return nil
}
