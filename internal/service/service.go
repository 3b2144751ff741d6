package service

import (
	"github.com/sirupsen/logrus"

	"alignbox_chat/internal/repository"
	"alignbox_chat/pkg/config"
)

type Services struct {
	MessageService *MessageService
	Hub            *Hub
}

func NewServices(repos *repository.Repositories, cfg *config.Config, log *logrus.Logger) *Services {
	hub := NewHub(NewRegistry(), HubOptions{
		SendQueue:   cfg.Hub.SendQueue,
		EventBuffer: cfg.Hub.EventBuffer,
	}, log)

	messageService := NewMessageService(repos.Message, hub, cfg.Server.MaxMessageLength, log)
	return &Services{
		MessageService: messageService,
		Hub:            hub,
	}
}
