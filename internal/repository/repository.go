package repository

import "alignbox_chat/internal/storage"

type Repositories struct {
	Message MessageRepository
}

func NewRepositories(db *storage.Database) *Repositories {
	return &Repositories{
		Message: NewMessageRepository(db),
	}
}
