package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/sirupsen/logrus"

	"alignbox_chat/internal/errs"
	"alignbox_chat/internal/logging"
	"alignbox_chat/internal/models"
	"alignbox_chat/internal/repository"
)

// 排入廣播佇列的最長等待時間
const broadcastTimeout = 5 * time.Second

var (
	ErrMessageRequired = fmt.Errorf("%w: message required", errs.ErrInvalidInput)
	ErrMessageTooLong  = fmt.Errorf("%w: message too long", errs.ErrInvalidInput)
)

type MessageService struct {
	messageRepo repository.MessageRepository
	broadcaster Broadcaster
	validate    *validator.Validate
	maxLength   int
	log         *logrus.Logger
}

func NewMessageService(messageRepo repository.MessageRepository, broadcaster Broadcaster, maxLength int, log *logrus.Logger) *MessageService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("notblank", validators.NotBlank)
	if log == nil {
		log = logging.Discard()
	}
	return &MessageService{
		messageRepo: messageRepo,
		broadcaster: broadcaster,
		validate:    validate,
		maxLength:   maxLength,
		log:         log,
	}
}

// ListMessages 回傳完整歷史，依 created_at、id 遞增
func (s *MessageService) ListMessages(ctx context.Context) ([]models.Message, error) {
	return s.messageRepo.FindAll(ctx)
}

// SubmitMessage 驗證並寫入草稿，成功後廣播一次正式紀錄並回傳同一份紀錄。
// 寫入失敗時不廣播；廣播失敗只記錄，不影響回傳結果。
func (s *MessageService) SubmitMessage(ctx context.Context, draft models.Draft) (*models.Message, error) {
	if err := s.validateDraft(draft); err != nil {
		return nil, err
	}

	message := &models.Message{
		UserID:    normalizeLabel(draft.UserID),
		Username:  normalizeLabel(draft.Username),
		Message:   draft.Message,
		Anonymous: draft.Anonymous,
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		s.log.WithFields(logging.BaseFields("message_create")).WithError(err).Error("failed to persist message")
		return nil, err
	}
	s.log.WithFields(logging.MessageFields("message_created", message.ID)).Info("message persisted")

	// 請求取消不應跳過已寫入訊息的廣播
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), broadcastTimeout)
	defer cancel()
	if err := s.broadcaster.Broadcast(bctx, *message, draft.Origin); err != nil {
		s.log.WithFields(logging.MessageFields("broadcast_enqueue", message.ID)).WithError(err).Warn("message persisted but not broadcast")
	}

	return message, nil
}

func (s *MessageService) validateDraft(draft models.Draft) error {
	if err := s.validate.Struct(draft); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return ErrMessageRequired
		}
		return fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
	}
	if s.maxLength > 0 {
		if err := s.validate.Var(draft.Message, fmt.Sprintf("max=%d", s.maxLength)); err != nil {
			return ErrMessageTooLong
		}
	}
	return nil
}

// normalizeLabel 空白的 user_id / username 存成 NULL
func normalizeLabel(label *string) *string {
	if label == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*label)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
