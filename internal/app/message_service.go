package app

import (
	"context"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"messageboard/internal/model"
)

// MessageStore is the persistence surface the service needs. Lookups return
// nil, nil for a missing id.
type MessageStore interface {
	List() ([]model.Message, error)
	GetByID(id uint) (*model.Message, error)
	Create(message *model.Message) error
	Update(id uint, fields map[string]any) (*model.Message, error)
	Delete(id uint) (bool, error)
}

// MessageCache fills are conditional: Set* stores only while the generation
// read before the store lookup is still current. Invalidations bump it.
type MessageCache interface {
	GetMessage(ctx context.Context, id uint) (*model.Message, bool, error)
	MessageGeneration(ctx context.Context, id uint) (int64, error)
	SetMessage(ctx context.Context, message model.Message, gen int64) error
	GetList(ctx context.Context) ([]model.Message, bool, error)
	ListGeneration(ctx context.Context) (int64, error)
	SetList(ctx context.Context, messages []model.Message, gen int64) error
	Invalidate(ctx context.Context, id uint) error
	InvalidateList(ctx context.Context) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event model.MessageEvent) error
}

// CreateMessageInput requires both fields to be present; empty strings are
// accepted.
type CreateMessageInput struct {
	Body     *string `json:"body" validate:"required"`
	Username *string `json:"username" validate:"required"`
}

// UpdateMessageInput carries a partial update. Nil fields are left untouched.
type UpdateMessageInput struct {
	Body     *string `json:"body"`
	Username *string `json:"username"`
}

type MessageService struct {
	store     MessageStore
	cache     MessageCache
	publisher EventPublisher
	validate  *validator.Validate
	log       *slog.Logger
	now       func() time.Time
}

type Option func(*MessageService)

// WithCache enables read-through caching. A nil cache is ignored.
func WithCache(cache MessageCache) Option {
	return func(s *MessageService) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithPublisher enables lifecycle events. A nil publisher is ignored.
func WithPublisher(publisher EventPublisher) Option {
	return func(s *MessageService) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *MessageService) {
		s.now = now
	}
}

func NewMessageService(store MessageStore, log *slog.Logger, opts ...Option) *MessageService {
	if log == nil {
		log = slog.Default()
	}
	s := &MessageService{
		store:    store,
		validate: newValidator(),
		log:      log.With("component", "message_service"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

func (s *MessageService) ListMessages(ctx context.Context) ([]model.Message, error) {
	var (
		gen  int64
		fill bool
	)
	if s.cache != nil {
		cached, hit, err := s.cache.GetList(ctx)
		if err != nil {
			s.log.WarnContext(ctx, "message list cache read failed", "error", err)
		} else if hit {
			return cached, nil
		}
		gen, fill = s.listGeneration(ctx)
	}

	messages, err := s.store.List()
	if err != nil {
		return nil, err
	}
	if fill {
		if err := s.cache.SetList(ctx, messages, gen); err != nil {
			s.log.WarnContext(ctx, "message list cache write failed", "error", err)
		}
	}
	return messages, nil
}

func (s *MessageService) GetMessage(ctx context.Context, id uint) (*model.Message, error) {
	if id == 0 {
		return nil, ErrMessageNotFound
	}
	var (
		gen  int64
		fill bool
	)
	if s.cache != nil {
		cached, hit, err := s.cache.GetMessage(ctx, id)
		if err != nil {
			s.log.WarnContext(ctx, "message cache read failed", "id", id, "error", err)
		} else if hit {
			return cached, nil
		}
		gen, fill = s.messageGeneration(ctx, id)
	}

	message, err := s.store.GetByID(id)
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, ErrMessageNotFound
	}
	if fill {
		if err := s.cache.SetMessage(ctx, *message, gen); err != nil {
			s.log.WarnContext(ctx, "message cache write failed", "id", id, "error", err)
		}
	}
	return message, nil
}

func (s *MessageService) CreateMessage(ctx context.Context, input CreateMessageInput) (*model.Message, error) {
	if err := s.validate.StructCtx(ctx, input); err != nil {
		return nil, newValidationError(err)
	}

	// Both backends store microsecond precision.
	message := &model.Message{
		Body:      *input.Body,
		Username:  *input.Username,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.store.Create(message); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateList(ctx); err != nil {
			s.log.WarnContext(ctx, "message list cache invalidation failed", "error", err)
		}
	}
	s.publish(ctx, model.MessageCreated, *message)
	s.log.DebugContext(ctx, "message created", "id", message.ID)
	return message, nil
}

func (s *MessageService) UpdateMessage(ctx context.Context, id uint, input UpdateMessageInput) (*model.Message, error) {
	if id == 0 {
		return nil, ErrMessageNotFound
	}
	fields := make(map[string]any, 2)
	if input.Body != nil {
		fields["body"] = *input.Body
	}
	if input.Username != nil {
		fields["username"] = *input.Username
	}

	message, err := s.store.Update(id, fields)
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, ErrMessageNotFound
	}
	if len(fields) == 0 {
		return message, nil
	}

	s.invalidate(ctx, id)
	s.publish(ctx, model.MessageUpdated, *message)
	s.log.DebugContext(ctx, "message updated", "id", id, "fields", len(fields))
	return message, nil
}

func (s *MessageService) DeleteMessage(ctx context.Context, id uint) error {
	if id == 0 {
		return ErrMessageNotFound
	}
	message, err := s.store.GetByID(id)
	if err != nil {
		return err
	}
	if message == nil {
		return ErrMessageNotFound
	}

	deleted, err := s.store.Delete(id)
	if err != nil {
		return err
	}
	if !deleted {
		// Removed by a concurrent request between the lookup and the delete.
		return ErrMessageNotFound
	}

	s.invalidate(ctx, id)
	s.publish(ctx, model.MessageDeleted, *message)
	s.log.DebugContext(ctx, "message deleted", "id", id)
	return nil
}

// messageGeneration must run before the store read it guards.
func (s *MessageService) messageGeneration(ctx context.Context, id uint) (int64, bool) {
	gen, err := s.cache.MessageGeneration(ctx, id)
	if err != nil {
		s.log.WarnContext(ctx, "message cache generation read failed", "id", id, "error", err)
		return 0, false
	}
	return gen, true
}

func (s *MessageService) listGeneration(ctx context.Context) (int64, bool) {
	gen, err := s.cache.ListGeneration(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "message list cache generation read failed", "error", err)
		return 0, false
	}
	return gen, true
}

func (s *MessageService) invalidate(ctx context.Context, id uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.log.WarnContext(ctx, "message cache invalidation failed", "id", id, "error", err)
	}
}

// publish logs broker failures instead of returning them; the mutation has
// already committed by the time it runs.
func (s *MessageService) publish(ctx context.Context, eventType model.MessageEventType, message model.Message) {
	if s.publisher == nil {
		return
	}
	event := model.MessageEvent{
		Type:       eventType,
		Message:    message,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WarnContext(ctx, "publish message event failed", "type", eventType, "id", message.ID, "error", err)
	}
}
