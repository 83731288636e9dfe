// Package chat keeps local conversation views synchronized with the
// document store: deterministic conversation identity, live message
// subscriptions, sends with media materialization, read receipts and
// translation.
package chat

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/duetapp/duet-sync/internal/docstore"
	"github.com/duetapp/duet-sync/internal/domain"
	"github.com/duetapp/duet-sync/internal/usecase/access"
	"github.com/duetapp/duet-sync/pkg/apperr"
)

// Uploader materializes inline binary payloads into reference URLs.
type Uploader interface {
	Upload(ctx context.Context, ownerScope string, data []byte) (string, error)
}

// Translator is the external text transform collaborator.
type Translator interface {
	Translate(ctx context.Context, text, sourceTag, targetTag string) (string, error)
	SuggestIcebreakers(ctx context.Context, selfHobbies, partnerHobbies []string) ([]string, error)
}

// StatsRecorder is triggered after every send, fire-and-forget.
type StatsRecorder interface {
	OnMessageSent(ctx context.Context, chatID string) (*domain.ConversationStats, error)
}

type Engine struct {
	store      docstore.Store
	uploader   Uploader
	translator Translator
	stats      StatsRecorder
	policy     access.Policy
	validate   *validator.Validate
	log        zerolog.Logger
	now        func() time.Time
}

func NewEngine(
	store docstore.Store,
	uploader Uploader,
	translator Translator,
	stats StatsRecorder,
	policy access.Policy,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		store:      store,
		uploader:   uploader,
		translator: translator,
		stats:      stats,
		policy:     policy,
		validate:   validator.New(),
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

const chatIDSeparator = "_"

// ChatID derives the conversation key from the sorted participant pair,
// so ChatID(a, b) == ChatID(b, a) and either side resolves the same
// conversation without a directory lookup.
func ChatID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + chatIDSeparator + b
}

// GetOrCreateConversation resolves the conversation between two
// participants, creating it lazily on first contact. Two callers racing
// to create the same conversation converge on the same document: the
// store's conditional create turns the loser's write into a re-read.
func (e *Engine) GetOrCreateConversation(ctx context.Context, a, b string) (*domain.Conversation, error) {
	if a == "" || b == "" || a == b {
		return nil, domain.ErrInvalidParticipants
	}
	chatID := ChatID(a, b)

	conv, err := e.getConversation(ctx, chatID)
	if err == nil {
		return conv, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, err
	}

	participants := []string{a, b}
	sort.Strings(participants)
	fresh := &domain.Conversation{
		ID:           chatID,
		Participants: participants,
		CreatedAt:    e.now(),
	}
	err = e.store.Create(ctx, domain.CollectionChats, chatID, fresh)
	if apperr.CodeOf(err) == apperr.CodeAlreadyExists {
		// Lost the first-contact race; the winner's document stands.
		return e.getConversation(ctx, chatID)
	}
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

// GetConversation loads an existing conversation on behalf of caller.
// A conversation the caller may not see reads as not found.
func (e *Engine) GetConversation(ctx context.Context, chatID string, caller *domain.UserProfile) (*domain.Conversation, error) {
	conv, err := e.getConversation(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !e.policy.CanViewChat(conv, caller) {
		return nil, domain.ErrConversationNotFound
	}
	return conv, nil
}

// ListConversations returns the conversations caller may see.
func (e *Engine) ListConversations(ctx context.Context, caller *domain.UserProfile) ([]domain.Conversation, error) {
	docs, err := e.store.Query(ctx, domain.CollectionChats, nil)
	if err != nil {
		return nil, err
	}
	chats := make([]domain.Conversation, 0, len(docs))
	for _, doc := range docs {
		var conv domain.Conversation
		if err := doc.Decode(&conv); err != nil {
			e.log.Warn().Err(err).Str("chat_id", doc.ID).Msg("skipping undecodable conversation")
			continue
		}
		chats = append(chats, conv)
	}
	return e.policy.FilterChats(chats, caller), nil
}

func (e *Engine) getConversation(ctx context.Context, chatID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	if err := e.store.Get(ctx, domain.CollectionChats, chatID, &conv); err != nil {
		if apperr.IsNotFound(err) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// MessageSubscription delivers the full ordered message list on every
// change. After Cancel returns no new snapshot is delivered.
type MessageSubscription struct {
	C <-chan []domain.Message

	inner     *docstore.CollectionSubscription
	cancelled atomic.Bool
}

func (s *MessageSubscription) Cancel() {
	s.cancelled.Store(true)
	s.inner.Cancel()
}

// SubscribeMessages watches a conversation's message sub-collection.
// Every delivered snapshot is sorted ascending by timestamp.
func (e *Engine) SubscribeMessages(ctx context.Context, chatID string) (*MessageSubscription, error) {
	inner, err := e.store.WatchCollection(ctx, domain.MessagesCollection(chatID))
	if err != nil {
		return nil, err
	}

	out := make(chan []domain.Message, 1)
	sub := &MessageSubscription{C: out, inner: inner}

	go func() {
		defer close(out)
		for ev := range inner.C {
			if sub.cancelled.Load() {
				return
			}
			messages := make([]domain.Message, 0, len(ev.Docs))
			for _, doc := range ev.Docs {
				var msg domain.Message
				if err := doc.Decode(&msg); err != nil {
					e.log.Warn().Err(err).Str("chat_id", chatID).Str("message_id", doc.ID).Msg("message snapshot decode failed")
					continue
				}
				messages = append(messages, msg)
			}
			sortMessages(messages)
			select {
			case out <- messages:
			default:
				select {
				case <-out:
				default:
				}
				out <- messages
			}
		}
	}()

	return sub, nil
}

func sortMessages(messages []domain.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].Timestamp.Equal(messages[j].Timestamp) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
}

// SendMessageInput is the send payload. Exactly one payload field must be
// populated for the declared type; ImageData counts as the image payload
// and is materialized through the uploader before anything is persisted.
type SendMessageInput struct {
	ChatID   string             `validate:"required"`
	SenderID string             `validate:"required"`
	Type     domain.MessageType `validate:"required"`

	Text        string
	ImageData   []byte
	ImageURL    string
	StickerURL  string
	PrivateDate *domain.PrivateDate
}

// SendMessage appends a message and updates the conversation's
// denormalized last-message copy. The two writes are separate documents;
// the copy can lag one message for a brief window. The statistics update
// runs fire-and-forget and its failure never fails the send.
func (e *Engine) SendMessage(ctx context.Context, in *SendMessageInput) (*domain.Message, error) {
	if err := e.validate.Struct(in); err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidArgument, "invalid send request", err)
	}

	conv, err := e.getConversation(ctx, in.ChatID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(in.SenderID) {
		return nil, domain.ErrNotParticipant
	}

	imageURL := in.ImageURL
	if in.Type == domain.MessageImage && len(in.ImageData) > 0 {
		if in.ImageURL != "" {
			return nil, domain.ErrInvalidMessagePayload
		}
		// Stored messages never retain inline binary data.
		url, err := e.uploader.Upload(ctx, "chats/"+in.ChatID, in.ImageData)
		if err != nil {
			return nil, err
		}
		imageURL = url
	}

	msg := &domain.Message{
		ID:          uuid.NewString(),
		SenderID:    in.SenderID,
		Type:        in.Type,
		Text:        strings.TrimSpace(in.Text),
		ImageURL:    imageURL,
		StickerURL:  in.StickerURL,
		PrivateDate: in.PrivateDate,
		Timestamp:   e.now(),
		ReadBy:      []string{in.SenderID},
	}
	if err := msg.ValidatePayload(); err != nil {
		return nil, err
	}

	if err := e.store.Create(ctx, domain.MessagesCollection(in.ChatID), msg.ID, msg); err != nil {
		return nil, err
	}

	// Denormalized copy; readers tolerate it lagging the append briefly.
	// One retry on transient failure keeps the window short; a second
	// failure leaves the projection to heal on the next send.
	projection := map[string]any{"last_message": msg}
	if err := e.store.Update(ctx, domain.CollectionChats, in.ChatID, projection); err != nil {
		if !apperr.CodeOf(err).Retryable() {
			e.log.Warn().Err(err).Str("chat_id", in.ChatID).Msg("last-message projection update failed")
		} else if err := e.store.Update(ctx, domain.CollectionChats, in.ChatID, projection); err != nil {
			e.log.Warn().Err(err).Str("chat_id", in.ChatID).Msg("last-message projection update failed after retry")
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := e.stats.OnMessageSent(ctx, in.ChatID); err != nil {
			e.log.Warn().Err(err).Str("chat_id", in.ChatID).Msg("stats update failed")
		}
	}()

	return msg, nil
}

// MarkRead adds userID to the readBy set of every message that does not
// carry it yet. Idempotent: a second identical call writes nothing.
func (e *Engine) MarkRead(ctx context.Context, chatID, userID string) error {
	conv, err := e.getConversation(ctx, chatID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return domain.ErrNotParticipant
	}

	collection := domain.MessagesCollection(chatID)
	docs, err := e.store.Query(ctx, collection, nil)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		var msg domain.Message
		if err := doc.Decode(&msg); err != nil {
			e.log.Warn().Err(err).Str("message_id", doc.ID).Msg("skipping undecodable message")
			continue
		}
		if !msg.MarkReadBy(userID) {
			continue
		}
		if err := e.store.Update(ctx, collection, msg.ID, map[string]any{
			"read_by": msg.ReadBy,
		}); err != nil {
			return err
		}
	}
	return nil
}

// SetTyping records the caller's typing timestamp on the conversation.
// Readers filter entries older than domain.TypingTTL; nothing sweeps
// them server-side.
func (e *Engine) SetTyping(ctx context.Context, chatID, userID string) error {
	conv, err := e.getConversation(ctx, chatID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return domain.ErrNotParticipant
	}
	if conv.TypingUsers == nil {
		conv.TypingUsers = make(map[string]time.Time)
	}
	conv.TypingUsers[userID] = e.now()
	return e.store.Update(ctx, domain.CollectionChats, chatID, map[string]any{
		"typing_users": conv.TypingUsers,
	})
}

// RequestTranslation optimistically flags the message as translating,
// calls the transform collaborator, then persists the result. On any
// failure the flag is cleared and translatedText stays unset; the
// message must never hang in a translating state. Only participants may
// write onto a conversation's messages.
func (e *Engine) RequestTranslation(ctx context.Context, chatID, messageID, callerID, sourceTag, targetTag, text string) (string, error) {
	conv, err := e.getConversation(ctx, chatID)
	if err != nil {
		return "", err
	}
	if !conv.HasParticipant(callerID) {
		return "", domain.ErrNotParticipant
	}

	collection := domain.MessagesCollection(chatID)

	err = e.store.Update(ctx, collection, messageID, map[string]any{
		"is_translating": true,
	})
	if err != nil {
		if apperr.IsNotFound(err) {
			return "", domain.ErrMessageNotFound
		}
		return "", err
	}

	translated, err := e.translator.Translate(ctx, text, sourceTag, targetTag)
	if err != nil {
		e.clearTranslating(collection, messageID)
		return "", err
	}

	err = e.store.Update(ctx, collection, messageID, map[string]any{
		"translated_text": translated,
		"is_translating":  false,
	})
	if err != nil {
		e.clearTranslating(collection, messageID)
		return "", err
	}
	return translated, nil
}

func (e *Engine) clearTranslating(collection, messageID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.store.Update(ctx, collection, messageID, map[string]any{
		"is_translating": false,
	}); err != nil {
		e.log.Warn().Err(err).Str("message_id", messageID).Msg("failed to clear translating flag")
	}
}

// SuggestIcebreakers asks the transform collaborator for opening lines
// based on both participants' hobbies.
func (e *Engine) SuggestIcebreakers(ctx context.Context, chatID, selfID string) ([]string, error) {
	conv, err := e.getConversation(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(selfID) {
		return nil, domain.ErrNotParticipant
	}
	partnerID, ok := conv.OtherParticipant(selfID)
	if !ok {
		return nil, domain.ErrInvalidParticipants
	}

	var self, partner domain.UserProfile
	if err := e.store.Get(ctx, domain.CollectionUsers, selfID, &self); err != nil {
		return nil, err
	}
	if err := e.store.Get(ctx, domain.CollectionUsers, partnerID, &partner); err != nil {
		return nil, err
	}
	return e.translator.SuggestIcebreakers(ctx, self.Hobbies, partner.Hobbies)
}
