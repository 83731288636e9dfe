package domain

// Document store collection names.
const (
	CollectionUsers     = "users"
	CollectionChats     = "chats"
	CollectionChatStats = "chat_stats"
)

// MessagesCollection is the per-conversation message sub-collection.
func MessagesCollection(chatID string) string {
	return CollectionChats + "/" + chatID + "/messages"
}
