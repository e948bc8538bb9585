package chat

// Role classifies who (or what) authored a message.
type Role string

const (
	RoleUser                Role = "user"
	RoleAssistant           Role = "assistant"
	RoleImage               Role = "image"
	RoleSystem              Role = "system"
	RoleUserImage           Role = "user_image"
	RoleSubscriptionWarning Role = "subscription_warning"
)

// PromptRoles are the roles forwarded to the text-generation provider.
// Image and warning entries never enter the prompt window.
func (r Role) InPrompt() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// Message is one immutable entry of a conversation log. Timestamp is the
// server-assigned sort key; within a conversation it strictly orders the log.
type Message struct {
	ConversationID string   `json:"-"`
	Role           Role     `json:"role"`
	Content        string   `json:"content"`
	Links          []string `json:"links"`
	NextQuestions  []string `json:"next_questions"`
	RequestID      string   `json:"uuid_request"`
	Timestamp      string   `json:"timestamp"`
}
