package chat

import (
	"errors"
	"fmt"
)

// Kind partitions conversation-engine failures into the categories the
// connection layer reacts to. Validation and quota kinds are recovered into
// localized chat messages; provider and store kinds are surfaced and logged.
type Kind string

const (
	KindConversationNotFound Kind = "conversation_not_found"
	KindItemNotFound         Kind = "item_not_found"
	KindOutOfQuota           Kind = "out_of_quota"
	KindLanguageIncompatible Kind = "language_incompatible"
	KindInvalidImageInput    Kind = "invalid_image_input"
	KindUpstreamProvider     Kind = "upstream_provider"
	KindStoreUnavailable     Kind = "store_unavailable"
	KindBadRequest           Kind = "bad_request"
)

// Providers distinguished inside KindUpstreamProvider.
const (
	ProviderText   = "text"
	ProviderImage  = "image"
	ProviderSpeech = "speech"
)

// Error carries a failure kind through the dispatch pipeline.
type Error struct {
	Kind     Kind
	Provider string // set for KindUpstreamProvider only
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from an error chain. Errors outside the
// taxonomy report KindUpstreamProvider's catch-all sibling: an empty kind.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// ProviderOf reports which upstream provider failed, if any.
func ProviderOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Provider
	}
	return ""
}

func ConversationNotFound(msg string) *Error {
	return &Error{Kind: KindConversationNotFound, Message: msg}
}

func ItemNotFound(msg string) *Error {
	return &Error{Kind: KindItemNotFound, Message: msg}
}

func OutOfQuota(msg string) *Error {
	return &Error{Kind: KindOutOfQuota, Message: msg}
}

func LanguageIncompatible(msg string) *Error {
	return &Error{Kind: KindLanguageIncompatible, Message: msg}
}

func InvalidImageInput(msg string) *Error {
	return &Error{Kind: KindInvalidImageInput, Message: msg}
}

func UpstreamProvider(provider, msg string, err error) *Error {
	return &Error{Kind: KindUpstreamProvider, Provider: provider, Message: msg, Err: err}
}

func StoreUnavailable(msg string, err error) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: msg, Err: err}
}

func BadRequest(msg string) *Error {
	return &Error{Kind: KindBadRequest, Message: msg}
}
