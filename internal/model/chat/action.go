package chat

// Action selects the generation strategy for one exchange.
type Action string

const (
	ActionTextToText   Action = "text_to_text"
	ActionTextToImage  Action = "text_to_image"
	ActionImageToImage Action = "image_to_image"
)

// ParseAction validates a wire-level action string. An empty string defaults
// to text generation, matching the protocol's historical behaviour.
func ParseAction(raw string) (Action, error) {
	switch Action(raw) {
	case ActionTextToText, "":
		return ActionTextToText, nil
	case ActionTextToImage:
		return ActionTextToImage, nil
	case ActionImageToImage:
		return ActionImageToImage, nil
	default:
		return "", BadRequest("action is not available at this moment: " + raw)
	}
}
