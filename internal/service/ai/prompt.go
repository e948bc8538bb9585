package ai

import (
	"fmt"

	"github.com/companionlabs/backend/internal/model/persona"
)

const replyFormatInstruction = `Answer strictly as a JSON object with these fields:
{"content": "your response to the user", "links": ["around 3 reference links"], "next_questions": ["around 3 possible next questions; invent questions about yourself if none fit"]}`

const languageDetectPrompt = `Detect the language of the user's prompt. Answer only with one or more of these codes, comma separated: en, es, fr, hi, it, de, pl, pt. Output "other" if none fits.`

const drawExtractionPrompt = `From the given prompt, extract keywords from the prompt, along with potential keywords to enhance image generation. Your answer would contain keywords only.

User: Draw Kobe Bryant

Agent: Kobe Bryant, black buzz cut hairstyle, semi-realistic, detailed half body, webtoon style, super detail, gradient background, soft colors, soft lighting, anime, high detail, light and dark contrast, best quality super detail, cinematic lighting, ultra high definition

User: Give me a cute 3D version of Michael Jackson

Agent: Michael Jackson, cute, 3D, standing centered, Pixar style, 3d style, disney style, 8k, Beautiful

User: %s
Agent:`

// BuildSystemPrompt assembles the persona prompt, adjusted to the chatter's
// age band and preferred name.
func BuildSystemPrompt(p persona.Persona, age int, chatterName string) string {
	return fmt.Sprintf(`You are %s, %s. Stay in character at all times.

Character:
- Name: %s
- Tone: %s
- Guidance: %s

You are talking with %s, who is %d years old. %s
Keep every answer safe, kind and appropriate for a child of that age. Never discuss violence, romance or anything unsuitable for children.`,
		p.Name, p.Title,
		p.Name, p.Tone, p.PromptHint,
		chatterName, age, ageGuidance(age),
	)
}

func ageGuidance(age int) string {
	switch {
	case age <= 11:
		return "Use short, simple sentences and playful comparisons a 6-11 year old understands."
	case age <= 15:
		return "Use clear explanations with relatable examples for a 12-15 year old."
	default:
		return "You can use richer vocabulary and deeper reasoning suitable for a 16-18 year old."
	}
}
