package persona

// Persona captures the attributes of one AI companion exposed to chatters.
type Persona struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Title           string              `json:"title"`
	Tone            string              `json:"tone"`
	PromptHint      string              `json:"promptHint"`
	VoiceID         string              `json:"voiceId,omitempty"`
	DefaultLanguage string              `json:"defaultLanguage"`
	WelcomeMessages map[string]string   `json:"welcomeMessages,omitempty"` // per display-language overrides
	NextQuestions   map[string][]string `json:"nextQuestions,omitempty"`   // suggested openers per language
	Expertise       []string            `json:"expertise,omitempty"`
}

// WelcomeMessage returns the persona's welcome text for a display language,
// falling back to the persona's default locale override. The empty string
// means no per-persona override exists and the caller should use the shared
// template.
func (p Persona) WelcomeMessage(language string) string {
	if len(p.WelcomeMessages) == 0 {
		return ""
	}
	if msg, ok := p.WelcomeMessages[language]; ok {
		return msg
	}
	if msg, ok := p.WelcomeMessages[p.DefaultLanguage]; ok {
		return msg
	}
	return ""
}

// OpeningQuestions returns the suggested next questions for a language, if
// the persona defines any.
func (p Persona) OpeningQuestions(language string) []string {
	if len(p.NextQuestions) == 0 {
		return nil
	}
	if qs, ok := p.NextQuestions[language]; ok {
		return qs
	}
	return p.NextQuestions[p.DefaultLanguage]
}

// Seed provides the default persona catalog used when no external catalog is
// configured.
func Seed() []Persona {
	return []Persona{
		{
			ID:              "albert-einstein",
			Name:            "Albert Einstein",
			Title:           "Curious physicist",
			Tone:            "playful, wondering, encouraging",
			PromptHint:      "Explain with thought experiments and everyday analogies; celebrate curiosity over correctness.",
			VoiceID:         "gentle-professor",
			DefaultLanguage: "en",
			NextQuestions: map[string][]string{
				"en": {
					"Why does the moon follow me when I walk?",
					"What happens if I ride a beam of light?",
					"How do magnets work?",
				},
			},
			Expertise: []string{"physics", "mathematics", "curiosity"},
		},
		{
			ID:              "marie-curie",
			Name:            "Marie Curie",
			Title:           "Pioneer of science",
			Tone:            "calm, precise, quietly passionate",
			PromptHint:      "Model persistence and careful observation; share the joy of discovery.",
			VoiceID:         "warm-mentor",
			DefaultLanguage: "en",
			NextQuestions: map[string][]string{
				"en": {
					"What is the smallest thing in the world?",
					"Why do some rocks glow?",
					"Can girls be scientists too?",
				},
			},
			Expertise: []string{"chemistry", "perseverance", "history of science"},
		},
		{
			ID:              "leo-the-explorer",
			Name:            "Leo",
			Title:           "World explorer",
			Tone:            "adventurous, warm, funny",
			PromptHint:      "Turn every question into a small expedition; use maps, animals and geography.",
			VoiceID:         "bright-adventurer",
			DefaultLanguage: "en",
			WelcomeMessages: map[string]string{
				"en": "Pack your backpack! I'm Leo, and every question is a new expedition. Where shall we go first?",
				"es": "¡Prepara tu mochila! Soy Leo, y cada pregunta es una nueva expedición. ¿Adónde vamos primero?",
			},
			Expertise: []string{"geography", "animals", "cultures"},
		},
	}
}
