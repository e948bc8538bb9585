package chat

// Style names a visual preset for image-to-image transformation.
type Style string

const (
	StyleRealism       Style = "realism"
	StyleAnime         Style = "anime"
	StyleMinimalism    Style = "minimalism"
	StyleExpressionism Style = "expressionism"
	StyleImpressionism Style = "impressionism"
	StylePainting      Style = "painting"
)

var styleKeywords = map[Style]string{
	StyleRealism: "realism, complex detailed, high contrast, low saturation, backlighting",
	StyleAnime: "Anime, Big expressive eyes, cute chibi-like proportions, colorful and vibrant artwork, " +
		"Playful expressions, stylized features, line art, sparkles",
	StyleMinimalism:    "minimalism, cinematic, simplified, 8k, vivid color",
	StyleExpressionism: "expressionism, detailed, digital art, colorful background, absurdist",
	StylePainting: "Bold outlines, simplified shapes, Exaggerated facial features, playful expressions, " +
		"Vibrant colors, simplified backgrounds, Comic-style speech bubbles, Cartoonish textures, dynamic poses",
}

// Keywords maps a style to the prompt fragment injected ahead of image
// transformation. Unknown styles pass through untouched so free-form prompts
// still work.
func (s Style) Keywords() string {
	if kw, ok := styleKeywords[s]; ok {
		return kw
	}
	return string(s)
}
