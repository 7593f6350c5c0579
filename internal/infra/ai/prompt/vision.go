package prompt

// VisionSystemPrompt asks for a single similarity number.
func VisionSystemPrompt() string {
	return `You compare two website screenshots. The first image is the official brand site, the second is a suspect site. Rate how visually similar the suspect is to the official site (layout, colours, logo, typography) as a number in [0,1], where 1 means a near pixel-perfect clone. Respond with one JSON object only: {"similarity": 0.0, "reason": "<short sentence>"}`
}

// VisionUserPrompt labels the image pair.
func VisionUserPrompt() string {
	return "Image 1: official site. Image 2: suspect site. Return the JSON."
}
