package background

import "strings"

const (
	basePrompt = "Vibrant YouTube thumbnail background, 16:9 aspect ratio, " +
		"strong focal composition with clear space on the left side for text overlay, " +
		"cinematic lighting, bold contrast, high saturation, " +
		"professional graphic design style, no text or logos, " +
		"visually striking and attention-grabbing"
	topicPrefix = ", related to: "

	MaxPromptLength = 1000
)

// BuildPrompt appends the topic to the fixed thumbnail prompt, truncating the
// topic so the prompt stays within MaxPromptLength.
func BuildPrompt(topic string) string {
	topic = strings.TrimSpace(topic)
	if len(basePrompt)+len(topicPrefix)+len(topic) > MaxPromptLength {
		topic = truncateRunes(topic, MaxPromptLength-len(basePrompt)-len(topicPrefix))
	}
	return basePrompt + topicPrefix + topic
}

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
