package core

import "strings"

// Span is a chat-transport annotation of a message substring, given as
// an offset and length relative to the original message text.
type Span struct {
	Type   string
	Offset int
	Length int
}

// Span types the extractor acts on. Anything else is left in place.
const (
	SpanBotCommand = "bot_command"
	SpanHashtag    = "hashtag"
)

// Extraction is the result of pulling command and hashtag spans out of
// a message: the text with those substrings removed, plus the removed
// tokens, lowercased, in source order.
type Extraction struct {
	Text     string
	Tags     []string
	Commands []string
}

// ExtractEntities removes command and hashtag spans from text.
//
// Span offsets are relative to the original message; baseOffset adjusts
// for a prefix the caller already sliced off (offset + baseOffset is
// the position in the working text). Each removal shrinks the working
// text, so the fold carries a running shift that is decremented by the
// removed length, keeping the remaining original-relative offsets
// resolvable. Offsets are counted in runes, matching how the transport
// counts positions for the characters it annotates.
//
// Out-of-bounds or overlapping spans are clamped rather than rejected;
// the transport emits spans left to right and non-overlapping, so
// clamping only matters for malformed input, which must not panic.
func ExtractEntities(text string, spans []Span, baseOffset int) Extraction {
	out := Extraction{Tags: []string{}, Commands: []string{}}
	working := []rune(text)
	shift := baseOffset

	for _, span := range spans {
		if span.Type != SpanBotCommand && span.Type != SpanHashtag {
			continue
		}

		start := span.Offset + shift
		if start < 0 {
			start = 0
		}
		if start >= len(working) {
			continue
		}
		end := start + span.Length
		if end > len(working) {
			end = len(working)
		}
		if end <= start {
			continue
		}

		token := strings.ToLower(string(working[start:end]))
		switch span.Type {
		case SpanBotCommand:
			out.Commands = append(out.Commands, token)
		case SpanHashtag:
			out.Tags = append(out.Tags, token)
		}

		working = append(working[:start], working[end:]...)
		shift -= end - start
	}

	out.Text = string(working)
	return out
}
