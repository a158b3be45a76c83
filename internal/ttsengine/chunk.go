package ttsengine

import "strings"

// sentence delimiters recognized by the chunker.
const delimiters = ".!?\n"

// ChunkText splits script text into speakable pieces of at most maxLen
// runes, cutting only at sentence boundaries. Trailing fragments shorter
// than minLen are merged into the previous chunk instead of being emitted
// on their own. Text without any delimiter becomes a single chunk; empty
// text yields no chunks.
func ChunkText(text string, maxLen, minLen int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if !strings.ContainsAny(text, delimiters) {
		return []string{text}
	}

	sentences := splitSentences(text)

	var chunks []string
	var current strings.Builder
	for _, s := range sentences {
		if current.Len() > 0 && current.Len()+1+len(s) > maxLen {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(s)

		// A single sentence longer than maxLen still flushes whole; the
		// synthesis provider tolerates oversized input better than a
		// mid-sentence cut does.
		if current.Len() >= maxLen {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	// Merge a short trailing fragment backwards.
	if n := len(chunks); n > 1 && len(chunks[n-1]) < minLen {
		chunks[n-2] = chunks[n-2] + " " + chunks[n-1]
		chunks = chunks[:n-1]
	}

	return chunks
}

// splitSentences cuts text after each delimiter, keeping the delimiter
// attached to its sentence.
func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if strings.ContainsRune(delimiters, r) {
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}
