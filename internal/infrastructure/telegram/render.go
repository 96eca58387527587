package telegram

import (
	"fmt"
	"sort"
	"strings"

	"NewsDigest/internal/digest"
	"NewsDigest/internal/domain"
)

const mdv2Special = "_*[]()~`>#+-=|{}.!"

// urlSafe lists bytes kept verbatim when encoding link URLs; everything
// else breaks MarkdownV2 link parsing and gets percent-encoded.
const urlSafe = ":/?&=#+%.-_~"

// EscapeMarkdownV2 backslash-escapes Telegram MarkdownV2 special characters.
func EscapeMarkdownV2(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if r < 128 && strings.ContainsRune(mdv2Special, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// FormatLink renders an inline MarkdownV2 link with escaped title and URL.
func FormatLink(title, url string) string {
	return fmt.Sprintf("[%s](%s)", EscapeMarkdownV2(title), escapeURL(url))
}

func escapeURL(url string) string {
	var sb strings.Builder
	sb.Grow(len(url))
	for i := 0; i < len(url); i++ {
		b := url[i]
		switch {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
			sb.WriteByte(b)
		case strings.IndexByte(urlSafe, b) >= 0:
			sb.WriteByte(b)
		default:
			fmt.Fprintf(&sb, "%%%02X", b)
		}
	}
	return sb.String()
}

// CompactInt formats counts the way feeds display them: 1.2k, 3.4M.
func CompactInt(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// BuildCombinedText renders multiple persona digests into one MarkdownV2
// message: shared header, one section per persona, shared footer.
func BuildCombinedText(docs []digest.Document, maxItems int) string {
	if maxItems <= 0 {
		maxItems = 6
	}

	date := ""
	if len(docs) > 0 {
		date = docs[0].Date
	}

	header := strings.Join([]string{
		"📬 *AI Digest*",
		"📅 " + EscapeMarkdownV2(date),
	}, "\n")
	footer := EscapeMarkdownV2("Built locally • No external AI APIs • Have a good day ✨")

	parts := []string{header}
	for _, doc := range docs {
		switch doc.Persona {
		case domain.PersonaGenAINews:
			parts = append(parts, renderGenAINews(doc.Items, maxItems))
		case domain.PersonaProductIdeas:
			parts = append(parts, renderProductIdeas(doc.Items, maxItems))
		default:
			parts = append(parts, renderGeneric(doc, maxItems))
		}
	}
	parts = append(parts, footer)

	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

func renderGenAINews(items []digest.Entry, maxItems int) string {
	sorted := make([]digest.Entry, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(a, b int) bool {
		sa, sb := entryScore(sorted[a]), entryScore(sorted[b])
		if sa != sb {
			return sa > sb
		}
		return entryPoints(sorted[a]) > entryPoints(sorted[b])
	})

	topCount := 3
	if topCount > maxItems {
		topCount = maxItems
	}
	if topCount > len(sorted) {
		topCount = len(sorted)
	}
	top := sorted[:topCount]
	rest := sorted[topCount:]

	var lines []string
	lines = append(lines, "🧠 *GENAI NEWS*", "_Top technical updates worth your time_", "")

	if len(top) > 0 {
		lines = append(lines, "🔥 *Top picks*")
		for _, entry := range top {
			lines = append(lines, entryLines(entry, 160)...)
		}
		lines = append(lines, "")
	}

	// group the remainder by topic
	buckets := map[string][]digest.Entry{}
	for _, entry := range rest {
		topic := stringField(entry.Evaluation, "topic")
		if topic == "" {
			topic = "Other"
		}
		buckets[topic] = append(buckets[topic], entry)
	}

	topics := make([]string, 0, len(buckets))
	for topic := range buckets {
		topics = append(topics, topic)
	}
	sort.Slice(topics, func(a, b int) bool {
		return strings.ToLower(topics[a]) < strings.ToLower(topics[b])
	})

	budget := maxItems - len(top)
	shown := 0
	for _, topic := range topics {
		if shown >= budget {
			break
		}
		lines = append(lines, fmt.Sprintf("📌 *%s*", EscapeMarkdownV2(topic)))
		for _, entry := range buckets[topic] {
			if shown >= budget {
				break
			}
			lines = append(lines, entryLines(entry, 140)...)
			shown++
		}
		lines = append(lines, "")
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// entryLines renders one linked entry with its engagement badge and a
// truncated "why it matters" note.
func entryLines(entry digest.Entry, whyLimit int) []string {
	var lines []string

	line := "• " + FormatLink(entry.Title, entry.URL)
	if topic := stringField(entry.Evaluation, "topic"); topic != "" {
		line += fmt.Sprintf(" \\- _%s_", EscapeMarkdownV2(topic))
	}
	lines = append(lines, line)

	if badge := engagementBadge(entry.Metadata); badge != "" {
		lines = append(lines, EscapeMarkdownV2(badge))
	}

	if why := strings.TrimSpace(stringField(entry.Evaluation, "why_it_matters")); why != "" {
		lines = append(lines, "  "+EscapeMarkdownV2(truncateRunes(why, whyLimit)))
	}

	return lines
}

func renderProductIdeas(items []digest.Entry, maxItems int) string {
	sorted := make([]digest.Entry, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(a, b int) bool {
		scoredA, scoredB := sorted[a].Score != nil, sorted[b].Score != nil
		if scoredA != scoredB {
			return scoredA
		}
		return entryScore(sorted[a]) > entryScore(sorted[b])
	})
	if len(sorted) > maxItems {
		sorted = sorted[:maxItems]
	}

	var lines []string
	lines = append(lines, "💡 *PRODUCT IDEAS*", "_Signals, patterns, and launchable opportunities_", "")

	for i, entry := range sorted {
		lines = append(lines, fmt.Sprintf("*%d\\.* %s", i+1, FormatLink(entry.Title, entry.URL)))

		if badge := engagementBadge(entry.Metadata); badge != "" {
			lines = append(lines, EscapeMarkdownV2(badge))
		}

		if v := stringField(entry.Evaluation, "idea_type"); v != "" {
			lines = append(lines, "• *Type:* "+EscapeMarkdownV2(v))
		}
		if v := strings.TrimSpace(stringField(entry.Evaluation, "problem_statement")); v != "" {
			lines = append(lines, "• *Problem:* "+EscapeMarkdownV2(truncateRunes(v, 180)))
		}
		if v := strings.TrimSpace(stringField(entry.Evaluation, "solution_summary")); v != "" {
			lines = append(lines, "• *Solution:* "+EscapeMarkdownV2(truncateRunes(v, 220)))
		}
		if v := stringField(entry.Evaluation, "maturity_level"); v != "" {
			lines = append(lines, "• *Maturity:* "+EscapeMarkdownV2(v))
		}

		lines = append(lines, "")
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func renderGeneric(doc digest.Document, maxItems int) string {
	lines := []string{fmt.Sprintf("*%s*", EscapeMarkdownV2(doc.Persona))}
	for i, entry := range doc.Items {
		if i >= maxItems {
			break
		}
		lines = append(lines, "• "+FormatLink(entry.Title, entry.URL))
	}
	return strings.Join(lines, "\n")
}

func engagementBadge(meta map[string]any) string {
	var parts []string
	if points, ok := metaNumber(meta, "score", "points"); ok {
		parts = append(parts, "⬆️ "+CompactInt(points))
	}
	if comments, ok := metaNumber(meta, "comments", "descendants"); ok {
		parts = append(parts, "💬 "+CompactInt(comments))
	}
	return strings.Join(parts, "  •  ")
}

func metaNumber(meta map[string]any, fields ...string) (int, bool) {
	for _, field := range fields {
		switch v := meta[field].(type) {
		case int:
			return v, true
		case int64:
			return int(v), true
		case float64:
			return int(v), true
		}
	}
	return 0, false
}

func entryScore(e digest.Entry) int {
	if e.Score == nil {
		return 0
	}
	return *e.Score
}

func entryPoints(e digest.Entry) int {
	n, _ := metaNumber(e.Metadata, "score", "points")
	return n
}

func stringField(payload map[string]any, field string) string {
	if v, ok := payload[field].(string); ok {
		return v
	}
	return ""
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
