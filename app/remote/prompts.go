package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MaxContextChars bounds page text handed to the language model.
const MaxContextChars = 6000

const ExtractSystemPrompt = `You extract product facts for marketplace listings.
Answer with one JSON object and nothing else, using exactly these keys:
{"title": string, "description": string, "features": [string], "brand": string, "price": string}
Use an empty string or empty list when a value is unknown. Never invent facts.`

const seoSystemPrompt = `You are an eBay SEO specialist.
Answer with one JSON object and nothing else, using exactly these keys:
{"keywords": [string], "highlights": [string], "explanation": string}
Give 5 to 12 search keywords buyers actually type, and 3 to 6 short benefit
highlights. Wrap the most important words of a highlight in *asterisks*.`

// ExtractPrompt asks the model to pull ProductData out of page or file text.
func ExtractPrompt(source, text string) string {
	return fmt.Sprintf("Source: %s\n\nContent:\n%s", source, Truncate(text, MaxContextChars))
}

// SEOPrompt asks the model for keywords and highlights.
func SEOPrompt(title, description, pageContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n\nDescription:\n%s\n", title, Truncate(description, MaxContextChars/2))
	if pageContext != "" {
		fmt.Fprintf(&b, "\nText from the original product page:\n%s\n", Truncate(pageContext, MaxContextChars/2))
	}
	return b.String()
}

// Truncate cuts s to at most n bytes on a rune boundary.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }

// DecodeModelJSON finds the outermost JSON object in a model answer (models
// like to wrap it in prose or code fences) and decodes it into out.
func DecodeModelJSON(answer string, out any) error {
	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start < 0 || end <= start {
		return errors.New("model answer contains no JSON object")
	}
	if err := json.Unmarshal([]byte(answer[start:end+1]), out); err != nil {
		return fmt.Errorf("model answer is not valid JSON: %w", err)
	}
	return nil
}

// Clean trims every entry and drops empty ones.
func Clean(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
