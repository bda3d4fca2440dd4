package pipeline

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)

// tokenize приводит текст к нижнему регистру, снимает диакритику и режет на слова.
func tokenize(text string) []string {
	// цепочка не потокобезопасна, создаём на каждый вызов
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	bare := strings.ToLower(nonTokenChars.ReplaceAllString(text, " "))
	normalized, _, err := transform.String(normFunc, bare)
	if err != nil {
		normalized = bare
	}
	return strings.Fields(normalized)
}

func hasHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// matcher ищет фразы в нормализованном тексте. Латиница и кириллица
// сравниваются по целым словам, иероглифы подстрокой: пробелов между ними нет.
type matcher struct {
	text string
}

func newMatcher(text string) matcher {
	return matcher{text: " " + strings.Join(tokenize(text), " ") + " "}
}

func (m matcher) contains(phrase string) bool {
	p := strings.Join(tokenize(phrase), " ")
	if p == "" {
		return false
	}
	if hasHan(p) {
		return strings.Contains(m.text, p)
	}
	return strings.Contains(m.text, " "+p+" ")
}

func (m matcher) containsAny(phrases []string) (string, bool) {
	for _, p := range phrases {
		if m.contains(p) {
			return p, true
		}
	}
	return "", false
}
