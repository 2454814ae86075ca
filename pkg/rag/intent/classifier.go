package intent

import (
	"strings"
	"unicode"
)

// Intent labels understood by the evaluator
const (
	Greeting = "greeting"
	Farewell = "farewell"
	Question = "question"
)

// Small-talk keywords. A message is small talk only when it is short and
// consists of little more than one of these.
var (
	greetingKeywords = []string{
		"hi", "hello", "hey", "good morning", "good afternoon", "good evening",
		"你好", "您好", "嗨", "早上好", "下午好", "晚上好", "哈喽",
	}
	farewellKeywords = []string{
		"bye", "goodbye", "see you", "thanks, bye", "thank you, bye",
		"再见", "拜拜", "回头见", "下次见",
	}
)

const maxSmallTalkRunes = 24

// Classify labels a user message as greeting, farewell or question
func Classify(message string) string {
	normalized := normalize(message)
	if normalized == "" || len([]rune(normalized)) > maxSmallTalkRunes {
		return Question
	}
	if matches(normalized, farewellKeywords) {
		return Farewell
	}
	if matches(normalized, greetingKeywords) {
		return Greeting
	}
	return Question
}

func matches(normalized string, keywords []string) bool {
	for _, kw := range keywords {
		if normalized == kw {
			return true
		}
		if !strings.HasPrefix(normalized, kw) {
			continue
		}
		rest := strings.TrimPrefix(normalized, kw)
		if isASCII(kw) {
			// "hello there", "hi, team"
			words := strings.Fields(rest)
			if (rest[0] == ' ' || rest[0] == ',') && len(words) <= 2 && !strings.ContainsAny(rest, "?") {
				return true
			}
			continue
		}
		// "你好呀", "再见啦"
		if _, ok := particles[rest]; ok {
			return true
		}
	}
	return false
}

var particles = map[string]struct{}{"呀": {}, "啊": {}, "哦": {}, "啦": {}, "吖": {}}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// normalize lower-cases and strips trailing punctuation and symbols
func normalize(message string) string {
	s := strings.ToLower(strings.TrimSpace(message))
	return strings.TrimRightFunc(s, func(r rune) bool {
		return r != '?' && r != '？' && (unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r))
	})
}
