package moderation

import (
	"strings"
	"testing"
)

func TestNewFilter(t *testing.T) {
	f := NewFilter()
	if f == nil {
		t.Fatal("NewFilter returned nil")
	}
	if len(f.words) == 0 && len(f.phrases) == 0 {
		t.Fatal("NewFilter created an empty filter")
	}
}

func TestCheck_BlockedSingleWord(t *testing.T) {
	f := NewFilterWithTerms([]string{"badword", "offensive"})

	tests := []struct {
		name    string
		input   string
		blocked bool
		term    string
	}{
		{"exact match", "badword", true, "badword"},
		{"in sentence", "this is badword here", true, "badword"},
		{"case insensitive", "BADWORD", true, "badword"},
		{"mixed case", "BaDwOrD", true, "badword"},
		{"with punctuation", "hello, badword!", true, "badword"},
		{"clean message", "hello world", false, ""},
		{"partial match no block", "badwording is fine", false, ""},
		{"substring no block", "mybadword", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(tt.input)
			if result.Blocked != tt.blocked {
				t.Errorf("Check(%q).Blocked = %v, want %v", tt.input, result.Blocked, tt.blocked)
			}
			if tt.blocked && result.Term != tt.term {
				t.Errorf("Check(%q).Term = %q, want %q", tt.input, result.Term, tt.term)
			}
			if tt.blocked && result.Reason != "blocked_keyword" {
				t.Errorf("Check(%q).Reason = %q, want %q", tt.input, result.Reason, "blocked_keyword")
			}
		})
	}
}

func TestCheck_BlockedPhrase(t *testing.T) {
	f := NewFilterWithTerms([]string{"kill yourself", "go die"})

	tests := []struct {
		name    string
		input   string
		blocked bool
		term    string
	}{
		{"exact phrase", "kill yourself", true, "kill yourself"},
		{"phrase in sentence", "you should kill yourself now", true, "kill yourself"},
		{"case insensitive phrase", "KILL YOURSELF", true, "kill yourself"},
		{"partial word no match", "kill yourselves", false, ""},
		{"words separated", "kill and yourself", false, ""},
		{"go die phrase", "go die already", true, "go die"},
		{"clean message", "i love this chat", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(tt.input)
			if result.Blocked != tt.blocked {
				t.Errorf("Check(%q).Blocked = %v, want %v", tt.input, result.Blocked, tt.blocked)
			}
			if tt.blocked && result.Term != tt.term {
				t.Errorf("Check(%q).Term = %q, want %q", tt.input, result.Term, tt.term)
			}
		})
	}
}

func TestCheck_Leetspeak(t *testing.T) {
	f := NewFilterWithTerms([]string{"badword", "offensive"})

	tests := []struct {
		name    string
		input   string
		blocked bool
	}{
		{"zero for o", "b@dw0rd", true},
		{"at for a", "b@dword", true},
		{"dollar for s", "off3n$ive", true},
		{"one for i", "offens1ve", true},
		{"exclaim for i", "offens!ve", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(tt.input)
			if result.Blocked != tt.blocked {
				t.Errorf("Check(%q).Blocked = %v, want %v", tt.input, result.Blocked, tt.blocked)
			}
		})
	}
}

func TestCheck_CleanMessages(t *testing.T) {
	f := NewFilter()

	messages := []string{
		"hello, how are you?",
		"nice weather today",
		"what are your hobbies?",
		"I love programming",
		"do you like music?",
		"let's talk about movies",
		"I need to assess the situation",
		"the grape harvest was great",
		"",
	}

	for _, msg := range messages {
		result := f.Check(msg)
		if result.Blocked {
			t.Errorf("Check(%q) was blocked (term=%q), expected clean", msg, result.Term)
		}
	}
}

func TestSanitize_MasksBlockedWord(t *testing.T) {
	f := NewFilterWithTerms([]string{"badword"})

	clean, triggered := f.Sanitize("this is badword here")
	if !triggered {
		t.Fatal("expected triggered=true")
	}
	if clean != "this is ******* here" {
		t.Errorf("Sanitize masked wrong span: %q", clean)
	}
}

func TestSanitize_MasksPhrase(t *testing.T) {
	f := NewFilterWithTerms([]string{"go die"})

	clean, triggered := f.Sanitize("just go die already")
	if !triggered {
		t.Fatal("expected triggered=true")
	}
	if strings.Contains(clean, "go") || strings.Contains(clean, "die") {
		t.Errorf("phrase not fully masked: %q", clean)
	}
	if clean != "just ** *** already" {
		t.Errorf("Sanitize masked wrong spans: %q", clean)
	}
}

func TestSanitize_MasksURL(t *testing.T) {
	f := NewFilterWithTerms(nil)

	clean, triggered := f.Sanitize("check out https://spam.example.com now")
	if !triggered {
		t.Fatal("expected triggered=true for URL")
	}
	if strings.Contains(clean, "spam.example.com") {
		t.Errorf("URL survived sanitization: %q", clean)
	}
}

func TestSanitize_FloodFlagsWithoutMasking(t *testing.T) {
	f := NewFilterWithTerms(nil)

	input := "hellooooooo"
	clean, triggered := f.Sanitize(input)
	if !triggered {
		t.Fatal("expected triggered=true for char flood")
	}
	if clean != input {
		t.Errorf("flood should not alter text: got %q, want %q", clean, input)
	}
}

func TestSanitize_CleanTextUntouched(t *testing.T) {
	f := NewFilter()

	input := "hey, how is your day going?"
	clean, triggered := f.Sanitize(input)
	if triggered {
		t.Fatalf("clean text was flagged, output %q", clean)
	}
	if clean != input {
		t.Errorf("clean text was altered: got %q, want %q", clean, input)
	}
}

func TestNewFilterWithTerms_EmptyAndWhitespace(t *testing.T) {
	f := NewFilterWithTerms([]string{"", "  ", "valid"})

	if _, ok := f.words["valid"]; !ok {
		t.Error("expected 'valid' in words set")
	}
	if len(f.words) != 1 {
		t.Errorf("expected 1 word, got %d", len(f.words))
	}
}

func TestNormalizeVariants(t *testing.T) {
	tests := []struct {
		input     string
		wantPlain string
		wantLeet  string
	}{
		{"hello", "hello", "hello"},
		{"h3ll0", "h3ll0", "hello"},
		{"UPPER", "upper", "upper"},
		{"badword!", "badword", "badwordi"},
		{"(hello)", "hello", "(hello)"},
		{"offens!ve", "offensve", "offensive"},
		{"$h!t", "ht", "shit"},
	}

	for _, tt := range tests {
		plain, leet := normalizeVariants(tt.input)
		if plain != tt.wantPlain {
			t.Errorf("normalizeVariants(%q) plain = %q, want %q", tt.input, plain, tt.wantPlain)
		}
		if leet != tt.wantLeet {
			t.Errorf("normalizeVariants(%q) leet = %q, want %q", tt.input, leet, tt.wantLeet)
		}
	}
}

// BenchmarkCheck measures filter performance on a typical clean message.
func BenchmarkCheck(b *testing.B) {
	f := NewFilter()
	msg := "hey how are you doing today? I love chatting about music and movies. What are your favorite hobbies?"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Check(msg)
	}
}

// BenchmarkSanitize measures the relay-path cost on a long message.
func BenchmarkSanitize(b *testing.B) {
	f := NewFilter()
	msg := strings.Repeat("this is a perfectly normal message with no bad content. ", 20)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Sanitize(msg)
	}
}
