package analyzer

import "testing"

func TestPorterStemmer_Stem(t *testing.T) {
	stemmer := NewPorterStemmer()

	tests := []struct {
		word string
		want string
	}{
		{"running", "run"},
		{"margins", "margin"},
		{"earnings", "earn"},
		{"ratios", "ratio"},
		{"caresses", "caress"},
		{"ponies", "poni"},
		{"liabilities", "liabil"},
		{"liability", "liabil"},
		{"go", "go"},
	}

	for _, tt := range tests {
		if got := stemmer.Stem(tt.word); got != tt.want {
			t.Errorf("Stem(%q) = %q, want %q", tt.word, got, tt.want)
		}
	}
}

func TestPorterStemmer_Deterministic(t *testing.T) {
	stemmer := NewPorterStemmer()

	for _, word := range []string{"relational", "conditional", "organization", "operational"} {
		first := stemmer.Stem(word)
		for i := 0; i < 20; i++ {
			if got := stemmer.Stem(word); got != first {
				t.Fatalf("Stem(%q) = %q, then %q", word, first, got)
			}
		}
	}
}
