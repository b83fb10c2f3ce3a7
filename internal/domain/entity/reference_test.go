package entity

import "testing"

func TestArticleReference_Derivations(t *testing.T) {
	t.Parallel()

	ref := &ArticleReference{Key: "abc", URLName: "u"}

	if got := ref.ArticleID(); got != "abc_u" {
		t.Errorf("ArticleID() = %q, want %q", got, "abc_u")
	}
	if got := ref.ArticleURL(); got != "https://note.com/u/n/abc" {
		t.Errorf("ArticleURL() = %q, want %q", got, "https://note.com/u/n/abc")
	}
}

func TestDetailRecord_IsPaid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		price   int
		canRead bool
		want    bool
	}{
		{"free readable", 0, true, false},
		{"priced", 500, true, true},
		{"unreadable", 0, false, true},
		{"priced and unreadable", 500, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &DetailRecord{Price: tt.price, CanRead: tt.canRead}
			if got := d.IsPaid(); got != tt.want {
				t.Errorf("IsPaid() = %v, want %v", got, tt.want)
			}
		})
	}
}
