package jsonutil

import "testing"

func TestExtractFirstObject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{
			name:  "bare object",
			input: `{"a":1}`,
			want:  `{"a":1}`,
			ok:    true,
		},
		{
			name:  "object with surrounding prose",
			input: "Here is the result:\n{\"a\":1}\nThanks!",
			want:  `{"a":1}`,
			ok:    true,
		},
		{
			name:  "nested objects",
			input: `x {"a":{"b":{"c":2}},"d":3} y`,
			want:  `{"a":{"b":{"c":2}},"d":3}`,
			ok:    true,
		},
		{
			name:  "braces inside strings",
			input: `{"text":"closing } brace and {open"}`,
			want:  `{"text":"closing } brace and {open"}`,
			ok:    true,
		},
		{
			name:  "escaped quotes inside strings",
			input: `{"text":"she said \"}\" loudly"}`,
			want:  `{"text":"she said \"}\" loudly"}`,
			ok:    true,
		},
		{
			name:  "no object",
			input: "plain text only",
			ok:    false,
		},
		{
			name:  "unbalanced",
			input: `{"a":1`,
			ok:    false,
		},
		{
			name:  "stray closing brace before object",
			input: `} {"a":1}`,
			want:  `{"a":1}`,
			ok:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractFirstObject(tt.input)
			if ok != tt.ok {
				t.Fatalf("ExtractFirstObject(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("ExtractFirstObject(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
