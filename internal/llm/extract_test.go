package llm

import "testing"

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "Bare JSON",
			raw:  `{"confidence": 0.9}`,
			want: `{"confidence": 0.9}`,
		},
		{
			name: "Markdown fenced",
			raw:  "```json\n{\"confidence\": 0.9}\n```",
			want: `{"confidence": 0.9}`,
		},
		{
			name: "Fence without language tag",
			raw:  "```\n{\"confidence\": 0.9}\n```",
			want: `{"confidence": 0.9}`,
		},
		{
			name: "Leading and trailing commentary",
			raw:  "Here is the classification you asked for:\n{\"confidence\": 0.9}\nLet me know if you need more.",
			want: `{"confidence": 0.9}`,
		},
		{
			name: "Nested braces",
			raw:  `Sure. {"effects": {"direct": []}} Done.`,
			want: `{"effects": {"direct": []}}`,
		},
		{
			name:    "No JSON at all",
			raw:     "I could not produce a classification.",
			wantErr: true,
		},
		{
			name:    "Empty response",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// Fenced and unfenced replies carrying the same JSON must extract identically.
func TestExtractJSONObject_FenceEquivalence(t *testing.T) {
	plain := `{"relationship_type": "primary", "confidence": 0.85}`
	fenced := "```json\n" + plain + "\n```"

	a, err := ExtractJSONObject(plain)
	if err != nil {
		t.Fatalf("plain extraction failed: %v", err)
	}
	b, err := ExtractJSONObject(fenced)
	if err != nil {
		t.Fatalf("fenced extraction failed: %v", err)
	}
	if a != b {
		t.Errorf("fenced result %q differs from plain %q", b, a)
	}
}
