package nfc

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMeasureText(t *testing.T) {
	tests := []struct {
		name     string
		language string
		text     string
		maxSize  int
		want     Capacity
	}{
		{
			name:     "hello on NTAG216",
			language: "en",
			text:     "Hello",
			maxSize:  867,
			want:     Capacity{Used: 12, Max: 867, Remaining: 855, Fits: true},
		},
		{
			name:     "default language",
			language: "",
			text:     "Hello",
			maxSize:  867,
			want:     Capacity{Used: 12, Max: 867, Remaining: 855, Fits: true},
		},
		{
			name:     "exact fit",
			language: "en",
			text:     "Hello",
			maxSize:  12,
			want:     Capacity{Used: 12, Max: 12, Remaining: 0, Fits: true},
		},
		{
			name:     "one byte over",
			language: "en",
			text:     "Hello!",
			maxSize:  12,
			want:     Capacity{Used: 13, Max: 12, Remaining: -1, Fits: false},
		},
		{
			// A 256-byte payload needs the four-byte length field.
			name:     "long record header",
			language: "en",
			text:     strings.Repeat("a", 253),
			maxSize:  867,
			want:     Capacity{Used: 263, Max: 867, Remaining: 604, Fits: true},
		},
		{
			name:     "multibyte text counts bytes",
			language: "ja",
			text:     "日本",
			maxSize:  867,
			want:     Capacity{Used: 4 + 3 + 6, Max: 867, Remaining: 867 - 13, Fits: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MeasureText(tt.language, tt.text, tt.maxSize)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("MeasureText() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMeasureText_InvalidLanguage(t *testing.T) {
	got := MeasureText(strings.Repeat("x", 64), "text", 867)
	if got.Fits {
		t.Error("invalid language reported as fitting")
	}
	if got.Used <= 0 {
		t.Errorf("Used = %d, want an estimate", got.Used)
	}
}
