package validators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "trims", in: "  Adinkra Hoodie  ", want: "Adinkra Hoodie"},
		{name: "folds whitespace", in: "Kente\t\n  Tee", want: "Kente Tee"},
		{name: "drops control chars", in: "Tee\x00\x07", want: "Tee"},
		{name: "caps by rune", in: "\u00c0\u00c1\u00c2", max: 2, want: "\u00c0\u00c1"},
		{name: "no trailing space at cap", in: "ab cd", max: 3, want: "ab"},
		{name: "unbounded", in: "WELCOME10", max: 0, want: "WELCOME10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeString(tc.in, tc.max))
		})
	}
}
