package extract

import "testing"

func TestNormalizePageText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "hyphen line break joined",
			in:   "settle-\nment was reached",
			want: "settlement was reached",
		},
		{
			name: "hyphen break with leading indent",
			in:   "agree-\n   ment",
			want: "agreement",
		},
		{
			name: "horizontal space runs collapse",
			in:   "the   court \t ruled",
			want: "the court ruled",
		},
		{
			name: "blank line runs collapse to one",
			in:   "first paragraph\n\n\n\nsecond paragraph",
			want: "first paragraph\n\nsecond paragraph",
		},
		{
			name: "spaces around newlines trimmed",
			in:   "line one \n line two",
			want: "line one\nline two",
		},
		{
			name: "digit hyphen kept",
			in:   "case 2023-\n45",
			want: "case 2023-\n45",
		},
		{
			name: "whitespace only",
			in:   "  \n\t \n ",
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizePageText(tc.in); got != tc.want {
				t.Fatalf("NormalizePageText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
