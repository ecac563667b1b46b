package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "lowercases and splits",
			in:   "TCP Handshake uses SYN/ACK packets",
			want: []string{"tcp", "handshake", "uses", "syn", "ack", "packets"},
		},
		{
			name: "drops stopwords and short tokens",
			in:   "the OS is a program in it",
			want: []string{"program"},
		},
		{
			name: "keeps underscores and digits",
			in:   "page_table has 4096 entries",
			want: []string{"page_table", "has", "4096", "entries"},
		},
		{
			name: "empty input",
			in:   "",
			want: nil,
		},
		{
			name: "only stopwords",
			in:   "the and for",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}
