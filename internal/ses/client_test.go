package ses

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BOISE CAMERA CLUB", "BOISE-CAMERA-CLUB"},
		{"club_42", "club_42"},
		{"Ciné & Photo!", "Cin--Photo"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tagValue(tt.in), tt.in)
	}
}
