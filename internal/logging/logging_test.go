package logging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreview(t *testing.T) {
	assert.Equal(t, "сайн уу", Preview("сайн уу"))

	long := strings.Repeat("я", 130)
	got := Preview(long)
	assert.Equal(t, strings.Repeat("я", 120)+"...", got)
}
