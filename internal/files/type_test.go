package files

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUploadType(t *testing.T) {
	assert.Equal(t, "image/png", uploadType("scan.png", "image/png"))
	assert.Equal(t, "application/pdf", uploadType("Grant.PDF", "application/octet-stream"))
	assert.Equal(t, "application/octet-stream", uploadType("notes", ""))
}
