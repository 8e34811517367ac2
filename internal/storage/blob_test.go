package storage

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"photo.png":              "photo.png",
		"../../etc/passwd":       "passwd",
		`C:\Users\me\report.pdf`: "report.pdf",
		"my holiday pic.jpg":     "my_holiday_pic.jpg",
		"привет.txt":             "txt",
		"..":                     "file",
		"":                       "file",
		"a;b|c$.sh":              "abc.sh",
	}

	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}

	long := strings.Repeat("a", 300) + ".txt"
	got := SanitizeFilename(long)
	assert.Len(t, got, maxFilenameLen)
	assert.True(t, strings.HasSuffix(got, ".txt"))
}

func TestAttachmentKey(t *testing.T) {
	group, channel := uuid.New(), uuid.New()

	key := AttachmentKey(group, channel, "../secret/cat picture.png")
	prefix := "groups/" + group.String() + "/" + channel.String() + "/uploads/"
	assert.True(t, strings.HasPrefix(key, prefix))
	assert.True(t, strings.HasSuffix(key, "_cat_picture.png"))
	assert.True(t, ValidKey(key))

	assert.NotEqual(t, key, AttachmentKey(group, channel, "../secret/cat picture.png"))
}

func TestValidKey(t *testing.T) {
	assert.True(t, ValidKey("groups/a/b.png"))
	assert.False(t, ValidKey(""))
	assert.False(t, ValidKey("/abs/path"))
	assert.False(t, ValidKey("groups/../../etc"))
	assert.False(t, ValidKey("groups//x"))
	assert.False(t, ValidKey(`groups\x`))
}
