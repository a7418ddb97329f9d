package storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, folder, name string
		want                 string
	}{
		{"pixnest", "posts", "abc.jpg", "pixnest/posts/abc.jpg"},
		{"/pixnest/", "/avatars/", "abc.png", "pixnest/avatars/abc.png"},
		{"", "posts", "abc.jpg", "posts/abc.jpg"},
		{"", "", "abc.jpg", "abc.jpg"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, objectKey(tc.prefix, tc.folder, tc.name))
	}
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/posts/a.jpg", publicURL("https://cdn.example.com/", "s3", "bucket", "posts/a.jpg"))
	assert.Equal(t, "s3://bucket/posts/a.jpg", publicURL("", "s3", "bucket", "posts/a.jpg"))
}

func TestPublicReadPolicy(t *testing.T) {
	var policy struct {
		Statement []struct {
			Action   string
			Resource string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(publicReadPolicy("media")), &policy))
	require.Len(t, policy.Statement, 1)
	assert.Equal(t, "s3:GetObject", policy.Statement[0].Action)
	assert.Equal(t, "arn:aws:s3:::media/*", policy.Statement[0].Resource)
}
