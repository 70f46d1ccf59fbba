package refcodec

import (
	"testing"

	"mediaref/pkg/types"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   types.Location
		wantOK bool
	}{
		{
			name:   "Composite",
			input:  "photos:abc/def.jpg",
			want:   types.Location{Bucket: "photos", Path: "abc/def.jpg"},
			wantOK: true,
		},
		{
			name:   "Composite keeps later colons",
			input:  "videos:userid/123:456.mp4",
			want:   types.Location{Bucket: "videos", Path: "userid/123:456.mp4"},
			wantOK: true,
		},
		{
			name:   "Legacy public URL",
			input:  "https://x.supabase.co/storage/v1/object/public/photos/u1/a.png",
			want:   types.Location{Bucket: "photos", Path: "u1/a.png"},
			wantOK: true,
		},
		{
			name:   "Legacy URL with query string",
			input:  "https://x.supabase.co/storage/v1/object/public/videos/u1/deep/b.mp4?t=1",
			want:   types.Location{Bucket: "videos", Path: "u1/deep/b.mp4"},
			wantOK: true,
		},
		{
			name:   "Legacy URL with escaped path",
			input:  "https://x.supabase.co/storage/v1/object/public/photos/u1/a%20b.png",
			want:   types.Location{Bucket: "photos", Path: "u1/a b.png"},
			wantOK: true,
		},
		{name: "Plain text", input: "not a url or ref"},
		{name: "Empty", input: ""},
		{name: "Foreign URL", input: "https://cdn.example.com/img/a.png"},
		{name: "Public prefix without object", input: "https://x.supabase.co/storage/v1/object/public/photos/"},
		{name: "Malformed URL", input: "http://[::1"},
		{name: "http prefix without scheme", input: "httpfoo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Decode(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	assert.Equal(t, "photos:u1/a.png", Encode("photos", "u1/a.png"))

	cases := []struct{ bucket, path string }{
		{"photos", "u1/a.png"},
		{"videos", "u1/1700000000:1.mp4"},
		{"b", "a/b/c/d"},
		{"avatars", "with space.png"},
	}
	for _, c := range cases {
		loc, ok := Decode(Encode(c.bucket, c.path))
		assert.True(t, ok, "round trip failed for %s", c.bucket)
		assert.Equal(t, types.Location{Bucket: c.bucket, Path: c.path}, loc)
	}
}

func TestNormalize(t *testing.T) {
	got, ok := Normalize("https://x.supabase.co/storage/v1/object/public/photos/u1/a.png")
	assert.True(t, ok)
	assert.Equal(t, "photos:u1/a.png", got)

	got, ok = Normalize("https://cdn.example.com/a.png")
	assert.False(t, ok)
	assert.Equal(t, "https://cdn.example.com/a.png", got)

	assert.True(t, IsComposite("photos:a"))
	assert.False(t, IsComposite("https://x/a"))
	assert.False(t, IsComposite(""))
}
