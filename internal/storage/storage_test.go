package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabishimam2/reciepe-app-api/internal/config"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))
	return buf.Bytes()
}

// pngHeader returns the PNG signature and an IHDR chunk declaring a w x h
// grayscale image, with no pixel data behind it.
func pngHeader(w, h uint32) []byte {
	var ihdr [13]byte
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth; color type, compression, filter and interlace stay 0

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	crc := crc32.NewIEEE()
	_, _ = crc.Write([]byte("IHDR"))
	_, _ = crc.Write(ihdr[:])
	buf.WriteString("IHDR")
	buf.Write(ihdr[:])
	_ = binary.Write(&buf, binary.BigEndian, crc.Sum32())
	return buf.Bytes()
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"uploads/recipe/abc.png", false},
		{"a", false},
		{"", true},
		{"/etc/passwd", true},
		{"uploads/../secret", true},
		{"uploads/./x", true},
		{"uploads//x", true},
		{`uploads\x`, true},
		{"uploads/recipe/", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.wantErr && !errors.Is(err, ErrInvalidKey) {
				t.Errorf("ValidateKey(%q) = %v, want ErrInvalidKey", tt.key, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateKey(%q) unexpected error: %v", tt.key, err)
			}
		})
	}
}

func TestNewRecipeImageKey(t *testing.T) {
	a := NewRecipeImageKey("png")
	b := NewRecipeImageKey("png")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, RecipeImagePrefix+"/"))
	assert.True(t, strings.HasSuffix(a, ".png"))
	assert.NoError(t, ValidateKey(a))
	// prefix + "/" + 36-char uuid + ".png"
	assert.Len(t, a, len(RecipeImagePrefix)+1+36+4)
}

func TestComputePath(t *testing.T) {
	p, err := ComputePath("/data/media", "uploads/recipe/abc.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data/media", "uploads", "recipe", "abc.png"), p)

	_, err = ComputePath("/data/media", "../abc.png")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestFilesystemBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	b, err := NewFilesystemBackend(root, zerolog.Nop())
	require.NoError(t, err)

	key := "uploads/recipe/one.png"
	data := []byte("not really a png")

	exists, err := b.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = b.Get(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, b.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "image/png"))

	exists, err = b.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := b.Get(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Join(root, "uploads", "recipe"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, b.Delete(ctx, key))
	require.NoError(t, b.Delete(ctx, key))

	exists, err = b.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFilesystemBackend_List(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	b, err := NewFilesystemBackend(root, zerolog.Nop())
	require.NoError(t, err)

	var keys []string
	collect := func(info ObjectInfo) error {
		keys = append(keys, info.Key)
		return nil
	}

	// Listing a prefix that was never written is empty, not an error.
	require.NoError(t, b.List(ctx, RecipeImagePrefix, collect))
	assert.Empty(t, keys)

	for _, key := range []string{"uploads/recipe/a.png", "uploads/recipe/b.jpg", "uploads/other/c.png"} {
		require.NoError(t, b.Put(ctx, key, strings.NewReader("data"), 4, ""))
	}
	// Leftover temp file from an interrupted upload.
	require.NoError(t, os.WriteFile(filepath.Join(root, "uploads", "recipe", ".upload-123"), []byte("x"), 0o644))

	require.NoError(t, b.List(ctx, RecipeImagePrefix, collect))
	assert.ElementsMatch(t, []string{"uploads/recipe/a.png", "uploads/recipe/b.jpg"}, keys)

	stop := errors.New("stop")
	calls := 0
	err = b.List(ctx, RecipeImagePrefix, func(info ObjectInfo) error {
		calls++
		assert.EqualValues(t, 4, info.Size)
		assert.False(t, info.LastModified.IsZero())
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)

	assert.ErrorIs(t, b.List(ctx, "../outside", collect), ErrInvalidKey)
}

func TestFilesystemBackend_SizeMismatch(t *testing.T) {
	ctx := context.Background()
	b, err := NewFilesystemBackend(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	err = b.Put(ctx, "uploads/recipe/short.png", strings.NewReader("abc"), 10, "image/png")
	require.Error(t, err)

	exists, err := b.Exists(ctx, "uploads/recipe/short.png")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFilesystemBackend_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	b, err := NewFilesystemBackend(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	err = b.Put(ctx, "../escape.png", strings.NewReader("x"), 1, "")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = b.Get(ctx, "/abs.png")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestInspectImage(t *testing.T) {
	var jpegBuf, gifBuf bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpegBuf, testImage(40, 30), nil))
	require.NoError(t, gif.Encode(&gifBuf, testImage(10, 10), nil))

	tests := []struct {
		name      string
		data      []byte
		maxPixels int64
		wantExt   string
		wantType  string
		wantW     int
		wantH     int
		wantErr   bool
		tooLarge  bool
	}{
		{name: "png", data: encodePNG(t, 200, 100), wantExt: "png", wantType: "image/png", wantW: 200, wantH: 100},
		{name: "jpeg", data: jpegBuf.Bytes(), wantExt: "jpg", wantType: "image/jpeg", wantW: 40, wantH: 30},
		{name: "gif", data: gifBuf.Bytes(), wantExt: "gif", wantType: "image/gif", wantW: 10, wantH: 10},
		{name: "text", data: []byte("notimage"), wantErr: true},
		{name: "empty", data: nil, wantErr: true},
		{name: "at pixel cap", data: encodePNG(t, 200, 100), maxPixels: 20000, wantExt: "png", wantType: "image/png", wantW: 200, wantH: 100},
		{name: "over pixel cap", data: encodePNG(t, 200, 101), maxPixels: 20000, wantErr: true, tooLarge: true},
		{name: "huge declared dimensions", data: pngHeader(20000, 20000), maxPixels: 25_000_000, wantErr: true, tooLarge: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := InspectImage(tt.data, tt.maxPixels)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedImage)
				if tt.tooLarge {
					assert.ErrorIs(t, err, ErrImageTooLarge)
				} else {
					assert.NotErrorIs(t, err, ErrImageTooLarge)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExt, info.Ext)
			assert.Equal(t, tt.wantType, info.ContentType)
			assert.Equal(t, tt.wantW, info.Width)
			assert.Equal(t, tt.wantH, info.Height)
			assert.NotEmpty(t, info.BlurHash)
		})
	}
}

func TestResizeForBlurHash(t *testing.T) {
	small := testImage(32, 16)
	assert.Same(t, small, resizeForBlurHash(small))

	wide := resizeForBlurHash(testImage(640, 10)).Bounds()
	assert.Equal(t, blurHashSize, wide.Dx())
	assert.Equal(t, 1, wide.Dy())

	tall := resizeForBlurHash(testImage(100, 400)).Bounds()
	assert.Equal(t, 16, tall.Dx())
	assert.Equal(t, blurHashSize, tall.Dy())
}

func TestContentTypeForKey(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentTypeForKey("uploads/recipe/a.jpg"))
	assert.Equal(t, "image/webp", ContentTypeForKey("uploads/recipe/a.webp"))
	assert.Equal(t, "application/octet-stream", ContentTypeForKey("uploads/recipe/a"))
}

// TestS3Backend_RoundTrip runs against an S3-compatible endpoint such as
// MinIO when RECIPE_TEST_S3_ENDPOINT is set.
func TestS3Backend_RoundTrip(t *testing.T) {
	endpoint := os.Getenv("RECIPE_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("RECIPE_TEST_S3_ENDPOINT not set")
	}

	ctx := context.Background()
	b, err := NewS3Backend(ctx, config.S3StorageConfig{
		Endpoint:        endpoint,
		Region:          "us-east-1",
		Bucket:          os.Getenv("RECIPE_TEST_S3_BUCKET"),
		AccessKeyID:     os.Getenv("RECIPE_TEST_S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("RECIPE_TEST_S3_SECRET_ACCESS_KEY"),
		UsePathStyle:    true,
	}, zerolog.Nop())
	require.NoError(t, err)

	key := NewRecipeImageKey("png")
	data := encodePNG(t, 8, 8)

	require.NoError(t, b.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "image/png"))
	t.Cleanup(func() { _ = b.Delete(context.Background(), key) })

	exists, err := b.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := b.Get(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, data, got)

	found := false
	require.NoError(t, b.List(ctx, RecipeImagePrefix, func(info ObjectInfo) error {
		if info.Key == key {
			found = true
			assert.EqualValues(t, len(data), info.Size)
		}
		return nil
	}))
	assert.True(t, found)

	require.NoError(t, b.Delete(ctx, key))
	_, err = b.Get(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
