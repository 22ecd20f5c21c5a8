package objectstore

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() (*Store, afero.Fs, afero.Fs) {
	out, shared := afero.NewMemMapFs(), afero.NewMemMapFs()
	return New(out, shared, "http://cdn.test/"), out, shared
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "segmented/42.png", Key("segmented", 42, ".png"))
	assert.Equal(t, "expanded-items/42/3.webp", ItemKey("expanded", 42, 3, ".webp"))
	assert.Equal(t, ".jpg", ExtOf("/a/b/IMG.JPG"))
	assert.Equal(t, ".png", ExtOf("/a/b/noext"))
}

func TestStore_OverwritesSameKey(t *testing.T) {
	s, out, _ := newTestStore()
	ctx := context.Background()

	ref, err := s.Store(ctx, []byte("one"), "inpainted/1.png")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.test/inpainted/1.png", ref)

	ref2, err := s.Store(ctx, []byte("two"), "inpainted/1.png")
	require.NoError(t, err)
	assert.Equal(t, ref, ref2)

	b, err := afero.ReadFile(out, "inpainted/1.png")
	require.NoError(t, err)
	assert.Equal(t, "two", string(b))

	entries, err := afero.ReadDir(out, "inpainted")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestStore_RejectsEscapingKeys(t *testing.T) {
	s, _, _ := newTestStore()
	for _, key := range []string{"", "../etc/passwd", "/"} {
		_, err := s.Store(context.Background(), []byte("x"), key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestDelete_IsIdempotent(t *testing.T) {
	s, out, _ := newTestStore()
	ctx := context.Background()
	ref, err := s.Store(ctx, []byte("x"), "original/1.png")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, ref))
	exists, err := afero.Exists(out, "original/1.png")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, s.Delete(ctx, ref))
}

func TestRead(t *testing.T) {
	s, _, shared := newTestStore()
	require.NoError(t, afero.WriteFile(shared, "/work/1/bg.png", []byte("bg"), 0o644))

	b, err := s.Read(context.Background(), "/work/1/bg.png")
	require.NoError(t, err)
	assert.Equal(t, "bg", string(b))

	_, err = s.Read(context.Background(), "/work/1/missing.png")
	assert.Error(t, err)
	_, err = s.Read(context.Background(), " ")
	assert.Error(t, err)
}

func TestNewOS_SharedIsReadOnly(t *testing.T) {
	root, shared := t.TempDir(), t.TempDir()
	s, err := NewOS(root, shared, "")
	require.NoError(t, err)

	ref, err := s.Store(context.Background(), []byte("x"), "segmented/9.png")
	require.NoError(t, err)
	assert.Equal(t, "segmented/9.png", ref)

	assert.Error(t, s.shared.Mkdir("nope", 0o755))

	_, err = NewOS("", "", "")
	assert.Error(t, err)
}
