package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitChange(t *testing.T, changes <-chan Change) Change {
	t.Helper()
	select {
	case change, ok := <-changes:
		require.True(t, ok, "channel closed")
		return change
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for file change event")
		return Change{}
	}
}

func TestNew_DefaultExtensions(t *testing.T) {
	w := New("/tmp/drop")

	assert.Equal(t, "/tmp/drop", w.Root())
	assert.True(t, w.eligible("a.txt"))
	assert.True(t, w.eligible("A.MD"))
	assert.False(t, w.eligible("a.pdf"))

	w = New("/tmp/drop", "rst")
	assert.True(t, w.eligible("notes.rst"))
	assert.False(t, w.eligible("notes.txt"))
}

func TestWatcher_Scan(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	for _, name := range []string{"b.md", "a.txt", "sub/c.txt", ".git/d.txt", ".hidden.txt", "image.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	files, err := New(dir).Scan()

	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.md"),
		filepath.Join(dir, "sub", "c.txt"),
	}, files)
}

func TestWatcher_Watch(t *testing.T) {
	t.Run("create modify delete", func(t *testing.T) {
		dir := t.TempDir()
		w := New(dir)
		defer w.Close()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes, err := w.Watch(ctx)
		require.NoError(t, err)

		path := filepath.Join(dir, "new-file.txt")
		require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

		change := waitChange(t, changes)
		assert.Equal(t, ChangeCreated, change.Type)
		assert.Equal(t, path, change.Path)

		require.NoError(t, os.Remove(path))
		for change = waitChange(t, changes); change.Type != ChangeDeleted; change = waitChange(t, changes) {
			assert.Equal(t, path, change.Path)
		}
		assert.Equal(t, path, change.Path)
	})

	t.Run("ignores other extensions", func(t *testing.T) {
		dir := t.TempDir()
		w := New(dir)
		defer w.Close()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes, err := w.Watch(ctx)
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.bin"), []byte("x"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.md"), []byte("x"), 0o644))

		change := waitChange(t, changes)
		assert.Equal(t, filepath.Join(dir, "keep.md"), change.Path)
	})

	t.Run("non-existent directory", func(t *testing.T) {
		changes, err := New("/non/existent/path").Watch(context.Background())

		assert.Nil(t, changes)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "root path error")
	})

	t.Run("closes channel when context is cancelled", func(t *testing.T) {
		w := New(t.TempDir())
		defer w.Close()
		ctx, cancel := context.WithCancel(context.Background())

		changes, err := w.Watch(ctx)
		require.NoError(t, err)
		cancel()

		select {
		case _, ok := <-changes:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("channel did not close after context cancellation")
		}
	})

	t.Run("closed watcher", func(t *testing.T) {
		w := New(t.TempDir())
		require.NoError(t, w.Close())

		changes, err := w.Watch(context.Background())

		assert.Nil(t, changes)
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestHandleFsEvent(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		create   bool
		dir      bool
		op       fsnotify.Op
		wantNil  bool
		wantType ChangeType
	}{
		{name: "create file", file: "test.txt", create: true, op: fsnotify.Create, wantType: ChangeCreated},
		{name: "write file", file: "test.txt", create: true, op: fsnotify.Write, wantType: ChangeUpdated},
		{name: "remove file", file: "removed.txt", op: fsnotify.Remove, wantType: ChangeDeleted},
		{name: "rename file", file: "renamed.md", op: fsnotify.Rename, wantType: ChangeDeleted},
		{name: "chmod ignored", file: "test.txt", create: true, op: fsnotify.Chmod, wantNil: true},
		{name: "directory ignored", file: "folder.txt", dir: true, op: fsnotify.Create, wantNil: true},
		{name: "hidden file ignored", file: ".hidden.txt", create: true, op: fsnotify.Create, wantNil: true},
		{name: "hidden remove ignored", file: ".hidden.txt", op: fsnotify.Remove, wantNil: true},
		{name: "unsupported extension", file: "doc.pdf", create: true, op: fsnotify.Create, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, tt.file)
			switch {
			case tt.dir:
				require.NoError(t, os.Mkdir(path, 0o755))
			case tt.create:
				require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))
			}

			change := New(dir).handleFsEvent(fsnotify.Event{Name: path, Op: tt.op})

			if tt.wantNil {
				assert.Nil(t, change)
				return
			}
			require.NotNil(t, change)
			assert.Equal(t, tt.wantType, change.Type)
			assert.Equal(t, path, change.Path)
		})
	}
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"file.txt", false},
		{".hidden", true},
		{"dir/.hidden/file", true},
		{".config/.cache/data", true},
		{"/a/.b/.c/file", true},
		{"./file.txt", false},
		{"../file.txt", false},
		{"normal/path/file.md", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isHidden(tt.path), tt.path)
	}
}

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "/Users/test/my documents/file.txt", DocumentID("file:///Users/test/my documents/file.txt"))
	assert.Equal(t, "/var/data/file.txt", DocumentID("/var/data/../data/file.txt"))

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "relative", "file.txt"), DocumentID("relative/file.txt"))
}

func TestChangeType_String(t *testing.T) {
	assert.Equal(t, "created", ChangeCreated.String())
	assert.Equal(t, "updated", ChangeUpdated.String())
	assert.Equal(t, "deleted", ChangeDeleted.String())
	assert.Equal(t, "unknown", ChangeType(9).String())
}
