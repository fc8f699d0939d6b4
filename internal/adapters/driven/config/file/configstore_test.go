package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*ConfigStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	return store, dir
}

func TestNewConfigStore_Success(t *testing.T) {
	store, dir := newStore(t)

	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
}

func TestNewConfigStoreAt_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "custom.toml")

	store, err := NewConfigStoreAt(path)

	require.NoError(t, err)
	assert.Equal(t, path, store.Path())
	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewConfigStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".webrage", "config.toml"), store.Path())
}

func TestConfigStore_NestedTables(t *testing.T) {
	dir := t.TempDir()
	content := `
[retrieval]
top_k = 7
mode = "local"

[research]
min_improvement = 0.1
max_rounds = 4

[timeouts]
websearch = "20s"
llm = 90

[websearch]
fetch_pages = true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, 7, store.GetInt("retrieval.top_k"))
	assert.Equal(t, "local", store.GetString("retrieval.mode"))
	assert.InDelta(t, 0.1, store.GetFloat("research.min_improvement"), 1e-12)
	assert.InDelta(t, 4.0, store.GetFloat("research.max_rounds"), 1e-12)
	assert.Equal(t, 20*time.Second, store.GetDuration("timeouts.websearch"))
	assert.Equal(t, 90*time.Second, store.GetDuration("timeouts.llm"))
	assert.True(t, store.GetBool("websearch.fetch_pages"))
}

func TestConfigStore_SetWritesTables(t *testing.T) {
	store, dir := newStore(t)

	require.NoError(t, store.Set("retrieval.top_k", 9))
	require.NoError(t, store.Set("retrieval.mode", "web"))
	require.NoError(t, store.Set("store.backend", "sqlite"))

	data, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[retrieval]")
	assert.NotContains(t, string(data), `'retrieval.top_k'`)

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 9, reloaded.GetInt("retrieval.top_k"))
	assert.Equal(t, "web", reloaded.GetString("retrieval.mode"))
	assert.Equal(t, "sqlite", reloaded.GetString("store.backend"))
}

func TestConfigStore_SetConflictingKeyIsRolledBack(t *testing.T) {
	store, _ := newStore(t)
	require.NoError(t, store.Set("retrieval.top_k", 5))

	err := store.Set("retrieval", "flat")

	require.Error(t, err)
	_, ok := store.Get("retrieval")
	assert.False(t, ok)
	assert.Equal(t, 5, store.GetInt("retrieval.top_k"))
}

func TestConfigStore_SetInvalidKey(t *testing.T) {
	store, _ := newStore(t)

	for _, key := range []string{"", ".a", "a.", "a..b"} {
		assert.Error(t, store.Set(key, 1), key)
	}
}

func TestConfigStore_GetString(t *testing.T) {
	store, _ := newStore(t)
	require.NoError(t, store.Set("string_key", "hello world"))
	require.NoError(t, store.Set("int_key", 42))

	assert.Equal(t, "hello world", store.GetString("string_key"))
	assert.Equal(t, "", store.GetString("nonexistent"))
	assert.Equal(t, "", store.GetString("int_key"))
}

func TestConfigStore_GetInt(t *testing.T) {
	store, _ := newStore(t)

	store.mu.Lock()
	store.data["int64_key"] = int64(9999)
	store.data["whole_float"] = 5.0
	store.data["fraction"] = 5.5
	store.data["string_key"] = "not an int"
	store.mu.Unlock()

	assert.Equal(t, 9999, store.GetInt("int64_key"))
	assert.Equal(t, 5, store.GetInt("whole_float"))
	assert.Equal(t, 0, store.GetInt("fraction"))
	assert.Equal(t, 0, store.GetInt("string_key"))
	assert.Equal(t, 0, store.GetInt("nonexistent"))
}

func TestConfigStore_GetFloat(t *testing.T) {
	store, _ := newStore(t)

	store.mu.Lock()
	store.data["f"] = 0.6
	store.data["i"] = int64(2)
	store.data["s"] = "0.6"
	store.mu.Unlock()

	assert.InDelta(t, 0.6, store.GetFloat("f"), 1e-12)
	assert.InDelta(t, 2.0, store.GetFloat("i"), 1e-12)
	assert.Equal(t, 0.0, store.GetFloat("s"))
	assert.Equal(t, 0.0, store.GetFloat("missing"))
}

func TestConfigStore_GetDuration(t *testing.T) {
	store, _ := newStore(t)

	store.mu.Lock()
	store.data["str"] = "1m30s"
	store.data["secs"] = int64(15)
	store.data["bad"] = "soon"
	store.data["bool"] = true
	store.mu.Unlock()

	assert.Equal(t, 90*time.Second, store.GetDuration("str"))
	assert.Equal(t, 15*time.Second, store.GetDuration("secs"))
	assert.Equal(t, time.Duration(0), store.GetDuration("bad"))
	assert.Equal(t, time.Duration(0), store.GetDuration("bool"))
	assert.Equal(t, time.Duration(0), store.GetDuration("missing"))
}

func TestConfigStore_GetBool(t *testing.T) {
	store, _ := newStore(t)
	require.NoError(t, store.Set("on", true))
	require.NoError(t, store.Set("off", false))
	require.NoError(t, store.Set("string_key", "true"))

	assert.True(t, store.GetBool("on"))
	assert.False(t, store.GetBool("off"))
	assert.False(t, store.GetBool("string_key"))
	assert.False(t, store.GetBool("nonexistent"))
}

func TestConfigStore_Persistence(t *testing.T) {
	store1, dir := newStore(t)
	require.NoError(t, store1.Set("key1", "value1"))
	require.NoError(t, store1.Set("key2", 42))
	require.NoError(t, store1.Set("key3", true))
	require.NoError(t, store1.Set("key4", 3.14159))

	store2, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, "value1", store2.GetString("key1"))
	assert.Equal(t, 42, store2.GetInt("key2"))
	assert.True(t, store2.GetBool("key3"))
	assert.InDelta(t, 3.14159, store2.GetFloat("key4"), 1e-5)
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, _ := newStore(t)
	require.NoError(t, store.Set("test", "value"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_EmptyOrCommentOnlyFile(t *testing.T) {
	for _, content := range []string{"", "# Just a comment\n\n"} {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

		store, err := NewConfigStore(dir)
		require.NoError(t, err)

		_, ok := store.Get("any_key")
		assert.False(t, ok)
	}
}

func TestNewConfigStore_LoadCorruptedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("this is not valid TOML {{{[["), 0600))

	store, err := NewConfigStore(dir)

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/create/dirs")

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_SetWithUnmarshallableValue(t *testing.T) {
	store, _ := newStore(t)

	err := store.Set("channel", make(chan int))

	assert.Error(t, err)
	_, ok := store.Get("channel")
	assert.False(t, ok)
}

func TestConfigStore_Save_WriteFileError(t *testing.T) {
	store, _ := newStore(t)
	require.NoError(t, store.Set("test", "value"))

	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, os.Mkdir(store.Path(), 0700))

	assert.Error(t, store.Save())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, _ := newStore(t)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := "group.key" + string(rune('0'+i))
			_ = store.Set(key, i)
			_ = store.GetInt(key)
			_ = store.GetString(key)
			_ = store.GetDuration(key)
		}()
	}
	wg.Wait()

	for i := range 10 {
		assert.Equal(t, i, store.GetInt("group.key"+string(rune('0'+i))))
	}
}
