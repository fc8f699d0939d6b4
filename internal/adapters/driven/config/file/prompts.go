package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
	"github.com/custodia-labs/webrage/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// promptSpec describes one user-editable prompt file.
type promptSpec struct {
	name    string
	purpose string

	// placeholders is the number of %s verbs the template must keep.
	placeholders int
	content      string
}

// builtinPrompts are written to the prompt directory on first use and served
// whenever a user file is missing or malformed.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var builtinPrompts = []promptSpec{
	{
		name:    driven.PromptReformulate,
		purpose: "System prompt for deep research query reformulation",
		content: `You are an AI expert in reformulating user queries in order to provide an equivalent formulation in meaning but different in the form.
Your task is to enhance user queries by generating a single reformulation to improve search results.
Return ONLY the reformulated query on one line, nothing else.`,
	},
	{
		name:    driven.PromptRerankInstruction,
		purpose: "Task line given to instruction-following rerankers",
		content: domain.DefaultRerankInstruction,
	},
	{
		name:         driven.PromptAnswer,
		purpose:      "Frames retrieved evidence for answer generation (query, then evidence)",
		placeholders: 2,
		content: `Using the following search results, provide a comprehensive answer to the query: %s

Search results:
%s`,
	},
}

func builtin(name string) (promptSpec, bool) {
	for _, p := range builtinPrompts {
		if p.name == name {
			return p, true
		}
	}
	return promptSpec{}, false
}

// PromptStore serves prompt templates from <dir>/<name>.txt. The directory
// and default files are created on the first Load; results are cached until
// Reload.
type PromptStore struct {
	dir string

	initOnce sync.Once
	initErr  error

	mu    sync.RWMutex
	cache map[string]string
}

// NewPromptStore creates a prompt store rooted at dir, or ~/.webrage/prompts
// when dir is empty. No I/O happens until the first Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".webrage", "prompts")
	}
	return &PromptStore{dir: dir, cache: make(map[string]string)}, nil
}

// Load returns the template for name. A user file that is missing, empty or
// has lost its placeholders is replaced by the built-in template.
func (s *PromptStore) Load(name string) (string, error) {
	spec, known := builtin(name)
	if !known {
		return "", fmt.Errorf("prompt %q: %w", name, domain.ErrNotFound)
	}

	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		return spec.content, nil
	}

	s.mu.RLock()
	prompt, cached := s.cache[name]
	s.mu.RUnlock()
	if cached {
		return prompt, nil
	}

	prompt = s.read(spec)

	s.mu.Lock()
	if existing, ok := s.cache[name]; ok {
		prompt = existing
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()

	return prompt, nil
}

func (s *PromptStore) read(spec promptSpec) string {
	path := s.path(spec.name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("prompt %s: %v, using built-in", path, err)
		}
		return spec.content
	}

	prompt := strings.TrimSpace(string(data))
	switch {
	case prompt == "":
		logger.Warn("prompt %s is empty, using built-in", path)
		return spec.content
	case strings.Count(prompt, "%s") != spec.placeholders:
		logger.Warn("prompt %s must contain %d %%s placeholder(s), using built-in", path, spec.placeholders)
		return spec.content
	}
	return prompt
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.dir
}

func (s *PromptStore) path(name string) string {
	return filepath.Join(s.dir, name+".txt")
}

// initialise creates the directory, any missing default files and the README.
// Failure leaves the store serving built-in prompts.
func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		logger.Warn("%v, using built-in prompts", s.initErr)
		return
	}

	for _, p := range builtinPrompts {
		if err := writeIfMissing(s.path(p.name), p.content); err != nil {
			s.initErr = fmt.Errorf("create default prompt %q: %w", p.name, err)
			logger.Warn("%v, using built-in prompts", s.initErr)
			return
		}
	}

	if err := writeIfMissing(filepath.Join(s.dir, "README.md"), readme()); err != nil {
		logger.Debug("prompt README: %v", err)
	}
}

func writeIfMissing(path, content string) error {
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

func readme() string {
	var b strings.Builder
	b.WriteString("# webrage prompts\n\nCustomisable prompts used by webrage.\n\n## Files\n\n")
	for _, p := range builtinPrompts {
		fmt.Fprintf(&b, "- `%s.txt` - %s\n", p.name, p.purpose)
	}
	b.WriteString(`
## Customisation

Edit any file to change behaviour. Changes take effect on the next command.
Delete a file to restore its default.

## Format Placeholders

Files that take arguments use Go fmt ` + "`%s`" + ` placeholders. A file whose
placeholder count changes is ignored in favour of the built-in prompt.
`)
	return b.String()
}
