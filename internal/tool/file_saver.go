package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/joss/taskagent/internal/domain"
)

// FileSaver writes content to files confined to a sandbox directory
type FileSaver struct {
	dir  string
	deny []string
}

// NewFileSaver creates a FileSaver rooted at dir. Paths matching any of the
// deny globs (doublestar syntax, relative to dir) are refused.
func NewFileSaver(dir string, deny []string) *FileSaver {
	if dir == "" {
		dir = "sandbox"
	}
	return &FileSaver{dir: dir, deny: deny}
}

func (f *FileSaver) Info() domain.Tool {
	return domain.Tool{
		Name:             NameFileSaver,
		ShortDescription: "Save files locally, such as txt, py, html, etc.",
		Description: `Save content to a local file at a path within the sandbox directory.
Use this tool to store text, code, or generated content on the local filesystem.
All files are written under the sandbox directory.`,
		Parameters: domain.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"content": map[string]any{
					"type":        "string",
					"description": "(required) The content to save to the file.",
				},
				"file_path": map[string]any{
					"type":        "string",
					"description": "(required) The path where the file should be saved, including filename and extension. Created under the sandbox directory.",
				},
				"mode": map[string]any{
					"type":        "string",
					"description": "(optional) The file opening mode. Default is 'w' for write. Use 'a' for append.",
					"enum":        []string{"w", "a"},
					"default":     "w",
				},
			},
			"required": []string{"content", "file_path"},
		},
	}
}

func (f *FileSaver) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	content, ok := args["content"].(string)
	if !ok {
		return nil, ErrInvalidArgs
	}
	rel, err := f.sandboxPath(stringArg(args, "file_path"))
	if err != nil {
		return &Result{Output: err.Error(), Error: err}, nil
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if stringArg(args, "mode") == "a" {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}

	path := filepath.Join(f.dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &Result{Output: fmt.Sprintf("Error saving file: %v", err), Error: err}, nil
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return &Result{Output: fmt.Sprintf("Error saving file: %v", err), Error: err}, nil
	}
	_, err = file.WriteString(content)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &Result{Output: fmt.Sprintf("Error saving file: %v", err), Error: err}, nil
	}

	return &Result{
		Title:  fmt.Sprintf("Saved %s", rel),
		Output: fmt.Sprintf("Content successfully saved to %s", path),
		Metadata: map[string]any{
			"path":  path,
			"bytes": len(content),
		},
	}, nil
}

// sandboxPath normalizes a requested path to one relative to the sandbox
func (f *FileSaver) sandboxPath(requested string) (string, error) {
	if strings.TrimSpace(requested) == "" {
		return "", fmt.Errorf("file_path is empty")
	}

	p := filepath.Clean(filepath.FromSlash(requested))
	p = strings.TrimPrefix(p, filepath.VolumeName(p))
	p = strings.TrimLeft(p, string(filepath.Separator))
	if p == "" || p == "." {
		return "", fmt.Errorf("file_path %q does not name a file", requested)
	}

	for _, seg := range strings.Split(p, string(filepath.Separator)) {
		if seg == ".." {
			return "", fmt.Errorf("path cannot contain '..' to prevent directory traversal")
		}
	}

	slashed := filepath.ToSlash(p)
	for _, pattern := range f.deny {
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return "", fmt.Errorf("path %q is denied by pattern %q", slashed, pattern)
		}
	}
	return p, nil
}

var _ Executor = (*FileSaver)(nil)
