package tools

import (
	"errors"
	"fmt"

	"github.com/hession/filedesk/internal/workspace"
)

// ReadTextFileTool reads a text file from the agent workspace
type ReadTextFileTool struct {
	store *workspace.Store
}

func NewReadTextFileTool(store *workspace.Store) *ReadTextFileTool {
	return &ReadTextFileTool{store: store}
}

func (t *ReadTextFileTool) Name() string {
	return "read_text_file"
}

func (t *ReadTextFileTool) Description() string {
	return "Read the full content of a text file in the agent workspace. The filename is relative to the workspace root."
}

func (t *ReadTextFileTool) Parameters() []ParameterDef {
	return []ParameterDef{
		{
			Name:        "filename",
			Type:        "string",
			Description: "The file to read, relative to the workspace root (e.g. notes.txt or data/report.txt)",
			Required:    true,
		},
	}
}

func (t *ReadTextFileTool) Execute(args map[string]any) (string, error) {
	filename, ok := stringArg(args, "filename")
	if !ok || filename == "" {
		return "", fmt.Errorf("missing required parameter: filename")
	}

	content, err := t.store.Read(filename)
	if err != nil {
		return "", describeFileError("read", filename, err)
	}

	return content, nil
}

// WriteTextFileTool creates or overwrites a text file in the agent workspace
type WriteTextFileTool struct {
	store *workspace.Store
}

func NewWriteTextFileTool(store *workspace.Store) *WriteTextFileTool {
	return &WriteTextFileTool{store: store}
}

func (t *WriteTextFileTool) Name() string {
	return "write_text_file"
}

func (t *WriteTextFileTool) Description() string {
	return "Write content to a text file in the agent workspace. Creates the file if it doesn't exist, overwrites if it does."
}

func (t *WriteTextFileTool) Parameters() []ParameterDef {
	return []ParameterDef{
		{
			Name:        "filename",
			Type:        "string",
			Description: "The file to write, relative to the workspace root",
			Required:    true,
		},
		{
			Name:        "content",
			Type:        "string",
			Description: "The text content to write to the file",
			Required:    true,
		},
	}
}

func (t *WriteTextFileTool) Execute(args map[string]any) (string, error) {
	filename, ok := stringArg(args, "filename")
	if !ok || filename == "" {
		return "", fmt.Errorf("missing required parameter: filename")
	}
	content, ok := stringArg(args, "content")
	if !ok {
		return "", fmt.Errorf("missing required parameter: content")
	}

	if err := t.store.Write(filename, content); err != nil {
		return "", describeFileError("write", filename, err)
	}

	return fmt.Sprintf("Successfully wrote file: %s (%d bytes)", filename, len(content)), nil
}

// describeFileError turns a store failure into a message the model can
// act on. The failure stays inside the turn; it never aborts it.
func describeFileError(op, filename string, err error) error {
	switch {
	case errors.Is(err, workspace.ErrPathEscape):
		return fmt.Errorf("invalid or disallowed file path: %s", filename)
	case errors.Is(err, workspace.ErrNotFound):
		return fmt.Errorf("file not found or is not a regular file: %s", filename)
	case errors.Is(err, workspace.ErrNotText):
		return fmt.Errorf("file is not valid UTF-8 text: %s", filename)
	default:
		return fmt.Errorf("failed to %s file %s: %v", op, filename, err)
	}
}
