package tool

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agnivade/levenshtein"
	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

const readFileDescription = `Reads a file from the local filesystem.

Usage:
- The file_path parameter must be workspace-relative or absolute within the sandbox root
- By default, reads up to 2000 lines from the beginning
- You can optionally specify offset and limit for pagination
- Returns file contents with line numbers
- Can read image files and return them as base64 data`

// ReadFileTool implements read_file.
type ReadFileTool struct {
	workDir string
}

// ReadFileInput is the input for read_file.
type ReadFileInput struct {
	FilePath string `json:"filePath"`
	Offset   int    `json:"offset,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// NewReadFileTool creates the read_file tool.
func NewReadFileTool(workDir string) *ReadFileTool {
	return &ReadFileTool{workDir: workDir}
}

func (t *ReadFileTool) ID() string          { return "read_file" }
func (t *ReadFileTool) Description() string { return readFileDescription }

func (t *ReadFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"filePath": {"type": "string", "description": "Path to the file to read"},
			"offset": {"type": "integer", "description": "Line number to start reading from"},
			"limit": {"type": "integer", "description": "Number of lines to read (default: 2000)"}
		},
		"required": ["filePath"]
	}`)
}

func (t *ReadFileTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params ReadFileInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	path, err := resolveSandboxPath(t.workDir, toolCtx, params.FilePath)
	if err != nil {
		return nil, err
	}

	if params.Limit <= 0 {
		params.Limit = 2000
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file not found: %s", params.FilePath)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", params.FilePath)
	}

	if isImageFile(path) {
		return t.readImage(path)
	}
	if isBinaryFile(path) {
		return nil, fmt.Errorf("file appears to be binary")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		if params.Offset > 0 && lineNum < params.Offset {
			continue
		}
		if len(lines) >= params.Limit {
			break
		}
		line := scanner.Text()
		if len(line) > 2000 {
			line = line[:2000] + "..."
		}
		lines = append(lines, fmt.Sprintf("%05d| %s", lineNum, line))
	}

	var sb strings.Builder
	sb.WriteString("<file>\n")
	sb.WriteString(strings.Join(lines, "\n"))

	lastReadLine := params.Offset + len(lines)
	if lineNum > lastReadLine {
		sb.WriteString(fmt.Sprintf("\n\n(File has more lines. Use 'offset' parameter to read beyond line %d)", lastReadLine))
	} else {
		sb.WriteString(fmt.Sprintf("\n\n(End of file - total %d lines)", lineNum))
	}
	sb.WriteString("\n</file>")

	return &Result{
		Title:  fmt.Sprintf("Read %s", filepath.Base(path)),
		Output: sb.String(),
		Metadata: map[string]any{
			"file":       params.FilePath,
			"lines":      len(lines),
			"totalLines": lineNum,
		},
	}, nil
}

func (t *ReadFileTool) readImage(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	mediaType := detectMediaType(path)
	dataURL := fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data))
	return &Result{
		Title:  fmt.Sprintf("Read %s", filepath.Base(path)),
		Output: "(Image file)",
		Attachments: []Attachment{
			{Filename: filepath.Base(path), MediaType: mediaType, URL: dataURL},
		},
	}, nil
}

func (t *ReadFileTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

func isImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".jpg" || ext == ".jpeg" || ext == ".png" || ext == ".gif" || ext == ".bmp" || ext == ".webp"
}

func isBinaryFile(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	buf := make([]byte, 8000)
	n, _ := file.Read(buf)
	if n == 0 {
		return false
	}
	for i := 0; i < n; i++ {
		if buf[i] == 0 {
			return true
		}
	}
	nonPrintable := 0
	for i := 0; i < n; i++ {
		if buf[i] < 32 && buf[i] != '\n' && buf[i] != '\r' && buf[i] != '\t' {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(n) > 0.3
}

func detectMediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// resolveSandboxPath joins relPath onto the tool's work dir (or the
// context's sandbox root when set) and rejects any result that escapes
// it, whether via ".." segments or an absolute path pointing elsewhere.
func resolveSandboxPath(workDir string, toolCtx *Context, relPath string) (string, error) {
	root := workDir
	if toolCtx != nil && toolCtx.SandboxRoot != "" {
		root = toolCtx.SandboxRoot
	}
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid sandbox root: %w", err)
	}

	var full string
	if filepath.IsAbs(relPath) {
		full = filepath.Clean(relPath)
	} else {
		full = filepath.Clean(filepath.Join(root, relPath))
	}

	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes sandbox root: %s", relPath)
	}
	return full, nil
}

// --- write_file ---

const writeFileDescription = `Writes content to a file, subject to human-in-the-loop approval.

Usage:
- The file_path parameter must be workspace-relative or absolute within the sandbox root
- This tool will overwrite existing files
- Parent directories will be created if they don't exist
- A write outside the sandbox root, or one the approval gate rejects or
  lets expire, fails without touching the filesystem`

// WriteFileTool implements write_file.
type WriteFileTool struct {
	workDir string
}

// WriteFileInput is the input for write_file.
type WriteFileInput struct {
	FilePath string `json:"filePath"`
	Content  string `json:"content"`
}

// NewWriteFileTool creates the write_file tool.
func NewWriteFileTool(workDir string) *WriteFileTool {
	return &WriteFileTool{workDir: workDir}
}

func (t *WriteFileTool) ID() string          { return "write_file" }
func (t *WriteFileTool) Description() string { return writeFileDescription }

func (t *WriteFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"filePath": {"type": "string", "description": "Path to the file to write"},
			"content": {"type": "string", "description": "The content to write to the file"}
		},
		"required": ["filePath", "content"]
	}`)
}

func (t *WriteFileTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params WriteFileInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	path, err := resolveSandboxPath(t.workDir, toolCtx, params.FilePath)
	if err != nil {
		return nil, err
	}

	before := ""
	if existing, err := os.ReadFile(path); err == nil {
		before = string(existing)
	}
	diffText, additions, deletions := buildDiffMetadata(path, before, params.Content, t.workDir)

	if err := requestFileApproval(ctx, toolCtx, types.ApprovalWriteFile, path, params.Content, diffText); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(params.Content), 0644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &Result{
		Title:  fmt.Sprintf("Wrote %s", filepath.Base(path)),
		Output: fmt.Sprintf("Successfully wrote %d bytes to %s", len(params.Content), params.FilePath),
		Metadata: map[string]any{
			"file":      params.FilePath,
			"bytes":     len(params.Content),
			"additions": additions,
			"deletions": deletions,
		},
	}, nil
}

func (t *WriteFileTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// requestFileApproval routes a write or edit through the gate attached
// to toolCtx, using the permission configured for that kind. A nil gate
// (tests, or tool use outside the orchestrator) runs ungated.
func requestFileApproval(ctx context.Context, toolCtx *Context, kind types.ApprovalKind, path, content, diff string) error {
	if toolCtx == nil || toolCtx.Gate == nil {
		return nil
	}

	configured := toolCtx.WritePermission
	if kind == types.ApprovalEditFile {
		configured = toolCtx.EditPermission
	}

	req := types.ApprovalRequest{
		SessionID:       toolCtx.SessionID,
		Kind:            kind,
		TargetPath:      path,
		ProposedContent: content,
		Diff:            diff,
	}

	status, err := toolCtx.Gate.RequestApproval(ctx, req, configured)
	switch status {
	case types.ApprovalApproved:
		return nil
	case types.ApprovalRejected:
		return fmt.Errorf("approval-rejected: %s was not approved", path)
	case types.ApprovalExpired:
		return fmt.Errorf("approval-expired: approval for %s timed out", path)
	default:
		if err != nil {
			return fmt.Errorf("approval request failed: %w", err)
		}
		return fmt.Errorf("approval-rejected: unexpected status %q for %s", status, path)
	}
}

// --- edit_file ---

const editFileDescription = `Performs exact string replacements in files, subject to human-in-the-loop approval.

Usage:
- The file_path parameter must be workspace-relative or absolute within the sandbox root
- The old_string must exist in the file (exact match required)
- The new_string will replace old_string
- Use replace_all to replace all occurrences
- The edit will FAIL if old_string is not unique (unless using replace_all)`

// EditFileTool implements edit_file.
type EditFileTool struct {
	workDir string
}

// EditFileInput is the input for edit_file.
type EditFileInput struct {
	FilePath   string `json:"filePath"`
	OldString  string `json:"oldString"`
	NewString  string `json:"newString"`
	ReplaceAll bool   `json:"replaceAll,omitempty"`
}

// NewEditFileTool creates the edit_file tool.
func NewEditFileTool(workDir string) *EditFileTool {
	return &EditFileTool{workDir: workDir}
}

func (t *EditFileTool) ID() string          { return "edit_file" }
func (t *EditFileTool) Description() string { return editFileDescription }

func (t *EditFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"filePath": {"type": "string", "description": "Path to the file to edit"},
			"oldString": {"type": "string", "description": "The exact text to replace"},
			"newString": {"type": "string", "description": "The text to replace it with"},
			"replaceAll": {"type": "boolean", "description": "Replace all occurrences (default: false)"}
		},
		"required": ["filePath", "oldString", "newString"]
	}`)
}

func (t *EditFileTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params EditFileInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if params.OldString == params.NewString {
		return nil, fmt.Errorf("old_string and new_string must be different")
	}

	path, err := resolveSandboxPath(t.workDir, toolCtx, params.FilePath)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	text := string(content)

	newText, count, err := applyEdit(text, params)
	if err != nil {
		return nil, err
	}

	diffText, additions, deletions := buildDiffMetadata(path, text, newText, t.workDir)
	if err := requestFileApproval(ctx, toolCtx, types.ApprovalEditFile, path, newText, diffText); err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, []byte(newText), 0644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &Result{
		Title:  fmt.Sprintf("Edited %s", filepath.Base(path)),
		Output: fmt.Sprintf("Replaced %d occurrence(s)", count),
		Metadata: map[string]any{
			"file":         params.FilePath,
			"replacements": count,
			"additions":    additions,
			"deletions":    deletions,
		},
	}, nil
}

// applyEdit resolves old_string against text by exact match, falling
// back to line-ending-normalized and then fuzzy matching.
func applyEdit(text string, params EditFileInput) (string, int, error) {
	if params.ReplaceAll {
		count := strings.Count(text, params.OldString)
		if count > 0 {
			return strings.ReplaceAll(text, params.OldString, params.NewString), count, nil
		}
	} else {
		count := strings.Count(text, params.OldString)
		if count == 1 {
			return strings.Replace(text, params.OldString, params.NewString, 1), 1, nil
		}
		if count > 1 {
			return "", 0, fmt.Errorf("old_string appears %d times in file. Use replace_all or provide more context", count)
		}
	}

	normalizedOld := normalizeLineEndings(params.OldString)
	normalizedText := normalizeLineEndings(text)
	if strings.Contains(normalizedText, normalizedOld) {
		return strings.Replace(normalizedText, normalizedOld, params.NewString, 1), 1, nil
	}

	match, sim := findBestMatch(text, params.OldString)
	if match != "" && sim >= 0.7 {
		return strings.Replace(text, match, params.NewString, 1), 1, nil
	}

	return "", 0, fmt.Errorf("old_string not found in file. The content may have changed or the string doesn't exist")
}

func normalizeLineEndings(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func findBestMatch(text, target string) (string, float64) {
	lines := strings.Split(text, "\n")
	targetLines := strings.Split(target, "\n")

	if len(targetLines) == 1 {
		bestMatch, bestSimilarity := "", 0.0
		for _, line := range lines {
			if sim := similarity(line, target); sim > bestSimilarity {
				bestSimilarity, bestMatch = sim, line
			}
		}
		return bestMatch, bestSimilarity
	}

	targetLen := len(targetLines)
	bestMatch, bestSimilarity := "", 0.0
	for i := 0; i <= len(lines)-targetLen; i++ {
		block := strings.Join(lines[i:i+targetLen], "\n")
		if sim := similarity(block, target); sim > bestSimilarity {
			bestSimilarity, bestMatch = sim, block
		}
	}
	return bestMatch, bestSimilarity
}

// similarity computes normalized Levenshtein similarity.
func similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	if len(a) > 10000 || len(b) > 10000 {
		maxLen := max(len(a), len(b))
		minLen := min(len(a), len(b))
		return float64(minLen) / float64(maxLen)
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := max(len(a), len(b))
	return 1.0 - float64(dist)/float64(maxLen)
}

func (t *EditFileTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }
