package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/threadrunner/config"
)

func TestFileWriterTool_WriteAndOverwriteWithBackup(t *testing.T) {
	dir := t.TempDir()
	tool := NewFileWriterTool(&config.FileWriterToolConfig{WorkingDirectory: dir})

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"path":    "notes.txt",
		"content": "first",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	data, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	result, err = tool.Execute(context.Background(), map[string]interface{}{
		"path":    "notes.txt",
		"content": "second",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	backup, err := os.ReadFile(filepath.Join(dir, "notes.txt.bak"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(backup))
}

func TestFileWriterTool_RejectsDirectoryTraversal(t *testing.T) {
	dir := t.TempDir()
	tool := NewFileWriterTool(&config.FileWriterToolConfig{WorkingDirectory: dir})

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"path":    "../escape.txt",
		"content": "x",
	})
	assert.Error(t, err)
	assert.False(t, result.Success)
}

func TestFileWriterTool_RejectsDisallowedExtension(t *testing.T) {
	dir := t.TempDir()
	tool := NewFileWriterTool(&config.FileWriterToolConfig{
		WorkingDirectory:  dir,
		AllowedExtensions: []string{".txt"},
	})

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"path":    "script.exe",
		"content": "x",
	})
	assert.Error(t, err)
	assert.False(t, result.Success)
}

func TestFileWriterTool_RejectsOversizedContent(t *testing.T) {
	dir := t.TempDir()
	tool := NewFileWriterTool(&config.FileWriterToolConfig{WorkingDirectory: dir, MaxFileSize: 4})

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"path":    "big.txt",
		"content": "too big",
	})
	assert.Error(t, err)
	assert.False(t, result.Success)
}
