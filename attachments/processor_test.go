package attachments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/threadrunner/config"
	"github.com/kadirpekel/threadrunner/storage"
	"github.com/kadirpekel/threadrunner/thread"
	"github.com/kadirpekel/threadrunner/tools"
)

func newTestRegistry(t *testing.T) *tools.ToolRegistry {
	t.Helper()
	reg := tools.NewToolRegistry()
	repo := tools.NewLocalToolRepository("local")
	require.NoError(t, repo.RegisterTool(tools.NewReadFileTool()))
	require.NoError(t, reg.RegisterRepository(repo))
	return reg
}

func newTestFileStore(t *testing.T) storage.FileStore {
	t.Helper()
	fs, err := storage.NewLocalFileStore(config.FileStoreConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	return fs
}

func TestProcessor_ImageAttachment_EncodesBase64(t *testing.T) {
	p := NewProcessor(nil, newTestFileStore(t))

	png := []byte("\x89PNG\r\n\x1a\n" + "fake-image-bytes")
	att := thread.NewAttachment("pic.png", png, "image/png")
	msg := &thread.Message{Attachments: []*thread.Attachment{att}}

	require.NoError(t, p.ProcessMessage(context.Background(), msg))

	require.NotNil(t, att.ProcessedContent)
	assert.Equal(t, "image", att.ProcessedContent["type"])
	assert.Equal(t, "image/png", att.ProcessedContent["mime_type"])
	assert.NotEmpty(t, att.ProcessedContent["content"])
	assert.Equal(t, thread.AttachmentStored, att.Status)
}

func TestProcessor_DocumentAttachment_DispatchesReadFileTool(t *testing.T) {
	p := NewProcessor(newTestRegistry(t), newTestFileStore(t))

	att := thread.NewAttachment("notes.txt", []byte("hello world"), "text/plain")
	msg := &thread.Message{Attachments: []*thread.Attachment{att}}

	require.NoError(t, p.ProcessMessage(context.Background(), msg))

	require.NotNil(t, att.ProcessedContent)
	assert.Equal(t, "document", att.ProcessedContent["type"])
	assert.Equal(t, "hello world", att.ProcessedContent["content"])
	assert.Equal(t, thread.AttachmentStored, att.Status)
}

func TestProcessor_UnsupportedMimeType_RecordsErrorWithoutAborting(t *testing.T) {
	p := NewProcessor(newTestRegistry(t), newTestFileStore(t))

	att := thread.NewAttachment("archive.zip", []byte("PK\x03\x04fakezip"), "application/zip")
	msg := &thread.Message{Attachments: []*thread.Attachment{att}}

	require.NoError(t, p.ProcessMessage(context.Background(), msg))

	require.NotNil(t, att.ProcessedContent)
	assert.Contains(t, att.ProcessedContent["error"], "Failed to process file")
}

func TestProcessor_NoToolRegistry_RecordsErrorForDocuments(t *testing.T) {
	p := NewProcessor(nil, newTestFileStore(t))

	att := thread.NewAttachment("notes.txt", []byte("hello"), "text/plain")
	msg := &thread.Message{Attachments: []*thread.Attachment{att}}

	require.NoError(t, p.ProcessMessage(context.Background(), msg))

	require.NotNil(t, att.ProcessedContent)
	assert.Contains(t, att.ProcessedContent["error"], "no read-file tool registered")
}

func TestProcessor_MissingBytesAndFileID_RecordsError(t *testing.T) {
	p := NewProcessor(nil, newTestFileStore(t))

	att := &thread.Attachment{Filename: "ghost.txt", MimeType: "text/plain"}
	msg := &thread.Message{Attachments: []*thread.Attachment{att}}

	require.NoError(t, p.ProcessMessage(context.Background(), msg))

	require.NotNil(t, att.ProcessedContent)
	assert.Contains(t, att.ProcessedContent["error"], "Failed to process file")
}

func TestProcessor_AlreadyStoredAttachment_SkipsResave(t *testing.T) {
	fs := newTestFileStore(t)
	p := NewProcessor(newTestRegistry(t), fs)

	att := thread.NewAttachment("notes.txt", []byte("hello again"), "text/plain")
	msg := &thread.Message{Attachments: []*thread.Attachment{att}}
	require.NoError(t, p.ProcessMessage(context.Background(), msg))

	firstFileID := att.FileID
	require.NoError(t, p.ProcessMessage(context.Background(), msg))
	assert.Equal(t, firstFileID, att.FileID)
}
