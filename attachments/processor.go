// Package attachments implements MIME detection and content processing for
// file-bearing messages: image attachments are inlined as base64, documents
// are dispatched to the registered read-file tool, and unsupported or
// erroring files get an inline error marker rather than aborting the turn.
package attachments

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/kadirpekel/threadrunner/storage"
	"github.com/kadirpekel/threadrunner/thread"
	"github.com/kadirpekel/threadrunner/tools"
)

const readFileToolName = "read-file"

// Processor fills in ProcessedContent for every attachment of a message.
// Both collaborators are optional: a nil toolRegistry makes document
// attachments fail with a processing error instead of a tool lookup, and a
// nil fileStore skips persistence (the caller is then responsible for it).
type Processor struct {
	toolRegistry *tools.ToolRegistry
	fileStore    storage.FileStore
}

// NewProcessor builds an attachment processor.
func NewProcessor(toolRegistry *tools.ToolRegistry, fileStore storage.FileStore) *Processor {
	return &Processor{toolRegistry: toolRegistry, fileStore: fileStore}
}

// ProcessMessage fills ProcessedContent for every attachment on msg and
// ensures each is persisted to the file store. A processing failure is
// recorded inline on that attachment and never aborts the others; a file
// store error is returned at once and the remaining attachments are not
// processed.
func (p *Processor) ProcessMessage(ctx context.Context, msg *thread.Message) error {
	for _, att := range msg.Attachments {
		if err := p.processAttachment(ctx, att); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) processAttachment(ctx context.Context, att *thread.Attachment) error {
	content, err := p.resolveBytes(ctx, att)
	if err != nil {
		att.ProcessedContent = map[string]interface{}{
			"error": fmt.Sprintf("Failed to process file: %v", err),
		}
		return nil
	}

	mimeType := att.MimeType
	if mimeType == "" {
		mimeType = mimetype.Detect(content).String()
		att.MimeType = mimeType
	}

	switch {
	case strings.HasPrefix(mimeType, "image/"):
		att.ProcessedContent = map[string]interface{}{
			"type":      "image",
			"content":   base64.StdEncoding.EncodeToString(content),
			"mime_type": mimeType,
		}
	default:
		p.processDocument(ctx, att, mimeType, content)
	}

	return p.ensureStored(ctx, att, content)
}

// resolveBytes returns the attachment's content, reading it from the file
// store when it was not supplied in-memory.
func (p *Processor) resolveBytes(ctx context.Context, att *thread.Attachment) ([]byte, error) {
	if len(att.Bytes) > 0 {
		return att.Bytes, nil
	}
	if att.FileID != "" && p.fileStore != nil {
		data, err := p.fileStore.Get(ctx, att.FileID)
		if err != nil {
			return nil, fmt.Errorf("reading stored attachment: %w", err)
		}
		att.Bytes = data
		return data, nil
	}
	return nil, fmt.Errorf("attachment %q has no bytes and no stored file id", att.Filename)
}

// processDocument dispatches non-image attachments to the read-file tool,
// recording the tool's content as processed_content, or an inline error if
// the tool is unavailable, unsupported, or fails. The read-file tool reads
// from a local path, so the attachment's bytes are staged to a scratch file
// for the duration of the call rather than requiring the permanent file
// store's (possibly remote) storage path to be locally readable.
func (p *Processor) processDocument(ctx context.Context, att *thread.Attachment, mimeType string, content []byte) {
	if p.toolRegistry == nil {
		att.ProcessedContent = map[string]interface{}{
			"error": "Failed to process file: no read-file tool registered",
		}
		return
	}

	scratchPath, cleanup, err := stageScratchFile(att.Filename, content)
	if err != nil {
		att.ProcessedContent = map[string]interface{}{
			"error": fmt.Sprintf("Failed to process file: %v", err),
		}
		return
	}
	defer cleanup()

	result, err := p.toolRegistry.ExecuteTool(ctx, readFileToolName, map[string]interface{}{
		"file_url":  scratchPath,
		"mime_type": mimeType,
	})
	if err != nil {
		att.ProcessedContent = map[string]interface{}{
			"error": fmt.Sprintf("Failed to process file: %v", err),
		}
		return
	}
	if !result.Success {
		att.ProcessedContent = map[string]interface{}{
			"error": fmt.Sprintf("Failed to process file: %s", result.Error),
		}
		return
	}

	att.ProcessedContent = map[string]interface{}{
		"type":      "document",
		"content":   result.Content,
		"mime_type": mimeType,
	}
}

// stageScratchFile writes content to a temp file preserving filename's
// extension (extraction in tools/read_file.go dispatches by declared mime
// type, not extension, but keeping it aids debugging of stray temp files).
func stageScratchFile(filename string, content []byte) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", "attachment-*-"+filename)
	if err != nil {
		return "", nil, fmt.Errorf("staging scratch file: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("writing scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("closing scratch file: %w", err)
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

// ensureStored writes the attachment's bytes to the file store if it has
// not already been persisted.
func (p *Processor) ensureStored(ctx context.Context, att *thread.Attachment, content []byte) error {
	if p.fileStore == nil || att.Status == thread.AttachmentStored {
		return nil
	}
	meta, err := p.fileStore.Save(ctx, att.Filename, content, att.MimeType)
	if err != nil {
		att.Status = thread.AttachmentFailed
		return fmt.Errorf("storing attachment: %w", err)
	}
	att.FileID = meta.ID
	att.StoragePath = meta.StoragePath
	att.MimeType = meta.MimeType
	att.Status = thread.AttachmentStored
	return nil
}
