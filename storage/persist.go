package storage

import (
	"context"

	"github.com/kadirpekel/threadrunner/thread"
)

// stripSystemMessages returns a shallow copy of th with its system message
// (if any) removed: the agent re-injects the system prompt on every turn,
// so it is never written to the thread store.
func stripSystemMessages(th *thread.Thread) *thread.Thread {
	kept := make([]*thread.Message, 0, len(th.Messages))
	for _, m := range th.Messages {
		if m.Role == thread.RoleSystem {
			continue
		}
		kept = append(kept, m)
	}
	return thread.Hydrate(th.ID, th.Title, kept, th.Attributes, th.Source, th.CreatedAt, th.UpdatedAt)
}

// ensureAttachmentsStored writes any pending attachment bytes to fs and
// updates the attachment's FileID/StoragePath/Status in place before a
// thread is persisted. A nil fs is a no-op: attachments are assumed already
// stored by the attachment-processing pipeline.
func ensureAttachmentsStored(ctx context.Context, th *thread.Thread, fs FileStore) error {
	if fs == nil {
		return nil
	}
	for _, m := range th.Messages {
		for _, a := range m.Attachments {
			if a.Status == thread.AttachmentStored {
				continue
			}
			meta, err := fs.Save(ctx, a.Filename, a.Bytes, a.MimeType)
			if err != nil {
				a.Status = thread.AttachmentFailed
				return err
			}
			a.FileID = meta.ID
			a.StoragePath = meta.StoragePath
			a.MimeType = meta.MimeType
			a.Status = thread.AttachmentStored
		}
	}
	return nil
}
