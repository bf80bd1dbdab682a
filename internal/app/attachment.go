package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
)

// EncodeAttachment builds a multipart/form-data body that creates an event
// together with one attached file. The event metadata goes in the "event"
// field as JSON; the file content goes in the "file" part.
func EncodeAttachment(event any, filename string, content io.Reader) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return nil, "", fmt.Errorf("marshal event: %w", err)
	}

	eventPart, err := writer.CreateFormField("event")
	if err != nil {
		return nil, "", fmt.Errorf("create event field: %w", err)
	}
	if _, err := eventPart.Write(eventJSON); err != nil {
		return nil, "", fmt.Errorf("write event: %w", err)
	}

	filename = filepath.Base(filename)
	if filename == "." || filename == string(filepath.Separator) {
		filename = "attachment.bin"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     "file",
		"filename": filename,
	}))
	h.Set("Content-Type", contentTypeFor(filename))

	filePart, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create file field: %w", err)
	}
	if _, err := io.Copy(filePart, content); err != nil {
		return nil, "", fmt.Errorf("write file data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize multipart: %w", err)
	}
	return &body, writer.FormDataContentType(), nil
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
