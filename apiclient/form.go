package apiclient

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// File is an upload attached to a multipart request.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// ReadFile loads the file at path as an upload.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading upload: %w", err)
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return File{Name: filepath.Base(path), ContentType: ct, Data: data}, nil
}

// Empty reports whether f carries no content.
func (f File) Empty() bool {
	return len(f.Data) == 0
}

type formFile struct {
	field string
	file  File
}

// form accumulates multipart fields in insertion order.
type form struct {
	fields [][2]string
	files  []formFile
}

func (f *form) set(name, value string) *form {
	f.fields = append(f.fields, [2]string{name, value})
	return f
}

func (f *form) setIf(name, value string) *form {
	if value != "" {
		f.set(name, value)
	}
	return f
}

func (f *form) attach(field string, file File) *form {
	if !file.Empty() {
		f.files = append(f.files, formFile{field: field, file: file})
	}
	return f
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (f *form) encode() (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, kv := range f.fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}
	for _, ff := range f.files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(ff.field), quoteEscaper.Replace(ff.file.Name)))
		ct := ff.file.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(ff.file.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
