package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// Download is a fetched protected file.
type Download struct {
	ContentType string
	Data        []byte
}

// ResolveFilePath maps a stored document reference to the folder and file
// name served by the protected files endpoint. It understands
// "/files/<folder>/<name>", "/uploads/.../<folder>/<name>" and bare names,
// which live in "others".
func ResolveFilePath(p string) (folder, filename string) {
	switch {
	case strings.HasPrefix(p, "/files/"):
		parts := strings.Split(p, "/")
		if len(parts) >= 4 {
			return parts[2], parts[3]
		}
		return "others", parts[len(parts)-1]
	case strings.HasPrefix(p, "/uploads/"):
		parts := strings.Split(strings.TrimRight(p, "/"), "/")
		return parts[len(parts)-2], parts[len(parts)-1]
	default:
		return "others", p
	}
}

// FetchFile downloads a protected document.
func (c *Client) FetchFile(ctx context.Context, token, path string) (*Download, error) {
	if token == "" {
		return nil, errors.New("files.fetch: token is required")
	}
	folder, name := ResolveFilePath(path)
	resp, err := c.do(ctx, request{
		name:     "files.fetch",
		method:   http.MethodGet,
		path:     "/api/files/" + url.PathEscape(folder) + "/" + url.PathEscape(name),
		token:    token,
		fallback: "Failed to open file",
	})
	if err != nil {
		return nil, err
	}
	ct := resp.header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &Download{ContentType: ct, Data: resp.body}, nil
}
