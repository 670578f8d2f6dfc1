package spark

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

// FileClass is how a downloaded file is best interpreted.
type FileClass int

const (
	FileClassBinary FileClass = iota
	FileClassImage
	FileClassModel
)

func (c FileClass) String() string {
	switch c {
	case FileClassImage:
		return "image"
	case FileClassModel:
		return "model"
	default:
		return "binary"
	}
}

var (
	imageExtensions = map[string]bool{
		"psd": true, "tiff": true, "jpg": true, "tga": true, "png": true, "gif": true,
		"bmp": true, "iff": true, "pict": true, "exr": true, "hdr": true,
	}
	modelExtensions = map[string]bool{"obj": true}
)

func classify(extension string) FileClass {
	switch {
	case imageExtensions[extension]:
		return FileClassImage
	case modelExtensions[extension]:
		return FileClassModel
	default:
		return FileClassBinary
	}
}

// File is an attachment of a message, or a public URL to attach to one.
type File struct {
	// URL is the content URL on the service, or a public URL for uploads.
	URL string
	// ID is the content id when URL points at the service's contents
	// resource.
	ID string

	Filename    string
	Extension   string
	ContentType string
	Size        int64
	Class       FileClass
	Data        []byte
}

// NewFileFromURL wraps url. Service content URLs also yield the content id.
func NewFileFromURL(rawURL string) *File {
	f := &File{URL: rawURL}
	if u, err := url.Parse(rawURL); err == nil {
		dir, last := path.Split(u.Path)
		if strings.HasSuffix(dir, "/contents/") && last != "" {
			f.ID = last
		}
	}
	return f
}

// NewFileFromID refers to uploaded content by id.
func NewFileFromID(id string) *File {
	return &File{ID: id}
}

func (f *File) target() (string, error) {
	switch {
	case f.ID != "":
		return "contents/" + url.PathEscape(f.ID), nil
	case f.URL != "":
		return f.URL, nil
	default:
		return "", invalidState(KindUnsupported, "download file", "file id or url required")
	}
}

// DownloadFile fetches the bytes of f and fills in its name, type and class.
func (c *Client) DownloadFile(ctx context.Context, f *File) error {
	target, err := f.target()
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, http.MethodGet, "contents", target, nil, nil)
	if err != nil {
		return err
	}
	f.Data = resp.body
	f.Size = int64(len(resp.body))
	f.describe(resp.header)
	if len(f.Data) > 0 {
		detected := mimetype.Detect(f.Data)
		if f.ContentType == "" || f.ContentType == "application/octet-stream" {
			f.ContentType = detected.String()
		}
		if f.Extension == "" {
			f.Extension = strings.TrimPrefix(detected.Extension(), ".")
			f.Class = classify(f.Extension)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"file":  f.Filename,
		"type":  f.ContentType,
		"class": f.Class.String(),
		"size":  humanize.Bytes(uint64(f.Size)),
	}).Debug("downloaded file")
	return nil
}

// FileInfo reads the headers of f with a HEAD request, without its bytes.
func (c *Client) FileInfo(ctx context.Context, f *File) error {
	target, err := f.target()
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, http.MethodHead, "contents", target, nil, nil)
	if err != nil {
		return err
	}
	if resp.length >= 0 {
		f.Size = resp.length
	}
	f.describe(resp.header)
	return nil
}

// describe applies the Content-Disposition filename and the declared type.
func (f *File) describe(header http.Header) {
	if name := dispositionFilename(header.Get("Content-Disposition")); name != "" {
		f.Filename = name
		if i := strings.LastIndex(name, "."); i >= 0 && i < len(name)-1 {
			f.Extension = strings.ToLower(name[i+1:])
		}
	}
	if ct := header.Get("Content-Type"); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			f.ContentType = mediaType
		}
	}
	f.Class = classify(f.Extension)
}

func dispositionFilename(value string) string {
	if value == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(value); err == nil {
		return params["filename"]
	}
	// Malformed headers still tend to quote the name.
	if parts := strings.Split(value, `"`); len(parts) >= 3 {
		return parts[1]
	}
	return ""
}

// DownloadAvatar fetches p's avatar image. The bytes are kept on p and later
// calls return them unless force is set. Concurrent downloads of one avatar
// share a single request.
func (c *Client) DownloadAvatar(ctx context.Context, p *Person, force bool) (*File, error) {
	p.mu.RLock()
	avatarURL := p.Avatar
	p.mu.RUnlock()
	if avatarURL == "" {
		return nil, invalidState(KindPerson, "download avatar", "person has no avatar")
	}

	cached := func() bool {
		f := p.avatar.Load()
		return f != nil && f.URL == avatarURL
	}
	if !force && cached() {
		return p.avatar.Load(), nil
	}

	key := cacheKey{kind: kindAvatar, id: avatarURL}
	var ready func() bool
	if !force {
		// Runs under the cache lock.
		ready = func() bool { return c.cache.avatars[avatarURL] != nil }
	}
	err := c.cache.once(ctx, key, ready, func(ctx context.Context) error {
		f := NewFileFromURL(avatarURL)
		if err := c.DownloadFile(ctx, f); err != nil {
			return fmt.Errorf("spark: download avatar: %w", err)
		}
		c.cache.setAvatar(avatarURL, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	f := c.cache.avatar(avatarURL)
	if f == nil {
		return nil, invalidState(KindPerson, "download avatar", "avatar download produced no file")
	}
	p.avatar.Store(f)
	return f, nil
}
