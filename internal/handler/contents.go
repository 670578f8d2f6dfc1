package handler

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

const maxUploadBytes = 32 << 20

// UploadContent stores a multipart "file" part and answers with the
// contents URL messages can reference.
func (h *Handler) UploadContent(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if header.Size > maxUploadBytes {
		badRequest(c, "file is too large")
		return
	}
	f, err := header.Open()
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(data).String()
	}
	content := h.Store.PutContent(header.Filename, contentType, data)
	c.JSON(http.StatusOK, gin.H{
		"id":  content.ID,
		"url": requestBase(c) + "/v1/contents/" + content.ID,
	})
}

func requestBase(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

// GetContent serves a stored file. HEAD requests get the headers only.
func (h *Handler) GetContent(c *gin.Context) {
	content, ok := h.Store.GetContent(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": content.Filename}))
	if c.Request.Method == http.MethodHead {
		c.Header("Content-Type", content.ContentType)
		c.Header("Content-Length", strconv.Itoa(len(content.Data)))
		c.Status(http.StatusOK)
		return
	}
	c.Data(http.StatusOK, content.ContentType, content.Data)
}
