package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"medlink-server/internal/utils"
)

// upload is a file received in a multipart form.
type upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// IsImage reports whether the sniffed content type is an image.
func (u *upload) IsImage() bool {
	return strings.HasPrefix(u.ContentType, "image/")
}

// readUpload reads the named multipart field. The content type is sniffed
// from the bytes rather than trusted from the client. It writes a 400 and
// returns false when the field is missing, empty or larger than maxBytes.
func readUpload(c *gin.Context, field string, maxBytes int64) (*upload, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+1<<20)

	file, header, err := c.Request.FormFile(field)
	if err != nil {
		utils.BadRequest(c, "Error retrieving file from form: "+err.Error())
		return nil, false
	}
	defer file.Close()

	if header.Size > maxBytes {
		utils.BadRequest(c, fmt.Sprintf("File exceeds the %d MB limit", maxBytes>>20))
		return nil, false
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		utils.BadRequest(c, "Error reading file: "+err.Error())
		return nil, false
	}
	if int64(len(data)) > maxBytes {
		utils.BadRequest(c, fmt.Sprintf("File exceeds the %d MB limit", maxBytes>>20))
		return nil, false
	}
	if len(data) == 0 {
		utils.BadRequest(c, "File is empty")
		return nil, false
	}

	return &upload{
		Name:        filepath.Base(header.Filename),
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}, true
}

// serveFile writes stored bytes as an attachment download.
func serveFile(c *gin.Context, name, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, contentType, data)
}
