package handler

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	appErrors "github.com/smk-lppmri/portal-api/pkg/errors"
	"github.com/smk-lppmri/portal-api/pkg/response"
	"github.com/smk-lppmri/portal-api/pkg/storage"
)

// FileHandler serves stored material files behind signed expiring tokens.
// The token itself authorizes the download, so these routes are not gated.
type FileHandler struct {
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
}

// NewFileHandler creates a new handler.
func NewFileHandler(store *storage.LocalStorage, signer *storage.SignedURLSigner) *FileHandler {
	return &FileHandler{storage: store, signer: signer}
}

// Download streams the file referenced by a signed token.
func (h *FileHandler) Download(c *gin.Context) {
	_, relPath, _, err := h.signer.Parse(c.Param("token"), false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired file token"))
		return
	}

	file, err := h.storage.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "failed to stat file"))
		return
	}

	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", filepath.Base(relPath)),
	})
}
