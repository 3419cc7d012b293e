package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"assetflow/internal/db"
	"assetflow/internal/models"
	"assetflow/internal/utils"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"assetflow/internal/utils/logger"

	"github.com/labstack/echo/v4"
)

// UploadHandler pushes item images and fault-report attachments to object
// storage. The stored path is attached to the owning record when one is named
// in the form.
type UploadHandler struct {
	log *logger.Logger
	acl types.ObjectCannedACL
}

func NewUploadHandler(acl types.ObjectCannedACL) *UploadHandler {
	if acl == "" {
		acl = types.ObjectCannedACLPublicRead
	}
	return &UploadHandler{
		log: logger.New("upload_handler"),
		acl: acl,
	}
}

// UploadFile handles file uploads to object storage
// @Summary Upload a file
// @Description Upload an item image or report attachment
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Param itemId formData string false "Item to attach the image to"
// @Param reportId formData string false "Fault report to attach the file to"
// @Success 200 {object} map[string]string "File uploaded successfully"
// @Failure 400 {object} map[string]string "Validation error or file not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /api/v1/files/upload [post]
func (h *UploadHandler) UploadFile(c echo.Context) error {
	contentType := c.Request().Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Content-Type must be multipart/form-data",
		})
	}

	storage := GetStorageHandler()
	if storage == nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Storage handler not configured",
		})
	}

	file, err := c.FormFile("file")
	if err != nil {
		h.log.Error("Failed to get file from request", err)
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "No file provided",
		})
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to open file",
		})
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to read file",
		})
	}

	// Prefix the object key so repeated uploads of the same filename don't
	// overwrite each other
	prefix, err := utils.GenerateRandomString(8)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to generate object key",
		})
	}
	objectName := prefix + "-" + file.Filename

	url, err := storage.UploadFile(c.Request().Context(), content, objectName, h.acl, file.Header.Get("Content-Type"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to upload file",
		})
	}
	path := url[strings.LastIndex(url, "/")+1:]

	h.log.Success("File uploaded successfully: %s", url)

	getDb := db.GetDB()

	// Attach to the owning record when one was named
	if itemID := c.FormValue("itemId"); itemID != "" {
		if err := getDb.Model(&models.Item{}).Where("id = ?", itemID).
			Update("image_path", path).Error; err != nil {
			h.log.Error("Failed to attach image to item %s: %v", err, itemID)
			return c.JSON(http.StatusInternalServerError, map[string]interface{}{
				"error": "Failed to attach file to item",
			})
		}
	}
	if reportID := c.FormValue("reportId"); reportID != "" {
		if err := getDb.Model(&models.FaultReport{}).Where("id = ?", reportID).
			Update("attachment_path", path).Error; err != nil {
			h.log.Error("Failed to attach file to report %s: %v", err, reportID)
			return c.JSON(http.StatusInternalServerError, map[string]interface{}{
				"error": "Failed to attach file to report",
			})
		}
	}

	signedURL, err := storage.GetSignedURL(c.Request().Context(), path, time.Hour)
	if err != nil {
		signedURL = url
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":   "File uploaded successfully",
		"path":      path,
		"signedUrl": signedURL,
	})
}
