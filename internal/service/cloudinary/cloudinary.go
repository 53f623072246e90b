package cloudinarysrv

import (
	"context"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/wambuik/chamaflow/internal/service"
)

type cloudinaryService struct {
	client *cloudinary.Cloudinary
}

// Upload implements service.Media.
func (c *cloudinaryService) Upload(ctx context.Context, file *multipart.FileHeader, folder string) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	uploadResult, err := c.client.Upload.Upload(ctx, src, uploader.UploadParams{
		Folder:    folder,
		PublicID:  generatePublicID(file.Filename),
		Overwrite: func(b bool) *bool { return &b }(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}

	return uploadResult.SecureURL, nil
}

func NewCloudinaryService(client *cloudinary.Cloudinary) service.Media {
	return &cloudinaryService{
		client: client,
	}
}

// generatePublicID makes the stored name unique even when two members upload
// files with the same filename.
func generatePublicID(filename string) string {
	return filename[:len(filename)-len(filepath.Ext(filename))] + "_" + fmt.Sprintf("%d", time.Now().Unix())
}
