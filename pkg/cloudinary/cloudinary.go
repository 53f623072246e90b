package cloudinary

import (
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/wambuik/chamaflow/config"
)

// InitCloudinary builds the Cloudinary client used for KYC photo uploads.
func InitCloudinary(cfg *config.Config) (*cloudinary.Cloudinary, error) {
	if cfg.CLOUDINARY_CLOUD == "" || cfg.CLOUDINARY_API_KEY == "" || cfg.CLOUDINARY_API_SECRET == "" {
		return nil, fmt.Errorf("cloudinary credentials are not configured")
	}

	cld, err := cloudinary.NewFromParams(
		cfg.CLOUDINARY_CLOUD,
		cfg.CLOUDINARY_API_KEY,
		cfg.CLOUDINARY_API_SECRET,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}

	cld.Config.URL.Secure = true
	return cld, nil
}
