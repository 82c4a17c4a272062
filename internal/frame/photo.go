package frame

import (
	"bytes"
	"fmt"
	"image"
	"os"

	"github.com/gabriel-vasile/mimetype"

	"petscan/internal/services"
)

// MaxPhotoBytes bounds picked photo files.
const MaxPhotoBytes = 10 << 20

// MinPhotoSide is the smallest width or height the matcher accepts.
const MinPhotoSide = 100

var supportedPhotoTypes = []string{"image/jpeg", "image/png"}

// LoadPhoto reads and validates a picked photo file.
func LoadPhoto(path string) (Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Image{}, services.Wrap(services.ErrValidation, "frame", "load photo", path, err)
	}
	if info.IsDir() {
		return Image{}, services.Wrap(services.ErrValidation, "frame", "load photo", path+" is a directory", nil)
	}
	if info.Size() > MaxPhotoBytes {
		return Image{}, services.Wrap(services.ErrValidation, "frame", "load photo",
			fmt.Sprintf("%s exceeds %d MiB", path, MaxPhotoBytes>>20), nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, services.Wrap(services.ErrValidation, "frame", "load photo", path, err)
	}
	return DecodePhoto(data)
}

// DecodePhoto validates photo bytes and returns them unchanged as an Image.
// No re-encoding happens; the matcher receives the original file.
func DecodePhoto(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, services.Wrap(services.ErrValidation, "frame", "decode photo", "empty file", nil)
	}
	if len(data) > MaxPhotoBytes {
		return Image{}, services.Wrap(services.ErrValidation, "frame", "decode photo", "photo too large", nil)
	}
	detected := mimetype.Detect(data)
	if !mimetype.EqualsAny(detected.String(), supportedPhotoTypes...) {
		return Image{}, services.Wrap(services.ErrValidation, "frame", "decode photo",
			fmt.Sprintf("unsupported photo type %s (use JPEG or PNG)", detected.String()), nil)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, services.Wrap(services.ErrValidation, "frame", "decode photo", "unreadable image", err)
	}
	if cfg.Width < MinPhotoSide || cfg.Height < MinPhotoSide {
		return Image{}, services.Wrap(services.ErrValidation, "frame", "decode photo",
			fmt.Sprintf("photo is %dx%d; at least %dx%d is required", cfg.Width, cfg.Height, MinPhotoSide, MinPhotoSide), nil)
	}
	return Image{
		Data:   bytes.Clone(data),
		Width:  cfg.Width,
		Height: cfg.Height,
		MIME:   detected.String(),
	}, nil
}
