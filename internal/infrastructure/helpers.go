package infrastructure

import (
	"bytes"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
)

var (
	pngSignature  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	jpegSignature = []byte{0xFF, 0xD8, 0xFF}
	riffSignature = []byte("RIFF")
	webpSignature = []byte("WEBP")
)

// DetectImageFormat определяет формат изображения по сигнатуре первых байт.
// Content-Type не учитывается: CDN нередко отдает его неверным.
func DetectImageFormat(data []byte) (domain.ImageFormat, error) {
	switch {
	case bytes.HasPrefix(data, pngSignature):
		return domain.ImageFormatPNG, nil
	case bytes.HasPrefix(data, jpegSignature):
		return domain.ImageFormatJPEG, nil
	case len(data) >= 12 && bytes.Equal(data[0:4], riffSignature) && bytes.Equal(data[8:12], webpSignature):
		return domain.ImageFormatWebP, nil
	default:
		return "", e.ErrUnsupportedFormat
	}
}

// ValidateImage проверяет, что изображение непустое, не больше maxSize и имеет поддерживаемый формат.
func ValidateImage(data []byte, maxSize int64) (domain.ImageFormat, error) {
	if len(data) == 0 {
		return "", e.ErrImageEmpty
	}

	if int64(len(data)) > maxSize {
		return "", e.ErrImageTooLarge
	}

	return DetectImageFormat(data)
}
