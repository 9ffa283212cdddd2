package domain

import (
	"fmt"
	"strings"
)

// ImageFormat поддерживаемый формат изображения
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "png"
	ImageFormatJPEG ImageFormat = "jpeg"
	ImageFormatWebP ImageFormat = "webp"
)

// ContentType возвращает MIME-тип формата.
func (f ImageFormat) ContentType() string {
	return "image/" + string(f)
}

// Extension возвращает расширение файла для ключа объекта.
func (f ImageFormat) Extension() string {
	if f == ImageFormatJPEG {
		return "jpg"
	}

	return string(f)
}

// Image описывает изображение, которое хранится в S3
type Image struct {
	Bucket    string
	ObjectKey string
	Bytes     []byte
	Format    ImageFormat
}

func NewImage(bucket string, objectKey string, data []byte, format ImageFormat) *Image {
	return &Image{
		Bucket:    bucket,
		ObjectKey: objectKey,
		Bytes:     data,
		Format:    format,
	}
}

// ProductImageKey возвращает ключ объекта для изображения товара.
func ProductImageKey(prefix string, productID int64, format ImageFormat) string {
	return fmt.Sprintf("%s/%d.%s", strings.Trim(prefix, "/"), productID, format.Extension())
}

// ImageSourceKind тип источника изображения
type ImageSourceKind int

const (
	ImageSourceURL ImageSourceKind = iota + 1
	ImageSourceBase64
	ImageSourceBucket
)

func (k ImageSourceKind) String() string {
	switch k {
	case ImageSourceURL:
		return "url"
	case ImageSourceBase64:
		return "base64"
	case ImageSourceBucket:
		return "bucket"
	default:
		return "unknown"
	}
}

// ImageSource источник изображения: ровно одно из URL, data URI или ключа бакета.
type ImageSource struct {
	Kind  ImageSourceKind
	Value string
}

func NewURLSource(url string) ImageSource {
	return ImageSource{Kind: ImageSourceURL, Value: url}
}

func NewBase64Source(dataURI string) ImageSource {
	return ImageSource{Kind: ImageSourceBase64, Value: dataURI}
}

func NewBucketSource(key string) ImageSource {
	return ImageSource{Kind: ImageSourceBucket, Value: key}
}

// AcquiredImage проверенные байты изображения с определенным форматом
type AcquiredImage struct {
	Bytes  []byte
	Format ImageFormat
	Source ImageSource
}
