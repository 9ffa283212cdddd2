package e

import (
	"errors"
	"fmt"
	"strings"
)

// Категории ошибок. По ним delivery-слой выбирает код ответа.
var (
	ErrValidation          = errors.New("validation error")
	ErrImageProcessing     = errors.New("image processing error")
	ErrAuthentication      = errors.New("authentication failed")
	ErrEmbedding           = errors.New("embedding generation failed")
	ErrIndexOperation      = errors.New("index operation failed")
	ErrNotFound            = errors.New("not found")
	ErrUpstream            = errors.New("upstream request failed")
	ErrInternalServerError = errors.New("internal server error")
)

var (
	// Конфигурация
	ErrIncorrectEnvVariable = errors.New("incorrect environment variable")

	// 400 Bad Request
	ErrInvalidJSON          = New("malformed JSON body", ErrValidation)
	ErrRequestTooLarge      = New("request body too large", ErrValidation)
	ErrInvalidProductID     = New("product_id must be a positive integer", ErrValidation)
	ErrProductNameRequired  = New("product name is required", ErrValidation)
	ErrPriceMustBePositive  = New("price must not be negative", ErrValidation)
	ErrImageSourceRequired  = New("exactly one of image_url or image_base64 must be provided", ErrValidation)
	ErrInvalidTopK          = New("topK is out of range", ErrValidation)
	ErrInvalidThreshold     = New("threshold must be within [0, 1]", ErrValidation)
	ErrUnsupportedFilter    = New("unsupported filter field", ErrValidation)
	ErrInvalidLimit         = New("limit is out of range", ErrValidation)
	ErrInvalidOffset        = New("offset must not be negative", ErrValidation)
	ErrUnsupportedSource    = New("unsupported batch source", ErrValidation)
	ErrInvalidImageURL      = New("image_url must be an absolute http(s) URL", ErrValidation)
	ErrInvalidCatalogRecord = New("catalog returned a malformed product record", ErrUpstream)

	// Ошибки получения изображения
	ErrImageEmpty           = New("image is empty", ErrImageProcessing)
	ErrImageTooLarge        = New("image exceeds maximum allowed size", ErrImageProcessing)
	ErrUnsupportedFormat    = New("Unsupported image format (expected PNG, JPEG or WebP)", ErrImageProcessing)
	ErrMissingDataURIPrefix = New("Unsupported image format: base64 payload must start with data:image/...;base64,", ErrImageProcessing)
	ErrInvalidBase64        = New("invalid base64 image payload", ErrImageProcessing)
	ErrImageNotFound        = New("image not found in storage", ErrImageProcessing, ErrNotFound)
	ErrImageFetchFailed     = New("failed to fetch image", ErrImageProcessing, ErrUpstream)
	ErrNoImageURL           = New("product has no image_url", ErrImageProcessing)

	// Ошибки внешних сервисов
	ErrInvalidEmbeddingResponse = New("invalid response format from embedding provider", ErrEmbedding)
	ErrCatalogUnavailable       = New("catalog request failed", ErrUpstream)
	ErrEmptyVectors             = New("empty vectors", ErrEmbedding)
)

// KindError ошибка с человекочитаемым сообщением, принадлежащая одной или нескольким категориям.
type KindError struct {
	msg   string
	kinds []error
}

// New создаёт ошибку с сообщением msg, для которой errors.Is вернёт true по каждой из kinds.
func New(msg string, kinds ...error) *KindError {
	return &KindError{msg: msg, kinds: kinds}
}

func (k *KindError) Error() string {
	return k.msg
}

func (k *KindError) Unwrap() []error {
	return k.kinds
}

// IndexOperationError описывает сбой операции векторного индекса с перечнем затронутых идентификаторов.
type IndexOperationError struct {
	Op  string
	IDs []int64
	Err error
}

func NewIndexOperationError(op string, ids []int64, err error) *IndexOperationError {
	return &IndexOperationError{Op: op, IDs: ids, Err: err}
}

func (i *IndexOperationError) Error() string {
	ids := make([]string, 0, len(i.IDs))
	for _, id := range i.IDs {
		ids = append(ids, fmt.Sprint(id))
	}

	return fmt.Sprintf("index operation %q failed for ids [%s]: %v", i.Op, strings.Join(ids, ","), i.Err)
}

func (i *IndexOperationError) Unwrap() []error {
	return []error{ErrIndexOperation, i.Err}
}

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}

// Message возвращает сообщение ближайшей KindError в цепочке или пустую строку.
func Message(err error) string {
	var kind *KindError
	if errors.As(err, &kind) {
		return kind.msg
	}

	return ""
}
