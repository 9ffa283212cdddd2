package images

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/infrastructure"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

var dataURIPrefix = regexp.MustCompile(`^data:image/[a-zA-Z0-9.+-]+;base64,`)

// Acquirer получает байты изображения по URL, из data URI или из бакета и проверяет их.
type Acquirer struct {
	client  *http.Client
	bucket  usecase.ImageRepository
	cfg     *cfg.ImagesCfg
	cdnHost string
	logger  logger.Logger
}

func NewAcquirer(client *http.Client, bucket usecase.ImageRepository, cfg *cfg.ImagesCfg, cdnHost string, logger logger.Logger) *Acquirer {
	return &Acquirer{
		client:  client,
		bucket:  bucket,
		cfg:     cfg,
		cdnHost: strings.ToLower(cdnHost),
		logger:  logger,
	}
}

// Acquire возвращает проверенное изображение.
// URL собственного CDN читается напрямую из бакета; в этом случае Source результата указывает на ключ объекта.
func (a *Acquirer) Acquire(ctx context.Context, src domain.ImageSource) (*domain.AcquiredImage, error) {
	const op = "Acquirer.Acquire"

	var (
		data []byte
		err  error
	)

	switch src.Kind {
	case domain.ImageSourceURL:
		if key, ok := a.bucketKey(src.Value); ok {
			src = domain.NewBucketSource(key)
			data, err = a.fromBucket(ctx, key)
		} else {
			data, err = a.fromURL(ctx, src.Value)
		}
	case domain.ImageSourceBase64:
		data, err = a.fromBase64(src.Value)
	case domain.ImageSourceBucket:
		data, err = a.fromBucket(ctx, src.Value)
	default:
		err = e.ErrImageSourceRequired
	}
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	format, err := infrastructure.ValidateImage(data, a.cfg.MaxSize)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &domain.AcquiredImage{Bytes: data, Format: format, Source: src}, nil
}

// bucketKey возвращает ключ объекта, если URL указывает на собственный CDN сервиса.
func (a *Acquirer) bucketKey(raw string) (string, bool) {
	if a.cdnHost == "" {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil || !strings.EqualFold(u.Hostname(), a.cdnHost) {
		return "", false
	}

	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", false
	}

	return key, true
}

func (a *Acquirer) fromURL(ctx context.Context, raw string) ([]byte, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, e.ErrInvalidImageURL
	}

	if a.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.FetchTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, e.ErrInvalidImageURL
	}
	req.Header.Set("User-Agent", a.cfg.UserAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", e.ErrImageFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", e.ErrImageFetchFailed, u.Redacted(), resp.StatusCode)
	}

	if resp.ContentLength > a.cfg.MaxSize {
		return nil, e.ErrImageTooLarge
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		a.logger.Debugf("image %s served with Content-Type %q, relying on signature check", u.Redacted(), ct)
	}

	// Читаем на байт больше лимита, чтобы отличить файл ровно в лимит от слишком большого
	data, err := io.ReadAll(io.LimitReader(resp.Body, a.cfg.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", e.ErrImageFetchFailed, err)
	}

	if int64(len(data)) > a.cfg.MaxSize {
		return nil, e.ErrImageTooLarge
	}

	return data, nil
}

func (a *Acquirer) fromBase64(dataURI string) ([]byte, error) {
	prefix := dataURIPrefix.FindString(dataURI)
	if prefix == "" {
		return nil, e.ErrMissingDataURIPrefix
	}

	payload := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, dataURI[len(prefix):])

	if int64(base64.StdEncoding.DecodedLen(len(payload))) > a.cfg.MaxSize+2 {
		return nil, e.ErrImageTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, e.ErrInvalidBase64
		}
	}

	if int64(len(data)) > a.cfg.MaxSize {
		return nil, e.ErrImageTooLarge
	}

	return data, nil
}

func (a *Acquirer) fromBucket(ctx context.Context, key string) ([]byte, error) {
	if a.bucket == nil {
		return nil, e.ErrImageNotFound
	}

	return a.bucket.Get(ctx, key, a.cfg.MaxSize)
}
