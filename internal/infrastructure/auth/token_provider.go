package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

const (
	jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionLifetime  = time.Hour
	defaultMargin      = 60 * time.Second
	refreshTimeout     = 30 * time.Second
	maxErrorBody       = 4 << 10
)

// TokenProvider выдает bearer-токены провайдера эмбеддингов через обмен подписанного JWT сервисного аккаунта.
type TokenProvider struct {
	account *domain.ServiceAccount
	scope   string
	cache   usecase.TokenCache
	client  *http.Client
	logger  logger.Logger
	now     func() time.Time
	margin  time.Duration
	group   singleflight.Group
}

type Option func(*TokenProvider)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(p *TokenProvider) { p.now = now }
}

// WithSafetyMargin задает запас до истечения, в пределах которого токен уже не выдается.
func WithSafetyMargin(margin time.Duration) Option {
	return func(p *TokenProvider) { p.margin = margin }
}

func NewTokenProvider(
	account *domain.ServiceAccount,
	scope string,
	cache usecase.TokenCache,
	client *http.Client,
	logger logger.Logger,
	opts ...Option,
) *TokenProvider {
	p := &TokenProvider{
		account: account,
		scope:   scope,
		cache:   cache,
		client:  client,
		logger:  logger,
		now:     time.Now,
		margin:  defaultMargin,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// LoadServiceAccount читает JSON-ключ сервисного аккаунта.
func LoadServiceAccount(path string) (*domain.ServiceAccount, error) {
	const op = "auth.LoadServiceAccount"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var account domain.ServiceAccount
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, e.Wrap(op, err)
	}

	if account.ClientEmail == "" || account.PrivateKey == "" || account.TokenURI == "" {
		return nil, e.Wrap(op, fmt.Errorf("%w: service account must contain client_email, private_key and token_uri", e.ErrAuthentication))
	}

	return &account, nil
}

// AccessToken возвращает токен из кэша, если до его истечения больше запаса, иначе получает новый.
// Одновременные обновления внутри процесса объединяются в один запрос.
func (p *TokenProvider) AccessToken(ctx context.Context) (string, error) {
	const op = "TokenProvider.AccessToken"

	if token := p.cached(ctx); token != nil {
		return token.Value, nil
	}

	// Общее обновление не привязано к отмене первого вызова: его ждут и другие запросы
	refreshCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan("token", func() (any, error) {
		ctx, cancel := context.WithTimeout(refreshCtx, refreshTimeout)
		defer cancel()

		// Пока ждали, токен мог обновить другой вызов
		if token := p.cached(ctx); token != nil {
			return token, nil
		}

		return p.refresh(ctx)
	})

	select {
	case <-ctx.Done():
		return "", e.Wrap(op, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			p.logger.Errorf(res.Err, "auth: failed to obtain access token for %s", p.account.ClientEmail)
			return "", e.Wrap(op, res.Err)
		}

		return res.Val.(*domain.AccessToken).Value, nil
	}
}

func (p *TokenProvider) cached(ctx context.Context) *domain.AccessToken {
	token, err := p.cache.Get(ctx)
	if err != nil {
		p.logger.Warnf("auth: token cache read failed: %v", err)
		return nil
	}

	if token.ValidFor(p.now(), p.margin) {
		return token
	}

	return nil
}

func (p *TokenProvider) refresh(ctx context.Context) (*domain.AccessToken, error) {
	assertion, err := p.signAssertion()
	if err != nil {
		return nil, err
	}

	token, err := p.exchange(ctx, assertion)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Set(ctx, token); err != nil {
		p.logger.Warnf("auth: token cache write failed: %v", err)
	}

	p.logger.Debugf("auth: access token refreshed, expires at %s", token.ExpiresAt.Format(time.RFC3339))

	return token, nil
}

// signAssertion подписывает RS256 JWT с claims iss = sub = client_email и aud = token_uri.
func (p *TokenProvider) signAssertion() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(p.account.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("%w: parse private key: %w", e.ErrAuthentication, err)
	}

	now := p.now()
	claims := jwt.MapClaims{
		"iss":   p.account.ClientEmail,
		"sub":   p.account.ClientEmail,
		"aud":   p.account.TokenURI,
		"scope": p.scope,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if p.account.PrivateKeyID != "" {
		token.Header["kid"] = p.account.PrivateKeyID
	}

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("%w: sign assertion: %w", e.ErrAuthentication, err)
	}

	return signed, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (p *TokenProvider) exchange(ctx context.Context, assertion string) (*domain.AccessToken, error) {
	form := url.Values{
		"grant_type": {jwtBearerGrantType},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.account.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", e.ErrAuthentication, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: token request: %w", e.ErrAuthentication, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: token endpoint returned %d: %s", e.ErrAuthentication, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%w: decode token response: %w", e.ErrAuthentication, err)
	}

	if tr.AccessToken == "" || tr.ExpiresIn <= 0 {
		return nil, fmt.Errorf("%w: token response has no access_token or expires_in", e.ErrAuthentication)
	}

	return &domain.AccessToken{
		Value:     tr.AccessToken,
		ExpiresAt: p.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}
