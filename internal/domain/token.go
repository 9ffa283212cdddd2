package domain

import "time"

// AccessToken bearer-токен провайдера эмбеддингов с реальным сроком действия
type AccessToken struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ValidFor сообщает, остается ли токен действительным дольше margin в момент now.
func (t *AccessToken) ValidFor(now time.Time, margin time.Duration) bool {
	if t == nil || t.Value == "" {
		return false
	}

	return t.ExpiresAt.Sub(now) > margin
}

// ServiceAccount учетные данные сервисного аккаунта (формат JSON-ключа Google Cloud)
type ServiceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}
