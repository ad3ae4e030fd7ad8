// Package token реализует выпуск и проверку подписанных bearer-токенов.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmeshcher/ecommerce-system/internal/model"
)

// TTL — фиксированный срок жизни токена.
const TTL = time.Hour

// ErrInvalidToken возвращается, если токен повреждён, подпись не совпадает
// или срок действия истёк.
var ErrInvalidToken = errors.New("invalid token")

type claims struct {
	Subject   string `json:"sub"`
	Role      string `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Codec выпускает и проверяет токены, подписанные симметричным ключом процесса.
// Ключ создаётся один раз при старте и не ротируется.
type Codec struct {
	secretKey []byte
	now       func() time.Time
}

// NewCodec создаёт кодек с указанным секретным ключом. При пустом ключе
// генерируется случайный, тогда токены не переживают перезапуск процесса.
func NewCodec(secret string) *Codec {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &Codec{
		secretKey: key,
		now:       time.Now,
	}
}

// Issue выпускает токен для пользователя с указанной ролью. Роль фиксируется
// в токене и действует до истечения срока независимо от изменений в БД.
func (c *Codec) Issue(username string, role model.Role) (string, error) {
	now := c.now()
	payload, err := json.Marshal(claims{
		Subject:   username,
		Role:      string(role),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(TTL).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + c.sign(encoded), nil
}

// Verify проверяет целостность подписи и срок действия токена и возвращает
// личность вызывающего. Живая запись пользователя не читается.
func (c *Codec) Verify(tokenString string) (*model.Identity, error) {
	encoded, signature, ok := strings.Cut(tokenString, ".")
	if !ok {
		return nil, ErrInvalidToken
	}

	if !hmac.Equal([]byte(signature), []byte(c.sign(encoded))) {
		return nil, ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidToken
	}

	var cl claims
	if err := json.Unmarshal(payload, &cl); err != nil {
		return nil, ErrInvalidToken
	}

	if !c.now().Before(time.Unix(cl.ExpiresAt, 0)) {
		return nil, ErrInvalidToken
	}

	role, err := model.ParseRole(cl.Role)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if cl.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &model.Identity{
		Username: cl.Subject,
		Role:     role,
	}, nil
}

func (c *Codec) sign(encoded string) string {
	mac := hmac.New(sha256.New, c.secretKey)
	mac.Write([]byte(encoded))
	return hex.EncodeToString(mac.Sum(nil))
}
