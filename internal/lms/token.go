package lms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Pavel4en/lms-api-app/internal/httpx"
	"github.com/Pavel4en/lms-api-app/internal/report"
)

type credential struct {
	token     string
	expiresAt time.Time
}

func (c credential) valid(now time.Time) bool {
	return c.token != "" && now.Before(c.expiresAt)
}

// ensureToken returns a valid bearer token, exchanging client
// credentials when none is held or the held one expired. The mutex
// makes the refresh single-flight: concurrent callers never trigger
// two exchanges for the same expiry.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.cred.valid(now) {
		return c.cred.token, nil
	}

	report.Progressf(c.Reporter, "Запрос нового токена...")
	report.Logf(c.Reporter, "Запрос нового токена...")

	body, err := json.Marshal(map[string]string{
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
		"grant_type":    "client_credentials",
	})
	if err != nil {
		return "", err
	}

	var tr tokenResponse
	err = httpx.DoJSON(
		ctx,
		c.HTTP,
		func(ctx context.Context) (*http.Request, error) {
			r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			r.Header.Set("Content-Type", "application/json")
			return r, nil
		},
		&tr,
		c.Retry,
	)
	if err != nil {
		report.Logf(c.Reporter, "Ошибка получения токена: %v", err)
		return "", fmt.Errorf("lms: token exchange failed: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("lms: token exchange returned no access_token")
	}

	c.cred = credential{
		token:     tr.AccessToken,
		expiresAt: now.Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	report.Logf(c.Reporter, "Токен успешно получен.")
	return c.cred.token, nil
}
