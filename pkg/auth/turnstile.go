package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrInvalidCredentials is the single error surfaced for any login
// failure, bot-challenge or credential mismatch alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// TurnstileVerifier checks bot-challenge tokens against an external
// siteverify endpoint. Any transport error counts as a failed
// verification.
type TurnstileVerifier struct {
	secret    string
	verifyURL string
	client    *http.Client
	logger    *logrus.Logger
}

func NewTurnstileVerifier(secret, verifyURL string, logger *logrus.Logger) *TurnstileVerifier {
	return &TurnstileVerifier{
		secret:    secret,
		verifyURL: verifyURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}
}

// Verify posts the token to the verification endpoint and reports
// whether it was accepted.
func (v *TurnstileVerifier) Verify(ctx context.Context, token, remoteIP string) bool {
	form := url.Values{
		"secret":   {v.secret},
		"response": {token},
		"remoteip": {remoteIP},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		v.logger.WithError(err).Warn("Bot challenge request build failed")
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.WithError(err).Warn("Bot challenge verification unreachable")
		return false
	}
	defer resp.Body.Close()

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		v.logger.WithError(err).Warn("Bot challenge verification returned malformed response")
		return false
	}
	return result.Success
}
