package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/magabrotheeeer/marketplace-backend/internal/models"
)

// GraphMeURL адрес профиля текущего пользователя в Microsoft Graph.
const GraphMeURL = "https://graph.microsoft.com/v1.0/me"

// MicrosoftVerifier проверяет access-токен Microsoft запросом профиля в Graph.
type MicrosoftVerifier struct {
	url    string
	client *http.Client
}

// NewMicrosoftVerifier создаёт проверку токенов Microsoft. client может быть nil.
func NewMicrosoftVerifier(graphURL string, client *http.Client) *MicrosoftVerifier {
	if graphURL == "" {
		graphURL = GraphMeURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &MicrosoftVerifier{url: graphURL, client: client}
}

type graphProfile struct {
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
	DisplayName       string `json:"displayName"`
}

// Verify запрашивает профиль по токену. Почта берётся из mail,
// а при его отсутствии из userPrincipalName.
func (v *MicrosoftVerifier) Verify(ctx context.Context, token string) (*models.SocialIdentity, error) {
	const op = "social.MicrosoftVerifier.Verify"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%s: graph responded %d", op, resp.StatusCode)
	}

	var profile graphProfile
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%s: decode profile: %w", op, err)
	}

	email := profile.Mail
	if email == "" && strings.Contains(profile.UserPrincipalName, "@") {
		email = profile.UserPrincipalName
	}
	return &models.SocialIdentity{Email: email, FullName: profile.DisplayName}, nil
}
