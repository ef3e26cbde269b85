// internal/common/auth/keycloak.go
package auth

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"eduprima/internal/common/errors"
)

// KeycloakClient talks to the identity provider that owns login accounts.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// User is the subset of a Keycloak user representation the workers read.
type User struct {
	ID       string `json:"id,omitempty"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Enabled  bool   `json:"enabled"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// TokenInfo is the introspection result for a caller's access token.
type TokenInfo struct {
	Active   bool   `json:"active"`
	Sub      string `json:"sub,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Exp      int64  `json:"exp,omitempty"`
}

func NewKeycloakClient(baseURL, realm, clientID, clientSecret string) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// serviceToken returns a cached client-credentials token, refreshing it 30s before expiry.
func (k *KeycloakClient) serviceToken(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.accessToken != "" && time.Now().Add(30*time.Second).Before(k.tokenExpiry) {
		return k.accessToken, nil
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", k.baseURL, k.realm)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("keycloak token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	k.accessToken = tr.AccessToken
	k.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return k.accessToken, nil
}

func (k *KeycloakClient) adminRequest(ctx context.Context, method, path string) (*http.Response, error) {
	token, err := k.serviceToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s/admin/realms/%s%s", k.baseURL, k.realm, path), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	return k.httpClient.Do(req)
}

// GetUserByEmail finds the identity account whose email matches exactly.
func (k *KeycloakClient) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	resp, err := k.adminRequest(ctx, http.MethodGet, "/users?exact=true&email="+url.QueryEscape(email))
	if err != nil {
		return nil, fmt.Errorf("keycloak user search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("keycloak user search failed with status %d: %s", resp.StatusCode, string(body))
	}

	var users []User
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("failed to decode user search results: %w", err)
	}
	if len(users) == 0 {
		return nil, ErrUserNotFound
	}
	return &users[0], nil
}

// DeleteUser removes the identity account. A 404 counts as already removed.
func (k *KeycloakClient) DeleteUser(ctx context.Context, userID string) error {
	resp, err := k.adminRequest(ctx, http.MethodDelete, "/users/"+url.PathEscape(userID))
	if err != nil {
		return fmt.Errorf("keycloak user delete: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK, http.StatusNotFound:
		return nil
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("keycloak user delete failed with status %d: %s", resp.StatusCode, string(body))
	}
}

// RemoveIdentity deletes the identity account registered under email, if any.
func (k *KeycloakClient) RemoveIdentity(ctx context.Context, email string) error {
	user, err := k.GetUserByEmail(ctx, email)
	if stderrors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return k.DeleteUser(ctx, user.ID)
}

// ValidateToken introspects a caller's access token.
func (k *KeycloakClient) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	data := url.Values{}
	data.Set("token", token)
	data.Set("token_type_hint", "access_token")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	introspectURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect", k.baseURL, k.realm)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, introspectURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send introspection request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("introspection failed with status %d", resp.StatusCode)
	}

	var info TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode token introspection response: %w", err)
	}
	if !info.Active {
		return nil, ErrTokenInactive
	}
	return &info, nil
}

// ResolveActor returns the subject of an active access token.
func (k *KeycloakClient) ResolveActor(ctx context.Context, accessToken string) (string, error) {
	if accessToken == "" {
		return "", errors.NewActorResolutionFailedError(ErrTokenInactive)
	}
	info, err := k.ValidateToken(ctx, accessToken)
	if err != nil {
		return "", errors.NewActorResolutionFailedError(err)
	}
	if info.Sub == "" {
		return "", errors.NewActorResolutionFailedError(fmt.Errorf("token has no subject"))
	}
	return info.Sub, nil
}
