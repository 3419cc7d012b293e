package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// IdentityUser is one user record as returned by the external identity
// provider.
type IdentityUser struct {
	SocialID string `json:"socialId"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

// GetUserFromIdentityProvider verifies an access token against the identity
// provider and returns the identity it belongs to.
func GetUserFromIdentityProvider(baseURL, accessToken string) (*IdentityUser, error) {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/userinfo", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	response, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info: %s", err.Error())
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity provider returned status %d", response.StatusCode)
	}

	var user IdentityUser
	if err := json.NewDecoder(response.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %s", err.Error())
	}

	return &user, nil
}

// ListIdentityUsers pulls the full user directory from the identity provider,
// used by the periodic sync job.
func ListIdentityUsers(baseURL, apiKey string) ([]IdentityUser, error) {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/users", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", apiKey)

	response, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed listing users: %s", err.Error())
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed read response: %s", err.Error())
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity provider returned status %d", response.StatusCode)
	}

	var users []IdentityUser
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("failed to decode user list: %s", err.Error())
	}

	return users, nil
}
