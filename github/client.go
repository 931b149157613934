package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v74/github"
	"github.com/jferrl/go-githubauth"
	"golang.org/x/oauth2"
)

// Auth holds either a personal access token or GitHub App installation
// credentials. The token wins when both are present.
type Auth struct {
	Token          string
	ClientID       string
	PrivateKey     []byte
	InstallationID int64
}

func (a Auth) useApp() bool {
	return a.ClientID != "" && len(a.PrivateKey) > 0 && a.InstallationID != 0
}

// NewClient builds an authenticated go-github client. baseURL overrides the
// public API root (GitHub Enterprise, test servers).
func NewClient(ctx context.Context, auth Auth, baseURL string, timeout time.Duration) (*github.Client, error) {
	var src oauth2.TokenSource
	switch {
	case strings.TrimSpace(auth.Token) != "":
		src = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: strings.TrimSpace(auth.Token)})
	case auth.useApp():
		appTokenSource, err := githubauth.NewApplicationTokenSource(auth.ClientID, auth.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("github app token source: %w", err)
		}
		src = githubauth.NewInstallationTokenSource(auth.InstallationID, appTokenSource)
	default:
		return nil, ErrMissingCredentials
	}

	httpClient := oauth2.NewClient(ctx, src)
	if timeout > 0 {
		httpClient.Timeout = timeout
	}

	return newClient(httpClient, baseURL)
}

func newClient(httpClient *http.Client, baseURL string) (*github.Client, error) {
	client := github.NewClient(httpClient)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("github base url %q: %w", baseURL, err)
		}
		client.BaseURL = u
	}
	return client, nil
}
