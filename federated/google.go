package federated

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	credentials "github.com/goliatone/go-credentials"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	ProviderGoogle = "google"

	defaultGoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

var googleScopes = []string{"openid", "email", "profile"}

// ErrUnverifiedProviderEmail is returned when the provider does not vouch
// for the email it reports
var ErrUnverifiedProviderEmail = goerrors.New("provider email is not verified", goerrors.CategoryAuth).
	WithTextCode("PROVIDER_EMAIL_UNVERIFIED").
	WithCode(goerrors.CodeUnauthorized)

// Google runs the authorization code flow against Google and turns the
// result into a credentials.FederatedProfile
type Google struct {
	oauth       *oauth2.Config
	state       *StateSigner
	userInfoURL string
	httpClient  *http.Client
	logger      credentials.Logger
}

// GoogleOption configures the Google provider
type GoogleOption func(*Google)

// WithEndpoint overrides the OAuth endpoint and the userinfo URL
func WithEndpoint(endpoint oauth2.Endpoint, userInfoURL string) GoogleOption {
	return func(g *Google) {
		g.oauth.Endpoint = endpoint
		if userInfoURL != "" {
			g.userInfoURL = userInfoURL
		}
	}
}

// WithHTTPClient sets the client used for token exchange and profile fetches
func WithHTTPClient(client *http.Client) GoogleOption {
	return func(g *Google) {
		if client != nil {
			g.httpClient = client
		}
	}
}

// WithStateSigner overrides the state signer
func WithStateSigner(signer *StateSigner) GoogleOption {
	return func(g *Google) {
		if signer != nil {
			g.state = signer
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger credentials.Logger) GoogleOption {
	return func(g *Google) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGoogle builds the provider from the Google section of the options
func NewGoogle(cfg credentials.Config, google credentials.GoogleOptions, opts ...GoogleOption) (*Google, error) {
	if !google.Enabled() {
		return nil, goerrors.New("google client id and secret are required", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"field": "GOOGLE_CLIENT_ID"})
	}

	g := &Google{
		oauth: &oauth2.Config{
			ClientID:     google.ClientID,
			ClientSecret: google.ClientSecret,
			RedirectURL:  google.CallbackURL,
			Endpoint:     endpoints.Google,
			Scopes:       googleScopes,
		},
		state:       NewStateSigner(stateKey(cfg), ProviderGoogle, DefaultStateTTL),
		userInfoURL: defaultGoogleUserInfoURL,
		httpClient:  http.DefaultClient,
		logger:      credentials.DefaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g, nil
}

// Name returns the provider name
func (g *Google) Name() string {
	return ProviderGoogle
}

// AuthCodeURL returns the consent page URL carrying a fresh signed state,
// and the nonce the caller must hand back to Exchange
func (g *Google) AuthCodeURL() (string, string, error) {
	state, nonce, err := g.state.Issue()
	if err != nil {
		return "", "", err
	}
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), nonce, nil
}

// StateTTL is how long a consent round trip may take
func (g *Google) StateTTL() time.Duration {
	return g.state.TTL()
}

type googleUserInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

func (u googleUserInfo) displayName() string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	if name := strings.TrimSpace(u.GivenName + " " + u.FamilyName); name != "" {
		return name
	}
	return u.Email
}

// Exchange checks state against nonce, trades code for a token and fetches
// the profile
func (g *Google) Exchange(ctx context.Context, code, state, nonce string) (credentials.FederatedProfile, error) {
	if err := g.state.Verify(state, nonce); err != nil {
		return credentials.FederatedProfile{}, err
	}

	if code == "" {
		return credentials.FederatedProfile{}, goerrors.New("authorization code is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)

	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		g.logger.Warn("google code exchange failed: %v", err)
		return credentials.FederatedProfile{}, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to exchange authorization code").
			WithCode(goerrors.CodeUnauthorized)
	}

	info, err := g.fetchUserInfo(ctx, token)
	if err != nil {
		return credentials.FederatedProfile{}, err
	}

	if !info.EmailVerified {
		return credentials.FederatedProfile{}, ErrUnverifiedProviderEmail
	}

	profile := credentials.FederatedProfile{
		Email:       info.Email,
		DisplayName: info.displayName(),
		ProviderID:  info.Subject,
	}
	if err := profile.Validate(); err != nil {
		return credentials.FederatedProfile{}, goerrors.FromOzzoValidation(err, "incomplete google profile")
	}
	return profile, nil
}

func (g *Google) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := g.oauth.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build userinfo request")
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to fetch google profile")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return nil, goerrors.New(fmt.Sprintf("google userinfo returned %d", res.StatusCode), goerrors.CategoryExternal).
			WithCode(goerrors.CodeUnauthorized).
			WithMetadata(map[string]any{"body": string(body)})
	}

	info := &googleUserInfo{}
	if err := json.NewDecoder(res.Body).Decode(info); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to decode google profile")
	}
	return info, nil
}
