package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/clientcredentials"
)

const defaultAdminRole = "admin"

// Config holds the service-account settings for the Keycloak admin REST API.
type Config struct {
	BaseURL      string
	Realm        string
	ClientID     string
	ClientSecret string
	AdminRole    string
	Timeout      time.Duration
}

// AdminClient provisions accounts in a Keycloak realm. It authenticates with
// the client-credentials grant and only ever touches a single realm.
type AdminClient struct {
	baseURL string
	realm   string
	role    string
	http    *http.Client
	log     zerolog.Logger
}

func NewAdminClient(ctx context.Context, cfg Config, log zerolog.Logger) (*AdminClient, error) {
	if cfg.BaseURL == "" || cfg.Realm == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("keycloak admin config missing required fields")
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     base + "/realms/" + url.PathEscape(cfg.Realm) + "/protocol/openid-connect/token",
	}

	client := cc.Client(ctx)
	client.Timeout = cfg.Timeout
	if client.Timeout <= 0 {
		client.Timeout = 10 * time.Second
	}

	role := cfg.AdminRole
	if role == "" {
		role = defaultAdminRole
	}

	return &AdminClient{
		baseURL: base,
		realm:   cfg.Realm,
		role:    role,
		http:    client,
		log:     log.With().Str("component", "keycloak_admin").Logger(),
	}, nil
}

type userRepresentation struct {
	ID            string                     `json:"id,omitempty"`
	Username      string                     `json:"username"`
	Email         string                     `json:"email"`
	FirstName     string                     `json:"firstName,omitempty"`
	Enabled       bool                       `json:"enabled"`
	EmailVerified bool                       `json:"emailVerified"`
	Credentials   []credentialRepresentation `json:"credentials,omitempty"`
}

type credentialRepresentation struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

type roleRepresentation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EnsureAdminUser returns the Keycloak subject id of the account registered
// under email, creating it with the given password when absent. The realm
// admin role is assigned on every call.
func (c *AdminClient) EnsureAdminUser(ctx context.Context, email, password, displayName string) (string, error) {
	id, err := c.findUserID(ctx, email)
	if err != nil {
		return "", err
	}

	if id == "" {
		id, err = c.createUser(ctx, email, password, displayName)
		if err != nil {
			return "", err
		}
		c.log.Info().Str("email", email).Str("subject", id).Msg("keycloak admin account created")
	}

	if err := c.assignRealmRole(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

func (c *AdminClient) findUserID(ctx context.Context, email string) (string, error) {
	q := url.Values{"email": {email}, "exact": {"true"}}
	var users []userRepresentation
	if err := c.do(ctx, http.MethodGet, c.adminURL("users")+"?"+q.Encode(), nil, &users, http.StatusOK); err != nil {
		return "", fmt.Errorf("keycloak find user: %w", err)
	}

	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			return u.ID, nil
		}
	}
	return "", nil
}

func (c *AdminClient) createUser(ctx context.Context, email, password, displayName string) (string, error) {
	body := userRepresentation{
		Username:      email,
		Email:         email,
		FirstName:     displayName,
		Enabled:       true,
		EmailVerified: true,
		Credentials:   []credentialRepresentation{{Type: "password", Value: password}},
	}

	resp, err := c.send(ctx, http.MethodPost, c.adminURL("users"), body)
	if err != nil {
		return "", fmt.Errorf("keycloak create user: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		if loc := resp.Header.Get("Location"); loc != "" {
			return path.Base(loc), nil
		}
	case http.StatusConflict:
		// created concurrently by another replica
	default:
		return "", fmt.Errorf("keycloak create user: %w", statusError(resp))
	}

	id, err := c.findUserID(ctx, email)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", errors.New("keycloak create user: account not visible after create")
	}
	return id, nil
}

func (c *AdminClient) assignRealmRole(ctx context.Context, userID string) error {
	var role roleRepresentation
	if err := c.do(ctx, http.MethodGet, c.adminURL("roles", c.role), nil, &role, http.StatusOK); err != nil {
		return fmt.Errorf("keycloak get role %s: %w", c.role, err)
	}

	target := c.adminURL("users", userID, "role-mappings", "realm")
	if err := c.do(ctx, http.MethodPost, target, []roleRepresentation{role}, nil, http.StatusNoContent, http.StatusOK); err != nil {
		return fmt.Errorf("keycloak assign role %s: %w", c.role, err)
	}
	return nil
}

func (c *AdminClient) adminURL(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.baseURL + "/admin/realms/" + url.PathEscape(c.realm) + "/" + strings.Join(escaped, "/")
}

func (c *AdminClient) do(ctx context.Context, method, target string, in, out any, want ...int) error {
	resp, err := c.send(ctx, method, target, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	ok := false
	for _, code := range want {
		if resp.StatusCode == code {
			ok = true
			break
		}
	}
	if !ok {
		return statusError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *AdminClient) send(ctx context.Context, method, target string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.http.Do(req)
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}
