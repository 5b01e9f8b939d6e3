package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// TokenUpdateFunc is a callback function that handles token updates
type TokenUpdateFunc func(userID string, token *oauth2.Token) error

// TokenStore resolves the OAuth tokens of the account that sends on a
// user's behalf. Credential management itself lives outside this
// service.
type TokenStore interface {
	Tokens(ctx context.Context, userID string) (accessToken, refreshToken string, err error)
}

// StaticTokenStore serves one fixed token pair for every user.
// Useful for single-tenant deployments and local development.
type StaticTokenStore struct {
	AccessToken  string
	RefreshToken string
}

func (s StaticTokenStore) Tokens(ctx context.Context, userID string) (string, string, error) {
	if s.AccessToken == "" && s.RefreshToken == "" {
		return "", "", fmt.Errorf("no gmail tokens configured")
	}
	return s.AccessToken, s.RefreshToken, nil
}

type Service struct {
	clientID     string
	clientSecret string
	tokens       TokenStore
	onRefresh    TokenUpdateFunc
}

func NewService(clientID, clientSecret string, tokens TokenStore, onRefresh TokenUpdateFunc) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokens:       tokens,
		onRefresh:    onRefresh,
	}
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	userID   string
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(s.userID, t); err != nil {
			log.Printf("[Gmail] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

func (s *Service) gmailService(ctx context.Context, userID string) (*gmail.Service, error) {
	accessToken, refreshToken, err := s.tokens.Tokens(ctx, userID)
	if err != nil {
		return nil, err
	}

	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}
	// Only force refresh if we have a refresh token
	if refreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	wrappedSource := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		userID:   userID,
		callback: s.onRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}

	return srv, nil
}

// Send sends a reply on the user's behalf and returns the provider
// message ID. A non-nil error is a terminal transport failure; the
// caller must not retry automatically.
func (s *Service) Send(ctx context.Context, userID, to, subject, body, inReplyTo string) (string, error) {
	srv, err := s.gmailService(ctx, userID)
	if err != nil {
		return "", err
	}

	var emailMsg bytes.Buffer
	emailMsg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	// Encode subject to handle non-ASCII characters (RFC 2047)
	encodedSubject := fmt.Sprintf("=?utf-8?B?%s?=", base64.StdEncoding.EncodeToString([]byte(subject)))
	emailMsg.WriteString(fmt.Sprintf("Subject: %s\r\n", encodedSubject))
	if inReplyTo != "" {
		emailMsg.WriteString(fmt.Sprintf("In-Reply-To: <%s>\r\n", inReplyTo))
		emailMsg.WriteString(fmt.Sprintf("References: <%s>\r\n", inReplyTo))
	}
	emailMsg.WriteString("MIME-Version: 1.0\r\n")
	emailMsg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	emailMsg.WriteString(body)
	emailMsg.WriteString("\r\n")

	msg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(emailMsg.Bytes()),
	}

	sent, err := srv.Users.Messages.Send("me", msg).Do()
	if err != nil {
		return "", fmt.Errorf("unable to send message: %w", err)
	}

	return sent.Id, nil
}
