package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/semmidev/mudvault/internal/config"
	"github.com/semmidev/mudvault/internal/infrastructure/gauth"
	"github.com/semmidev/mudvault/internal/infrastructure/logger"
)

const (
	authPath     = "/auth/google/drive"
	callbackPath = "/auth/google/callback"
)

// OAuthService defines the interface for OAuth-related operations.
type OAuthService interface {
	GetConfig() *oauth2.Config
	StartAuthServer(ctx context.Context, addr string) error
	WaitForToken(ctx context.Context) (*oauth2.Token, error)
	Shutdown(ctx context.Context) error
}

// GoogleOAuthService runs the consent flow and writes the resulting token to
// the configured token file.
type GoogleOAuthService struct {
	config     *oauth2.Config
	logger     *logger.Logger
	tokenPath  string
	state      string
	tokens     chan *oauth2.Token
	authServer *http.Server
}

// NewGoogleOAuthService creates a new GoogleOAuthService.
func NewGoogleOAuthService(logger *logger.Logger, clientSecretPath, tokenPath, addr string) (*GoogleOAuthService, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if clientSecretPath == "" {
		return nil, errors.New("client secret path cannot be empty")
	}

	cfg, err := gauth.ClientConfig(clientSecretPath, "http://"+addr+callbackPath)
	if err != nil {
		return nil, err
	}

	return newOAuthService(logger, cfg, tokenPath)
}

func newOAuthService(logger *logger.Logger, cfg *oauth2.Config, tokenPath string) (*GoogleOAuthService, error) {
	if tokenPath == "" {
		return nil, errors.New("token path cannot be empty")
	}

	state := make([]byte, 16)
	if _, err := rand.Read(state); err != nil {
		return nil, fmt.Errorf("failed to generate oauth state: %w", err)
	}

	return &GoogleOAuthService{
		config:    cfg,
		logger:    logger,
		tokenPath: tokenPath,
		state:     hex.EncodeToString(state),
		tokens:    make(chan *oauth2.Token, 1),
	}, nil
}

// GetConfig returns the OAuth2 configuration.
func (s *GoogleOAuthService) GetConfig() *oauth2.Config {
	return s.config
}

func (s *GoogleOAuthService) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+authPath, func(w http.ResponseWriter, r *http.Request) {
		authURL := s.config.AuthCodeURL(s.state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
		http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
	})

	mux.HandleFunc("GET "+callbackPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != s.state {
			http.Error(w, "invalid state parameter", http.StatusBadRequest)
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code parameter", http.StatusBadRequest)
			return
		}

		token, err := s.config.Exchange(r.Context(), code)
		if err != nil {
			http.Error(w, fmt.Sprintf("token exchange failed: %v", err), http.StatusInternalServerError)
			return
		}

		if token.RefreshToken == "" {
			fmt.Fprintln(w, "⚠️ No refresh token returned. Revoke app access & re-authorize.")
			return
		}

		if err := gauth.SaveToken(s.tokenPath, token); err != nil {
			http.Error(w, fmt.Sprintf("failed to save token: %v", err), http.StatusInternalServerError)
			return
		}

		fmt.Fprintf(w, "✅ Authorized. Token written to %s, you can close this window.\n", s.tokenPath)

		select {
		case s.tokens <- token:
		default:
		}
	})

	return mux
}

// StartAuthServer starts the OAuth HTTP server in a goroutine.
func (s *GoogleOAuthService) StartAuthServer(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.authServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Infof("Google Drive OAuth server listening on %s", ln.Addr())
		if err := s.authServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("OAuth server error: %v", err)
		}
	}()

	return nil
}

// WaitForToken blocks until the callback stored a token or ctx is done.
func (s *GoogleOAuthService) WaitForToken(ctx context.Context) (*oauth2.Token, error) {
	select {
	case tok := <-s.tokens:
		return tok, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown gracefully stops the OAuth server.
func (s *GoogleOAuthService) Shutdown(ctx context.Context) error {
	if s.authServer == nil {
		return nil
	}

	if err := s.authServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown OAuth server: %w", err)
	}
	s.logger.Infof("OAuth server stopped successfully")
	return nil
}

// Authorize runs the consent flow for the configured Drive account.
func Authorize(ctx context.Context, cfg *config.Config) error {
	log, err := logger.NewWithOptions(logger.Options{
		Level:  cfg.App.LogLevel,
		File:   cfg.App.LogFile,
		NoTime: !cfg.App.LogTimestamps,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	gd := cfg.Remote.GDrive
	svc, err := NewGoogleOAuthService(log, gd.Credentials, gd.TokenFile, gd.AuthAddr)
	if err != nil {
		return err
	}

	if err := svc.StartAuthServer(ctx, gd.AuthAddr); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(shutdownCtx)
	}()

	log.Infof("Open http://%s%s in a browser to authorize access", gd.AuthAddr, authPath)

	if _, err := svc.WaitForToken(ctx); err != nil {
		return fmt.Errorf("authorization did not complete: %w", err)
	}
	log.Infof("✓ Token saved to %s", gd.TokenFile)
	return nil
}
