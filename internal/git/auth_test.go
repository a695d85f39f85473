package git

import (
	"strings"
	"testing"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

func TestCreateAuth(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.AuthConfig
		wantNil  bool
		wantErr  string
		wantUser string
		wantPass string
	}{
		{name: "nil config", cfg: nil, wantNil: true},
		{name: "none type", cfg: &config.AuthConfig{Type: config.AuthTypeNone}, wantNil: true},
		{name: "token", cfg: &config.AuthConfig{Type: config.AuthTypeToken, Token: "s3cret"}, wantUser: "token", wantPass: "s3cret"},
		{name: "token missing value", cfg: &config.AuthConfig{Type: config.AuthTypeToken}, wantErr: "requires a token"},
		{name: "basic", cfg: &config.AuthConfig{Type: config.AuthTypeBasic, Username: "bot", Password: "pw"}, wantUser: "bot", wantPass: "pw"},
		{name: "basic missing password", cfg: &config.AuthConfig{Type: config.AuthTypeBasic, Username: "bot"}, wantErr: "requires username and password"},
		{name: "unknown type", cfg: &config.AuthConfig{Type: "ssh"}, wantErr: "unsupported auth type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := CreateAuth(tt.cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if auth != nil {
					t.Fatalf("expected nil auth, got %v", auth)
				}
				return
			}
			basic, ok := auth.(*http.BasicAuth)
			if !ok {
				t.Fatalf("expected BasicAuth, got %T", auth)
			}
			if basic.Username != tt.wantUser || basic.Password != tt.wantPass {
				t.Errorf("got %s/%s, want %s/%s", basic.Username, basic.Password, tt.wantUser, tt.wantPass)
			}
		})
	}
}
