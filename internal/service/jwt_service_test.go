package service

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/config"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/domain"
)

func newTestJWTService(accessTTL, refreshTTL time.Duration) JWTService {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret-key"
	cfg.JWT.AccessTokenTTL = accessTTL
	cfg.JWT.RefreshTokenTTL = refreshTTL
	cfg.App.Name = "test-service"

	return NewJWTService(cfg, zap.NewNop())
}

func testManagerUser() *domain.User {
	shopID := int64(7)
	return &domain.User{
		ID:       123,
		Username: "counter_manager",
		Role:     domain.UserRoleManager,
		ShopID:   &shopID,
		IsActive: true,
	}
}

func TestJWTService_GenerateTokenPair(t *testing.T) {
	jwtService := newTestJWTService(15*time.Minute, 24*time.Hour)
	user := testManagerUser()

	tokenPair, err := jwtService.GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}
	if tokenPair.AccessToken == "" {
		t.Error("AccessToken should not be empty")
	}
	if tokenPair.RefreshToken == "" {
		t.Error("RefreshToken should not be empty")
	}

	claims, err := jwtService.ValidateAccessToken(tokenPair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("expected UserID %d, got %d", user.ID, claims.UserID)
	}
	if claims.Username != user.Username {
		t.Errorf("expected Username %s, got %s", user.Username, claims.Username)
	}
	if claims.Role != domain.UserRoleManager {
		t.Errorf("expected Role %s, got %s", domain.UserRoleManager, claims.Role)
	}
	if claims.ShopID == nil || *claims.ShopID != *user.ShopID {
		t.Errorf("expected ShopID %v, got %v", user.ShopID, claims.ShopID)
	}
	if claims.Type != "access" {
		t.Errorf("expected Type 'access', got %s", claims.Type)
	}

	refreshClaims, err := jwtService.ValidateRefreshToken(tokenPair.RefreshToken)
	if err != nil {
		t.Fatalf("ValidateRefreshToken failed: %v", err)
	}
	if refreshClaims.Type != "refresh" {
		t.Errorf("expected Type 'refresh', got %s", refreshClaims.Type)
	}
}

func TestJWTService_GenerateTokenPair_NoShop(t *testing.T) {
	jwtService := newTestJWTService(15*time.Minute, 24*time.Hour)
	user := &domain.User{
		ID:       9,
		Username: "hq_admin",
		Role:     domain.UserRoleAdmin,
		IsActive: true,
	}

	tokenPair, err := jwtService.GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	claims, err := jwtService.ValidateAccessToken(tokenPair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if claims.ShopID != nil {
		t.Errorf("expected nil ShopID for headquarters user, got %v", *claims.ShopID)
	}
}

func TestJWTService_ValidateAccessToken_InvalidToken(t *testing.T) {
	jwtService := newTestJWTService(15*time.Minute, 24*time.Hour)

	testCases := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"invalid format", "invalid.token.format"},
		{"wrong signature", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJzdWIiOiIxMjM0NTY3ODkwIiwibmFtZSI6IkpvaG4gRG9lIiwiaWF0IjoxNTE2MjM5MDIyfQ.invalid"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := jwtService.ValidateAccessToken(tc.token); err == nil {
				t.Error("expected validation to fail")
			}
		})
	}
}

func TestJWTService_ValidateToken_WrongType(t *testing.T) {
	jwtService := newTestJWTService(15*time.Minute, 24*time.Hour)

	tokenPair, err := jwtService.GenerateTokenPair(testManagerUser())
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	if _, err := jwtService.ValidateAccessToken(tokenPair.RefreshToken); err == nil {
		t.Error("expected validation to fail when using refresh token as access token")
	}
	if _, err := jwtService.ValidateRefreshToken(tokenPair.AccessToken); err == nil {
		t.Error("expected validation to fail when using access token as refresh token")
	}
}

func TestJWTService_RefreshTokenPair(t *testing.T) {
	jwtService := newTestJWTService(15*time.Minute, 24*time.Hour)
	user := testManagerUser()

	originalTokenPair, err := jwtService.GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	newTokenPair, err := jwtService.RefreshTokenPair(originalTokenPair.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshTokenPair failed: %v", err)
	}

	claims, err := jwtService.ValidateAccessToken(newTokenPair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("expected UserID %d, got %d", user.ID, claims.UserID)
	}
	if claims.ShopID == nil || *claims.ShopID != *user.ShopID {
		t.Errorf("refreshed token lost shop assignment, got %v", claims.ShopID)
	}
}

func TestJWTService_RefreshTokenPair_InvalidRefreshToken(t *testing.T) {
	jwtService := newTestJWTService(15*time.Minute, 24*time.Hour)

	for _, invalidToken := range []string{
		"",
		"invalid.token",
		"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJzdWIiOiIxMjM0NTY3ODkwIiwibmFtZSI6IkpvaG4gRG9lIiwiaWF0IjoxNTE2MjM5MDIyfQ.invalid",
	} {
		if _, err := jwtService.RefreshTokenPair(invalidToken); err == nil {
			t.Errorf("expected RefreshTokenPair to fail with invalid token: %q", invalidToken)
		}
	}
}

func TestJWTService_TokenExpiration(t *testing.T) {
	jwtService := newTestJWTService(time.Millisecond, time.Millisecond)

	tokenPair, err := jwtService.GenerateTokenPair(testManagerUser())
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	if _, err := jwtService.ValidateAccessToken(tokenPair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired for access token, got %v", err)
	}
	if _, err := jwtService.ValidateRefreshToken(tokenPair.RefreshToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired for refresh token, got %v", err)
	}
}
