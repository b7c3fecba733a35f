package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test_secret_key"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name           string
		secret         string
		setupAuth      func() string
		expectedStatus int
		expectedUser   string
		expectedError  string
	}{
		{
			name:           "Open Gate",
			secret:         "",
			setupAuth:      func() string { return "" },
			expectedStatus: http.StatusOK,
			expectedUser:   AnonymousUser,
		},
		{
			name:   "Valid Token",
			secret: testSecret,
			setupAuth: func() string {
				return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret),
					jwt.MapClaims{"user_id": "user-1", "exp": exp})
			},
			expectedStatus: http.StatusOK,
			expectedUser:   "user-1",
		},
		{
			name:           "No Token",
			secret:         testSecret,
			setupAuth:      func() string { return "" },
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Missing or invalid token",
		},
		{
			name:           "Malformed Header",
			secret:         testSecret,
			setupAuth:      func() string { return "Token abc" },
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Missing or invalid token",
		},
		{
			name:   "Wrong Secret",
			secret: testSecret,
			setupAuth: func() string {
				return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"),
					jwt.MapClaims{"user_id": "user-1", "exp": exp})
			},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Invalid token",
		},
		{
			name:   "Expired Token",
			secret: testSecret,
			setupAuth: func() string {
				return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret),
					jwt.MapClaims{"user_id": "user-1", "exp": time.Now().Add(-time.Minute).Unix()})
			},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Invalid token",
		},
		{
			name:   "Missing Expiry",
			secret: testSecret,
			setupAuth: func() string {
				return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret),
					jwt.MapClaims{"user_id": "user-1"})
			},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Invalid token",
		},
		{
			name:   "Wrong Algorithm",
			secret: testSecret,
			setupAuth: func() string {
				return "Bearer " + signToken(t, jwt.SigningMethodHS512, []byte(testSecret),
					jwt.MapClaims{"user_id": "user-1", "exp": exp})
			},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Invalid token",
		},
		{
			name:   "Refresh Token",
			secret: testSecret,
			setupAuth: func() string {
				return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret),
					jwt.MapClaims{"user_id": "user-1", "exp": exp, "type": "refresh"})
			},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Invalid token type",
		},
		{
			name:   "Missing User",
			secret: testSecret,
			setupAuth: func() string {
				return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret),
					jwt.MapClaims{"exp": exp})
			},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Invalid user ID in token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			var gotUser string
			router.GET("/test", AuthMiddleware(tt.secret), func(c *gin.Context) {
				gotUser = c.GetString(UserIDKey)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if auth := tt.setupAuth(); auth != "" {
				req.Header.Set("Authorization", auth)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedError == "" {
				if gotUser != tt.expectedUser {
					t.Errorf("Expected user %q, got %q", tt.expectedUser, gotUser)
				}
				return
			}

			var response map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Fatalf("Failed to parse response: %v", err)
			}
			if errMsg, _ := response["error"].(string); errMsg != tt.expectedError {
				t.Errorf("Expected %q error, got %q", tt.expectedError, errMsg)
			}
		})
	}
}
