package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRegistrationHook(t *testing.T) {
	cases := []struct {
		name      string
		secret    string
		presented string
		want      int
	}{
		{name: "matching secret", secret: "s3cret", presented: "s3cret", want: http.StatusOK},
		{name: "wrong secret", secret: "s3cret", presented: "guess", want: http.StatusUnauthorized},
		{name: "missing header", secret: "s3cret", want: http.StatusUnauthorized},
		{name: "unconfigured", presented: "anything", want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := RegistrationHook(tc.secret, nil)(okHandler())
			req := httptest.NewRequest(http.MethodPost, "/api/v1/registrations/link", nil)
			if tc.presented != "" {
				req.Header.Set(registrationSecretHeader, tc.presented)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d got %d", tc.want, rec.Code)
			}
		})
	}
}
