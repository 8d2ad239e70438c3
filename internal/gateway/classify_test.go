package gateway

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/taleforge/taleforge/internal/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode domainerrors.Code
		wantMsg  string
	}{
		{name: "success", status: http.StatusOK},
		{name: "no content", status: http.StatusNoContent},
		{name: "unauthorized", status: 401, body: `{"message":"expired"}`, wantCode: domainerrors.CodeUnauthorized, wantMsg: "expired"},
		{name: "forbidden", status: 403, wantCode: domainerrors.CodeForbidden, wantMsg: "forbidden"},
		{name: "not found", status: 404, body: `{"error":"Not Found"}`, wantCode: domainerrors.CodeNotFound, wantMsg: "Not Found"},
		{name: "bad request", status: 400, body: `{"detail":"bad input"}`, wantCode: domainerrors.CodeValidation, wantMsg: "bad input"},
		{name: "conflict is validation", status: 409, body: `{"message":"username taken"}`, wantCode: domainerrors.CodeValidation, wantMsg: "username taken"},
		{name: "too many requests", status: 429, wantCode: domainerrors.CodeUnavailable, wantMsg: "too many requests"},
		{name: "server error", status: 500, body: `oops`, wantCode: domainerrors.CodeUnavailable, wantMsg: "internal server error"},
		{name: "bad gateway", status: 502, wantCode: domainerrors.CodeUnavailable, wantMsg: "bad gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify(tt.status, []byte(tt.body))
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}

			var de *domainerrors.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.wantCode, de.Code)
			assert.Equal(t, tt.wantMsg, de.Message)
			assert.Equal(t, tt.status, de.Status)
		})
	}
}

func TestClassify_FieldDetails(t *testing.T) {
	tests := []struct {
		name string
		body string
		want map[string]string
	}{
		{
			name: "details object",
			body: `{"code":"VALIDATION","message":"title is too short","details":{"title":"must be at least 3 characters"}}`,
			want: map[string]string{"title": "must be at least 3 characters"},
		},
		{
			name: "errors object",
			body: `{"message":"invalid","errors":{"email":"must be a valid email"}}`,
			want: map[string]string{"email": "must be a valid email"},
		},
		{
			name: "huma error list",
			body: `{"title":"Unprocessable Entity","errors":[{"message":"expected length >= 3","location":"body.title"}]}`,
			want: map[string]string{"title": "expected length >= 3"},
		},
		{
			name: "spring field errors",
			body: `{"error":"Bad Request","errors":[{"field":"content","defaultMessage":"size must be between 50 and 10000"}]}`,
			want: map[string]string{"content": "size must be between 50 and 10000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify(http.StatusBadRequest, []byte(tt.body))

			var de *domainerrors.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, domainerrors.CodeValidation, de.Code)
			assert.Equal(t, tt.want, de.Fields())
		})
	}
}
