package main

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/openshelf/library_backend/utils"
)

func TestRespondErrorMapsStatuses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"record not found", utils.ErrorRecordNotFound, 404, `{"error":"Book not found"}`},
		{"validation message passes through", utils.NewValidationError("No available copies to borrow"), 400, `{"error":"No available copies to borrow"}`},
		{"network failure", errors.New("dial tcp 10.0.0.1:3306: connection refused"), 500, `{"error":"Network unavailable"}`},
		{"internal error stays generic", errors.New("Error 1064: You have an error in your SQL syntax"), 500, `{"error":"Internal server error"}`},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		respondError(c, tc.err, "Book not found")
		if w.Code != tc.wantStatus {
			t.Fatalf("%s: expected status %d, got %d", tc.name, tc.wantStatus, w.Code)
		}
		if w.Body.String() != tc.wantBody {
			t.Fatalf("%s: expected body %s, got %s", tc.name, tc.wantBody, w.Body.String())
		}
	}
}
