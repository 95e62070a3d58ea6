package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func runRequestID(t *testing.T, inbound string) (string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var captured string
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) {
		captured = GetRequestID(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if inbound != "" {
		req.Header.Set("X-Request-ID", inbound)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return captured, w.Header().Get("X-Request-ID")
}

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	captured, echoed := runRequestID(t, "")

	if captured == "" {
		t.Fatal("expected a generated request id")
	}
	if _, err := uuid.Parse(captured); err != nil {
		t.Errorf("generated id is not a UUID: %q", captured)
	}
	if echoed != captured {
		t.Errorf("response header %q does not match context id %q", echoed, captured)
	}
}

func TestRequestID_KeepsValidInboundID(t *testing.T) {
	inbound := uuid.NewString()
	captured, echoed := runRequestID(t, inbound)

	if captured != inbound {
		t.Errorf("expected inbound id %q to be kept, got %q", inbound, captured)
	}
	if echoed != inbound {
		t.Errorf("expected inbound id echoed, got %q", echoed)
	}
}

func TestRequestID_ReplacesMalformedInboundID(t *testing.T) {
	captured, echoed := runRequestID(t, "not-a-uuid")

	if captured == "" {
		t.Fatal("expected a replacement request id")
	}
	if _, err := uuid.Parse(captured); err != nil {
		t.Errorf("replacement id is not a UUID: %q", captured)
	}
	if echoed != captured {
		t.Errorf("response header %q does not match context id %q", echoed, captured)
	}
}
