package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusCreated).Data(map[string]int{"count": 2}).Write(rr)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Fatalf("Content-Type = %q", got)
	}
	var body map[string]int
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["count"] != 2 {
		t.Fatalf("body = %v", body)
	}
}

func TestJSONResponseBuilder_Attachment(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().
		Body("text/csv; charset=utf-8", []byte("a,b\n")).
		Attachment("recherche 2025.csv").
		Write(rr)

	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="recherche 2025.csv"` {
		t.Fatalf("Content-Disposition = %q", got)
	}
	if rr.Header().Get("Content-Type") != "text/csv; charset=utf-8" || rr.Body.String() != "a,b\n" {
		t.Fatalf("unexpected response %q %q", rr.Header().Get("Content-Type"), rr.Body.String())
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().Data(map[string]any{"bad": make(chan int)}).Write(rr)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		builder *JSONResponseBuilder
		status  int
	}{
		{"bad request", BadRequestError("Le libellé est obligatoire"), http.StatusBadRequest},
		{"not found", NotFoundError("Transaction non trouvée"), http.StatusNotFound},
		{"unavailable", ServiceUnavailableError("ChartsManager"), http.StatusServiceUnavailable},
		{"internal", InternalServerError("boom"), http.StatusInternalServerError},
		{"rate limited", TooManyRequestsError(), http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tt.builder.Write(rr)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			var body ErrorBody
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body.Error == "" {
				t.Fatalf("body = %q, err = %v", rr.Body.String(), err)
			}
		})
	}
}
