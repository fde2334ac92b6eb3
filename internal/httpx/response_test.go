package httpx

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	JSONError(w, http.StatusConflict, "invalid_transition", "nope", map[string]string{"from": "converted"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var body ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "invalid_transition" || body.Message != "nope" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestJSONNilPayload(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, nil)
	if w.Body.String() != "null" {
		t.Fatalf("expected null got %q", w.Body.String())
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	if err := DecodeJSON(httptest.NewRecorder(), r, &dst); err != nil || dst.Name != "x" {
		t.Fatalf("decode: %v %+v", err, dst)
	}
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"other":1}`))
	if err := DecodeJSON(httptest.NewRecorder(), r, &dst); err == nil {
		t.Fatalf("expected unknown field error")
	}
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	if err := DecodeJSON(httptest.NewRecorder(), r, &dst); err == nil {
		t.Fatalf("expected empty body error")
	}
}

func TestDecodeOptionalJSON(t *testing.T) {
	var dst struct {
		Reason string `json:"reason"`
	}
	// Chunked body: no Content-Length.
	r := httptest.NewRequest(http.MethodPost, "/", io.MultiReader(strings.NewReader(`{"reason":"late"}`)))
	r.ContentLength = -1
	if err := DecodeOptionalJSON(httptest.NewRecorder(), r, &dst); err != nil || dst.Reason != "late" {
		t.Fatalf("decode chunked: %v %+v", err, dst)
	}
	for _, body := range []io.Reader{nil, strings.NewReader("")} {
		r = httptest.NewRequest(http.MethodPost, "/", body)
		if err := DecodeOptionalJSON(httptest.NewRecorder(), r, &dst); err != nil {
			t.Fatalf("empty body should be accepted: %v", err)
		}
	}
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"bogus":1}`))
	if err := DecodeOptionalJSON(httptest.NewRecorder(), r, &dst); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestWantsJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept", "application/json")
	if !WantsJSON(r) {
		t.Fatalf("expected json")
	}
	r.Header.Set("Accept", "text/html,application/json")
	if WantsJSON(r) {
		t.Fatalf("expected html")
	}
}
