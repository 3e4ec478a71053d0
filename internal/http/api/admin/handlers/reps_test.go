package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/repspheres/repcore/internal/models"
)

func TestRepListSearchIsCaseInsensitive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn := newTestDB(t)

	now := time.Now().UTC()
	reps := []models.Rep{
		{Email: "jane.doe@acme.test", DisplayName: "Jane Doe", Password: "x", Active: true, CreatedAt: now, UpdatedAt: now},
		{Email: "bob@other.test", DisplayName: "Bob", Password: "x", Active: true, CreatedAt: now, UpdatedAt: now},
	}
	if errCreate := conn.Create(&reps).Error; errCreate != nil {
		t.Fatalf("seed reps: %v", errCreate)
	}

	h := NewRepHandler(conn)
	r := gin.New()
	r.GET("/reps", h.List)

	for _, search := range []string{"jane", "JANE", "Doe"} {
		req := httptest.NewRequest(http.MethodGet, "/reps?search="+search, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("search %q: status %d: %s", search, w.Code, w.Body.String())
		}
		var out struct {
			Reps []struct {
				Email string `json:"email"`
			} `json:"reps"`
		}
		if errDecode := json.Unmarshal(w.Body.Bytes(), &out); errDecode != nil {
			t.Fatalf("decode: %v", errDecode)
		}
		if len(out.Reps) != 1 || out.Reps[0].Email != "jane.doe@acme.test" {
			t.Fatalf("search %q: unexpected result %+v", search, out.Reps)
		}
	}
}
