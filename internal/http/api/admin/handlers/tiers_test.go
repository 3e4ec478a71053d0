package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestTierCreateForceOverridesLadderCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn := newTestDB(t)

	h := NewTierHandler(conn)
	r := gin.New()
	r.POST("/tiers", h.Create)

	// A top-rank tier with tiny limits lowers the ladder below the seeded
	// tiers, so the plain create must be rejected.
	body := gin.H{
		"slug":            "repx9",
		"name":            "RepX9",
		"rank":            9,
		"contacts_limit":  1,
		"calls_per_month": 1,
	}
	w := performJSON(t, r, http.MethodPost, "/tiers", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}

	body["force"] = true
	w = performJSON(t, r, http.MethodPost, "/tiers", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTierUpdateForceOverridesLadderCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn := newTestDB(t)

	h := NewTierHandler(conn)
	r := gin.New()
	r.POST("/tiers", h.Create)
	r.PUT("/tiers/:id", h.Update)

	w := performJSON(t, r, http.MethodPost, "/tiers", gin.H{
		"slug":            "repx9",
		"name":            "RepX9",
		"rank":            9,
		"contacts_limit":  1,
		"calls_per_month": 1,
		"force":           true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID uint64 `json:"id"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &created); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}

	// The stored ladder is still broken, so an unforced update is refused
	// even when the touched field is unrelated.
	path := fmt.Sprintf("/tiers/%d", created.ID)
	w = performJSON(t, r, http.MethodPut, path, gin.H{"name": "RepX9 Elite"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}

	w = performJSON(t, r, http.MethodPut, path, gin.H{"name": "RepX9 Elite", "force": true})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}
