package api

import (
	"net/http"

	"github.com/ashureev/taleweaver/internal/dice"
	"github.com/go-chi/chi/v5"
)

// RollResponse is the result of a die roll.
type RollResponse struct {
	Roll  int `json:"roll"`
	Sides int `json:"sides"`
}

// RegisterDiceRoutes registers the dice endpoints.
func RegisterDiceRoutes(r chi.Router) {
	r.Get("/api/roll", Roll)
	r.Get("/api/roll/{sides}", Roll)
}

// Roll rolls a die with the requested number of sides, d20 by default.
func Roll(w http.ResponseWriter, r *http.Request) {
	sides := dice.ParseSides(chi.URLParam(r, "sides"))
	JSON(w, http.StatusOK, RollResponse{Roll: dice.Roll(sides), Sides: sides})
}
