package suggestions

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/suggestions", getSuggestionsHandler(svc))
}

// suggestionsResponse son los hints de autocompletado del formulario.
type suggestionsResponse struct {
	Animals []string `json:"animals"`
	Tutors  []string `json:"tutors"`
}

// getSuggestionsHandler godoc
// @Summary Hints de autocompletado
// @Description Devuelve los nombres de animales y tutores usados en envíos recientes, para autocompletar el formulario de examen.
// @Tags suggestions
// @Produce json
// @Success 200 {object} suggestionsResponse
// @Failure 500 {string} string "internal error"
// @Router /suggestions [get]
func getSuggestionsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		animals, tutors, err := svc.Hints(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if animals == nil {
			animals = []string{}
		}
		if tutors == nil {
			tutors = []string{}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(suggestionsResponse{Animals: animals, Tutors: tutors})
	}
}
