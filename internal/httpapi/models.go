package httpapi

import (
	"net/http"
	"time"

	"github.com/corvidlabs/vertexpass/internal/openaiapi"
)

// modelList is the GET /v1/models response envelope.
type modelList struct {
	Object string           `json:"object"`
	Data   []openaiapi.Model `json:"data"`
}

// ModelsHandler serves the static model listing for the configured upstream
// model.
type ModelsHandler struct {
	ModelIDs []string
	created  int64
}

// Compile-time check to ensure ModelsHandler implements http.Handler
var _ http.Handler = (*ModelsHandler)(nil)

// NewModelsHandler freezes the listing's created timestamp at construction.
func NewModelsHandler(modelIDs []string) *ModelsHandler {
	return &ModelsHandler{ModelIDs: modelIDs, created: time.Now().Unix()}
}

func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	list := modelList{Object: "list", Data: make([]openaiapi.Model, 0, len(h.ModelIDs))}
	for _, id := range h.ModelIDs {
		list.Data = append(list.Data, openaiapi.Model{
			ID:      id,
			Object:  "model",
			Created: h.created,
			OwnedBy: "anthropic",
		})
	}
	writeJSON(r.Context(), w, list, http.StatusOK)
}
