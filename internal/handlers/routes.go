package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/associates-api/internal/ratelimit"
)

func limitedBy(scope ratelimit.Scope) map[string]any {
	return map[string]any{
		ratelimit.MetadataKey: ratelimit.EndpointConfig{Scope: scope},
	}
}

// RegisterRoutes registers the friends routes with their rate limit class.
func RegisterRoutes(api huma.API, h *FriendsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-friends",
		Method:      http.MethodGet,
		Path:        "/friends",
		Summary:     "List friends",
		Description: "Returns every entry of the associates document.",
		Tags:        []string{"Friends"},
		Errors:      []int{http.StatusNotFound},
		Metadata:    limitedBy(ratelimit.ScopeGlobal),
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID:   "add-friend",
		Method:        http.MethodPost,
		Path:          "/addfriend",
		Summary:       "Add friend",
		Description:   "Adds a new entry. Fails when the name already exists.",
		Tags:          []string{"Friends"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
		Metadata:      limitedBy(ratelimit.ScopeStrict),
	}, h.Add)

	huma.Register(api, huma.Operation{
		OperationID: "change-value",
		Method:      http.MethodPatch,
		Path:        "/changevalue",
		Summary:     "Change friend",
		Description: "Updates the value and/or like count of an existing entry, keeping the fields not provided.",
		Tags:        []string{"Friends"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
		Metadata:    limitedBy(ratelimit.ScopeLike),
	}, h.ChangeValue)

	huma.Register(api, huma.Operation{
		OperationID: "delete-friend",
		Method:      http.MethodDelete,
		Path:        "/friends",
		Summary:     "Delete friend",
		Description: "Removes an entry from the document.",
		Tags:        []string{"Friends"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
		Metadata:    limitedBy(ratelimit.ScopeStrict),
	}, h.Delete)
}
