package handlers

import (
	"encoding/json"

	"github.com/serroba/associates-api/internal/associates"
)

// AddFriendBody is the body of an add request. All fields are optional so
// that missing values are reported with the API's own messages.
type AddFriendBody struct {
	_ struct{} `additionalProperties:"true"`

	Name      *string         `doc:"Unique name of the friend"       example:"alice" json:"name,omitempty"`
	Value     json.RawMessage `doc:"Value stored for the friend"                     json:"value,omitempty"`
	LikeCount *int64          `doc:"Initial like count, default 0"   example:"0"     json:"likeCount,omitempty"`
}

// AddFriendRequest is the request for adding a friend.
type AddFriendRequest struct {
	Body *AddFriendBody `required:"false"`
}

// ChangeValueBody is the body of a partial update request.
type ChangeValueBody struct {
	_ struct{} `additionalProperties:"true"`

	Name         *string         `doc:"Name of the friend to update" example:"alice" json:"name,omitempty"`
	NewValue     json.RawMessage `doc:"Replacement value"                            json:"newValue,omitempty"`
	NewLikeCount *int64          `doc:"Replacement like count"       example:"5"     json:"newLikeCount,omitempty"`
}

// ChangeValueRequest is the request for updating a friend.
type ChangeValueRequest struct {
	Body *ChangeValueBody `required:"false"`
}

// DeleteFriendBody is the body of a delete request.
type DeleteFriendBody struct {
	_ struct{} `additionalProperties:"true"`

	Name *string `doc:"Name of the friend to delete" example:"alice" json:"name,omitempty"`
}

// DeleteFriendRequest is the request for deleting a friend.
type DeleteFriendRequest struct {
	Body *DeleteFriendBody `required:"false"`
}

// DocumentBody carries the whole document after a read or an add.
type DocumentBody struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    associates.Document `json:"data"`
}

// DocumentResponse is the response of list and add operations.
type DocumentResponse struct {
	Body DocumentBody
}

// ChangeValueResponse carries the updated record.
type ChangeValueResponse struct {
	Body struct {
		Success bool                   `json:"success"`
		Message string                 `json:"message"`
		Data    associates.NamedRecord `json:"data"`
	}
}

// DeleteFriendResponse confirms a deletion.
type DeleteFriendResponse struct {
	Body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
}
