package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/associates-api/internal/associates"
	"github.com/serroba/associates-api/internal/audit"
	"github.com/serroba/associates-api/internal/messaging"
	"go.uber.org/zap"
)

// FriendService is the set of document operations served over HTTP.
type FriendService interface {
	List(ctx context.Context) (associates.Document, error)
	Add(ctx context.Context, in associates.AddInput) (associates.Document, error)
	Update(ctx context.Context, in associates.UpdateInput) (*associates.NamedRecord, error)
	Delete(ctx context.Context, name string) (string, error)
}

// IDGenerator returns a new change event ID.
type IDGenerator func() string

// FriendsHandler handles the friends document operations.
type FriendsHandler struct {
	service       FriendService
	publishChange messaging.Publish[audit.ChangeEvent]
	newID         IDGenerator
	logger        *zap.Logger
	now           func() time.Time
}

// NewFriendsHandler creates a new friends handler.
func NewFriendsHandler(
	service FriendService,
	publishChange messaging.Publish[audit.ChangeEvent],
	newID IDGenerator,
	logger *zap.Logger,
) *FriendsHandler {
	return &FriendsHandler{
		service:       service,
		publishChange: publishChange,
		newID:         newID,
		logger:        logger,
		now:           time.Now,
	}
}

func (h *FriendsHandler) List(ctx context.Context, _ *struct{}) (*DocumentResponse, error) {
	doc, err := h.service.List(ctx)
	if err != nil {
		return nil, h.fail(ctx, "list", err)
	}

	resp := &DocumentResponse{}
	resp.Body.Success = true
	resp.Body.Message = "Friends retrieved successfully"
	resp.Body.Data = doc

	return resp, nil
}

func (h *FriendsHandler) Add(ctx context.Context, req *AddFriendRequest) (*DocumentResponse, error) {
	var in associates.AddInput
	if req.Body != nil {
		in = associates.AddInput{Name: req.Body.Name, Value: valueOf(req.Body.Value), LikeCount: req.Body.LikeCount}
	}

	doc, err := h.service.Add(ctx, in)
	if err != nil {
		return nil, h.fail(ctx, "add", err)
	}

	name := *in.Name
	rec := doc[name]

	h.publish(ctx, audit.OperationAdd, name, rec.Value, rec.LikeCount)

	resp := &DocumentResponse{}
	resp.Body.Success = true
	resp.Body.Message = fmt.Sprintf("Added %q with value %q", name, *in.Value)
	resp.Body.Data = doc

	return resp, nil
}

func (h *FriendsHandler) ChangeValue(ctx context.Context, req *ChangeValueRequest) (*ChangeValueResponse, error) {
	var in associates.UpdateInput
	if req.Body != nil {
		in = associates.UpdateInput{
			Name:         req.Body.Name,
			NewValue:     valueOf(req.Body.NewValue),
			NewLikeCount: req.Body.NewLikeCount,
		}
	}

	rec, err := h.service.Update(ctx, in)
	if err != nil {
		return nil, h.fail(ctx, "update", err)
	}

	h.publish(ctx, audit.OperationUpdate, rec.Name, rec.Value, rec.LikeCount)

	resp := &ChangeValueResponse{}
	resp.Body.Success = true
	resp.Body.Message = updateMessage(in)
	resp.Body.Data = *rec

	return resp, nil
}

func (h *FriendsHandler) Delete(ctx context.Context, req *DeleteFriendRequest) (*DeleteFriendResponse, error) {
	var name string
	if req.Body != nil && req.Body.Name != nil {
		name = *req.Body.Name
	}

	msg, err := h.service.Delete(ctx, name)
	if err != nil {
		return nil, h.fail(ctx, "delete", err)
	}

	h.publish(ctx, audit.OperationDelete, name, "", 0)

	resp := &DeleteFriendResponse{}
	resp.Body.Success = true
	resp.Body.Message = msg

	return resp, nil
}

// valueOf normalises a JSON value to its stored string form. Absent and null
// values are reported as missing.
func valueOf(raw json.RawMessage) *string {
	v, ok := associates.ValueFromJSON(raw)
	if !ok {
		return nil
	}

	return &v
}

func updateMessage(in associates.UpdateInput) string {
	switch {
	case in.NewValue != nil && in.NewLikeCount != nil:
		return fmt.Sprintf("Updated %q to %q with %d likes", *in.Name, *in.NewValue, *in.NewLikeCount)
	case in.NewValue != nil:
		return fmt.Sprintf("Updated %q to %q", *in.Name, *in.NewValue)
	default:
		return fmt.Sprintf("Updated %q to %d likes", *in.Name, *in.NewLikeCount)
	}
}

// fail maps a service error to its HTTP error. Anything that is not a
// client error is logged and hidden behind a generic 500.
func (h *FriendsHandler) fail(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, associates.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, associates.ErrInvalid), errors.Is(err, associates.ErrConflict):
		return huma.Error400BadRequest(err.Error())
	}

	h.logger.Error("friends operation failed",
		zap.String("operation", op),
		zap.String("request_id", RequestMetaFromContext(ctx).RequestID),
		zap.Error(err),
	)

	return huma.Error500InternalServerError(MsgInternal)
}

func (h *FriendsHandler) publish(ctx context.Context, op audit.Operation, name, value string, likeCount int64) {
	meta := RequestMetaFromContext(ctx)
	event := &audit.ChangeEvent{
		ID:         h.newID(),
		Operation:  op,
		Name:       name,
		Value:      value,
		LikeCount:  likeCount,
		ClientIP:   meta.ClientIP,
		UserAgent:  meta.UserAgent,
		RequestID:  meta.RequestID,
		OccurredAt: h.now().UTC(),
	}

	if err := h.publishChange(event); err != nil {
		h.logger.Error("failed to publish change event",
			zap.String("name", name),
			zap.String("operation", string(op)),
			zap.String("request_id", meta.RequestID),
			zap.Error(err),
		)
	}
}
