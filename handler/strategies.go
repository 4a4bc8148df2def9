package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"collections-backend/model"
	"collections-backend/services"
	"collections-backend/strategy"

	"github.com/aws/aws-lambda-go/events"
)

// owner abstracts over the two strategy owner kinds so the route handlers
// never branch on concrete types.
type owner struct {
	user  *model.User
	group *model.Group
}

func (o *owner) id() uint {
	if o.user != nil {
		return o.user.ID
	}
	return o.group.ID
}

// rawDetails is the mapping handed to the planner model: the user's full
// blob, or a small aggregate for groups.
func (o *owner) rawDetails() map[string]any {
	if o.user != nil {
		return model.DetailsMap(o.user.Details)
	}
	return map[string]any{
		"group_name": o.group.Name,
		"members":    len(o.group.Users),
	}
}

// details is the typed view used for contact enrichment. Groups carry no
// contact methods, so enrichment is a no-op for them.
func (o *owner) details() model.Details {
	if o.user != nil {
		return model.ParseDetails(o.user.Details)
	}
	return model.Details{}
}

var errOwnerNotFound = errors.New("owner not found")

func resolveOwner(ownerID uint, ownerType string) (*owner, error) {
	if ownerType == model.OwnerTypeGroup {
		group, err := groupService.GetGroupByID(ownerID)
		if services.IsNotFound(err) {
			return nil, errOwnerNotFound
		}
		if err != nil {
			return nil, err
		}
		return &owner{group: group}, nil
	}

	user, err := userService.GetUserByID(ownerID)
	if services.IsNotFound(err) {
		return nil, errOwnerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &owner{user: user}, nil
}

func ownerErrorResponse(ownerType string, err error) (events.APIGatewayProxyResponse, error) {
	if errors.Is(err, errOwnerNotFound) {
		if ownerType == model.OwnerTypeGroup {
			return errorResponse(http.StatusNotFound, "Group not found")
		}
		return errorResponse(http.StatusNotFound, "User not found")
	}
	return errorResponse(http.StatusInternalServerError, "Failed to retrieve owner")
}

type strategyResponse struct {
	ID        uint                      `json:"id"`
	Timeline  []strategy.TimelineColumn `json:"timeline"`
	Prompt    *string                   `json:"prompt"`
	Executed  bool                      `json:"executed"`
	OwnerType string                    `json:"owner_type"`
}

func toStrategyResponse(st *model.Strategy, ownerType string) (strategyResponse, error) {
	timeline, err := services.DecodeTimeline(st.Timeline)
	if err != nil {
		return strategyResponse{}, err
	}
	return strategyResponse{
		ID:        st.ID,
		Timeline:  timeline,
		Prompt:    st.Prompt,
		Executed:  st.Executed,
		OwnerType: ownerType,
	}, nil
}

func routeStrategies(ctx context.Context, req events.APIGatewayProxyRequest, pp []string) (events.APIGatewayProxyResponse, error) {
	if len(pp) < 2 || len(pp) > 3 {
		return errorResponse(http.StatusNotFound, "Not Found")
	}

	ownerID, err := parseID(pp[1])
	if err != nil {
		return errorResponse(http.StatusBadRequest, "owner id must be an integer")
	}

	ownerType := req.QueryStringParameters["owner_type"]
	if ownerType == "" {
		ownerType = model.OwnerTypeUser
	}
	if ownerType != model.OwnerTypeUser && ownerType != model.OwnerTypeGroup {
		return errorResponse(http.StatusBadRequest, "owner_type must be 'user' or 'group'")
	}

	if len(pp) == 2 {
		switch req.HTTPMethod {
		case http.MethodGet:
			return handleGetStrategy(ownerID, ownerType)
		case http.MethodPost:
			return handleCreateOrUpdateStrategy(req, ownerID, ownerType)
		}
		return errorResponse(http.StatusMethodNotAllowed, "Method not allowed")
	}

	if req.HTTPMethod != http.MethodPost {
		return errorResponse(http.StatusMethodNotAllowed, "Method not allowed")
	}

	switch pp[2] {
	case "ai-generate":
		return handleAIGenerateStrategy(ctx, req, ownerID, ownerType)
	case "ai-generate-block-content":
		return handleAIGenerateBlockContent(ctx, req, ownerID, ownerType)
	case "execute":
		return handleExecuteStrategy(ownerID, ownerType)
	}

	return errorResponse(http.StatusNotFound, "Not Found")
}

// handleGetStrategy returns the owner's strategy, or a JSON null when the
// owner has none yet.
func handleGetStrategy(ownerID uint, ownerType string) (events.APIGatewayProxyResponse, error) {
	st, err := strategyService.GetLatestForOwner(ownerID, ownerType)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "Failed to retrieve strategy")
	}
	if st == nil {
		return jsonResponse(http.StatusOK, nil)
	}

	resp, err := toStrategyResponse(st, ownerType)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "Failed to serialize strategy")
	}
	return jsonResponse(http.StatusOK, resp)
}

func handleCreateOrUpdateStrategy(req events.APIGatewayProxyRequest, ownerID uint, ownerType string) (events.APIGatewayProxyResponse, error) {
	var body struct {
		Timeline  []strategy.TimelineColumn `json:"timeline"`
		Prompt    *string                   `json:"prompt"`
		OwnerType string                    `json:"owner_type"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return errorResponse(http.StatusBadRequest, "Invalid request body")
	}
	if body.OwnerType != "" {
		if body.OwnerType != model.OwnerTypeUser && body.OwnerType != model.OwnerTypeGroup {
			return errorResponse(http.StatusBadRequest, "owner_type must be 'user' or 'group'")
		}
		ownerType = body.OwnerType
	}

	o, err := resolveOwner(ownerID, ownerType)
	if err != nil {
		return ownerErrorResponse(ownerType, err)
	}

	prepared, err := strategy.PrepareTimeline(body.Timeline, o.details())
	if err != nil {
		var schemaErr *strategy.SchemaError
		if errors.As(err, &schemaErr) {
			return schemaErrorResponse(schemaErr)
		}
		return errorResponse(http.StatusBadRequest, "Invalid strategy timeline")
	}

	st, err := strategyService.CreateOrUpdateForOwner(ownerID, ownerType, prepared, body.Prompt)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "Failed to store strategy")
	}

	resp, err := toStrategyResponse(st, ownerType)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "Failed to serialize strategy")
	}
	return jsonResponse(http.StatusOK, resp)
}

func handleAIGenerateStrategy(ctx context.Context, req events.APIGatewayProxyRequest, ownerID uint, ownerType string) (events.APIGatewayProxyResponse, error) {
	var body struct {
		Prompt string `json:"prompt"`
	}
	if req.Body != "" {
		if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
			return errorResponse(http.StatusBadRequest, "Invalid request body")
		}
	}

	o, err := resolveOwner(ownerID, ownerType)
	if err != nil {
		return ownerErrorResponse(ownerType, err)
	}

	prompt := body.Prompt
	if prompt == "" {
		prompt = "Create balanced collection strategy"
	}

	timeline := strategyService.BuildTimeline(ctx, o.rawDetails(), o.details(), prompt)

	st, err := strategyService.CreateOrUpdateForOwner(ownerID, ownerType, timeline, &prompt)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "Failed to store strategy")
	}

	resp, err := toStrategyResponse(st, ownerType)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "Failed to serialize strategy")
	}
	return jsonResponse(http.StatusOK, resp)
}

// handleAIGenerateBlockContent crafts copy for a single action block. The
// result is returned to the caller, never persisted.
func handleAIGenerateBlockContent(ctx context.Context, req events.APIGatewayProxyRequest, ownerID uint, ownerType string) (events.APIGatewayProxyResponse, error) {
	var body struct {
		Block  strategy.Block `json:"block"`
		Prompt string         `json:"prompt"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return errorResponse(http.StatusBadRequest, "Invalid request body")
	}

	o, err := resolveOwner(ownerID, ownerType)
	if err != nil {
		return ownerErrorResponse(ownerType, err)
	}

	content := strategyService.BuildBlockContent(ctx, o.details(), body.Block, body.Prompt)
	return jsonResponse(http.StatusOK, map[string]string{"content": content})
}

func handleExecuteStrategy(ownerID uint, ownerType string) (events.APIGatewayProxyResponse, error) {
	o, err := resolveOwner(ownerID, ownerType)
	if err != nil {
		return ownerErrorResponse(ownerType, err)
	}

	st, err := strategyService.GetLatestForOwner(ownerID, ownerType)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "Failed to retrieve strategy")
	}
	if st == nil {
		return errorResponse(http.StatusNotFound, "No strategy found for this owner")
	}

	if err := strategyService.MarkExecuted(st); err != nil {
		return errorResponse(http.StatusInternalServerError, "Failed to mark strategy executed")
	}

	var userStatus, groupStatus *string
	if o.user != nil {
		status := services.UserStatusAfterExecution(o.details())
		if err := userService.UpdateUserStatus(o.user, status); err != nil {
			return errorResponse(http.StatusInternalServerError, "Failed to update user status")
		}
		userStatus = &status
	} else {
		status := services.GroupStatusAfterExecution(o.group.Users)
		if err := groupService.UpdateGroupStatus(o.group, status); err != nil {
			return errorResponse(http.StatusInternalServerError, "Failed to update group status")
		}
		groupStatus = &status
	}

	return jsonResponse(http.StatusOK, map[string]any{
		"id":           st.ID,
		"executed":     st.Executed,
		"user_status":  userStatus,
		"group_status": groupStatus,
	})
}
