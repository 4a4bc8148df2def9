package main

import (
	"context"
	"encoding/json"
	"net/http"

	"collections-backend/model"
	"collections-backend/services"

	"github.com/aws/aws-lambda-go/events"
)

type entitySummary struct {
	ID             uint           `json:"id"`
	Name           string         `json:"name"`
	Type           string         `json:"type"`
	Status         string         `json:"status"`
	SummaryDetails map[string]any `json:"summary_details"`
}

func routeUsers(ctx context.Context, req events.APIGatewayProxyRequest, pp []string) (events.APIGatewayProxyResponse, error) {
	// GET /users/
	if len(pp) == 1 {
		if req.HTTPMethod != http.MethodGet {
			return errorResponse(http.StatusMethodNotAllowed, "Method not allowed")
		}
		return handleListEntities(req)
	}

	if len(pp) == 2 {
		switch pp[1] {
		case "analytics":
			if req.HTTPMethod != http.MethodGet {
				return errorResponse(http.StatusMethodNotAllowed, "Method not allowed")
			}
			return handleAnalytics(ctx)
		case "group":
			if req.HTTPMethod != http.MethodPost {
				return errorResponse(http.StatusMethodNotAllowed, "Method not allowed")
			}
			return handleCreateGroup(req)
		default:
			if req.HTTPMethod != http.MethodGet {
				return errorResponse(http.StatusMethodNotAllowed, "Method not allowed")
			}
			id, err := parseID(pp[1])
			if err != nil {
				return errorResponse(http.StatusBadRequest, "id must be an integer")
			}
			return handleGetEntity(id)
		}
	}

	// PATCH /users/{id}/status
	if len(pp) == 3 && pp[2] == "status" {
		if req.HTTPMethod != http.MethodPatch {
			return errorResponse(http.StatusMethodNotAllowed, "Method not allowed")
		}
		id, err := parseID(pp[1])
		if err != nil {
			return errorResponse(http.StatusBadRequest, "id must be an integer")
		}
		return handleUpdateStatus(req, id)
	}

	return errorResponse(http.StatusNotFound, "Not Found")
}

// handleListEntities returns users and groups together, each reduced to a
// lightweight summary.
func handleListEntities(req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	status := req.QueryStringParameters["status"]
	if status != "" && !model.ValidStatus(status) {
		return errorResponse(http.StatusBadRequest, "Invalid status filter")
	}

	users, err := userService.ListUsers(status)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "Failed to fetch users")
	}
	groups, err := groupService.ListGroups(status)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "Failed to fetch groups")
	}

	results := make([]entitySummary, 0, len(users)+len(groups))

	for _, u := range users {
		details := model.DetailsMap(u.Details)
		summary := map[string]any{}
		for _, k := range []string{"amount_owed", "due_date"} {
			if v, ok := details[k]; ok {
				summary[k] = v
			}
		}
		results = append(results, entitySummary{
			ID:             u.ID,
			Name:           u.Name,
			Type:           model.OwnerTypeUser,
			Status:         u.Status,
			SummaryDetails: summary,
		})
	}

	for _, g := range groups {
		results = append(results, entitySummary{
			ID:             g.ID,
			Name:           g.Name,
			Type:           model.OwnerTypeGroup,
			Status:         g.Status,
			SummaryDetails: map[string]any{"members": len(g.Users)},
		})
	}

	return jsonResponse(http.StatusOK, results)
}

func handleAnalytics(ctx context.Context) (events.APIGatewayProxyResponse, error) {
	snap, err := analyticsService.Snapshot(ctx)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "Failed to compute analytics")
	}
	return jsonResponse(http.StatusOK, snap)
}

func handleCreateGroup(req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var body struct {
		Name    string `json:"name"`
		UserIDs []uint `json:"user_ids"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return errorResponse(http.StatusBadRequest, "Invalid request body")
	}
	if body.Name == "" {
		return errorResponse(http.StatusBadRequest, "Group name is required")
	}

	group, err := groupService.CreateGroupWithUsers(body.Name, body.UserIDs)
	if err != nil {
		return errorResponse(http.StatusBadRequest, err.Error())
	}
	return jsonResponse(http.StatusOK, group)
}

// handleGetEntity tries user first, then group, mirroring the shared id
// space the dashboard expects.
func handleGetEntity(id uint) (events.APIGatewayProxyResponse, error) {
	user, err := userService.GetUserByID(id)
	if err == nil {
		payload := map[string]any{
			"type": model.OwnerTypeUser,
			"data": user,
		}
		if user.GroupID != nil {
			if group, gerr := groupService.GetGroupByID(*user.GroupID); gerr == nil {
				group.Users = nil
				payload["group"] = group
			}
		}
		return jsonResponse(http.StatusOK, payload)
	}
	if !services.IsNotFound(err) {
		return errorResponse(http.StatusInternalServerError, "Failed to retrieve user")
	}

	group, err := groupService.GetGroupByID(id)
	if err == nil {
		members := group.Users
		group.Users = nil
		return jsonResponse(http.StatusOK, map[string]any{
			"type":    model.OwnerTypeGroup,
			"data":    group,
			"members": members,
		})
	}
	if !services.IsNotFound(err) {
		return errorResponse(http.StatusInternalServerError, "Failed to retrieve group")
	}

	return errorResponse(http.StatusNotFound, "User or group not found")
}

func handleUpdateStatus(req events.APIGatewayProxyRequest, id uint) (events.APIGatewayProxyResponse, error) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return errorResponse(http.StatusBadRequest, "Invalid request body")
	}
	if !model.ValidStatus(body.Status) {
		return errorResponse(http.StatusBadRequest, "Invalid status")
	}

	user, err := userService.GetUserByID(id)
	if err == nil {
		if err := userService.UpdateUserStatus(user, body.Status); err != nil {
			return errorResponse(http.StatusInternalServerError, "Failed to update user")
		}
		return jsonResponse(http.StatusOK, map[string]any{"type": model.OwnerTypeUser, "data": user})
	}
	if !services.IsNotFound(err) {
		return errorResponse(http.StatusInternalServerError, "Failed to retrieve user")
	}

	group, err := groupService.GetGroupByID(id)
	if err == nil {
		if err := groupService.UpdateGroupStatus(group, body.Status); err != nil {
			return errorResponse(http.StatusInternalServerError, "Failed to update group")
		}
		return jsonResponse(http.StatusOK, map[string]any{"type": model.OwnerTypeGroup, "data": group})
	}
	if !services.IsNotFound(err) {
		return errorResponse(http.StatusInternalServerError, "Failed to retrieve group")
	}

	return errorResponse(http.StatusNotFound, "User or group not found")
}
