package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"collections-backend/ingestion"
	"collections-backend/model"
	"collections-backend/services"

	"github.com/aws/aws-lambda-go/events"
)

func routeIngestion(req events.APIGatewayProxyRequest, pp []string) (events.APIGatewayProxyResponse, error) {
	if len(pp) != 2 || req.HTTPMethod != http.MethodPost {
		return errorResponse(http.StatusNotFound, "Not Found")
	}
	switch pp[1] {
	case "upload":
		return handleUpload(req)
	case "add-user":
		return handleAddUser(req)
	}
	return errorResponse(http.StatusNotFound, "Not Found")
}

func handleAddUser(req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var body struct {
		Name    string         `json:"name"`
		Details map[string]any `json:"details"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return errorResponse(http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(body.Name) == "" {
		return errorResponse(http.StatusBadRequest, "Name is required")
	}

	user, err := userService.CreateUser(strings.TrimSpace(body.Name), body.Details)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "Failed to create user")
	}
	return jsonResponse(http.StatusOK, user)
}

// handleUpload ingests a CSV, Excel, or PDF into user detail blobs and
// archives the raw file for every user it touched.
func handleUpload(req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	filename, content, errResp := extractUploadedFile(req)
	if errResp != nil {
		return *errResp, nil
	}
	if len(content) == 0 {
		return errorResponse(http.StatusBadRequest, "Uploaded file is empty")
	}

	var userID *uint
	if raw := req.QueryStringParameters["user_id"]; raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return errorResponse(http.StatusBadRequest, "user_id must be an integer")
		}
		userID = &id
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ingestCSV(filename, content)
	case ".xlsx", ".xls":
		return ingestExcel(filename, content, userID)
	case ".pdf":
		return ingestPDF(filename, content, userID)
	}
	return errorResponse(http.StatusBadRequest, "Unsupported file type. Use .csv, .xlsx, .xls or .pdf")
}

// ingestCSV creates or detail-merges one user per spreadsheet row.
func ingestCSV(filename string, content []byte) (events.APIGatewayProxyResponse, error) {
	records, err := ingestion.ExtractUsersFromCSV(content)
	if err != nil {
		return errorResponse(http.StatusBadRequest, err.Error())
	}

	type createdUser struct {
		UserID uint   `json:"user_id"`
		Name   string `json:"name"`
	}
	created := make([]createdUser, 0, len(records))
	touched := make([]uint, 0, len(records))

	for _, rec := range records {
		existing, err := userService.FindUserByName(rec.Name)
		if err != nil {
			return errorResponse(http.StatusInternalServerError, "Failed to process upload")
		}

		var user *model.User
		if existing != nil {
			user, err = userService.MergeUserDetails(existing, rec.Details)
		} else {
			user, err = userService.CreateUser(rec.Name, rec.Details)
		}
		if err != nil {
			return errorResponse(http.StatusInternalServerError, "Failed to process upload")
		}

		created = append(created, createdUser{UserID: user.ID, Name: user.Name})
		touched = append(touched, user.ID)
	}

	archiveUpload(touched, filename, content)

	return jsonResponse(http.StatusOK, map[string]any{
		"message": formatProcessedMessage(len(created)),
		"users":   created,
	})
}

func ingestExcel(filename string, content []byte, userID *uint) (events.APIGatewayProxyResponse, error) {
	rec, err := ingestion.ExtractUserFromExcel(content)
	if err != nil {
		return errorResponse(http.StatusBadRequest, err.Error())
	}

	if userID != nil {
		if _, err := userService.GetUserByID(*userID); services.IsNotFound(err) {
			return errorResponse(http.StatusNotFound, "User not found for provided user_id")
		}
	}

	user, err := userService.UpsertUserFromDetails(userID, rec.Name, rec.Details)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "Failed to process upload")
	}

	archiveUpload([]uint{user.ID}, filename, content)
	return jsonResponse(http.StatusOK, map[string]uint{"user_id": user.ID})
}

// ingestPDF attaches extracted page text to an existing user's history, or
// creates a user named after the file.
func ingestPDF(filename string, content []byte, userID *uint) (events.APIGatewayProxyResponse, error) {
	historyText, err := ingestion.ExtractPDFText(content)
	if err != nil {
		return errorResponse(http.StatusBadRequest, err.Error())
	}

	var user *model.User
	if userID != nil {
		existing, err := userService.GetUserByID(*userID)
		if services.IsNotFound(err) {
			return errorResponse(http.StatusNotFound, "User not found for provided user_id")
		}
		if err != nil {
			return errorResponse(http.StatusInternalServerError, "Failed to process upload")
		}
		user, err = userService.MergeUserDetails(existing, map[string]any{"history_text": historyText})
		if err != nil {
			return errorResponse(http.StatusInternalServerError, "Failed to process upload")
		}
	} else {
		name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
		if name == "" {
			name = "user-from-pdf"
		}
		user, err = userService.CreateUser(name, map[string]any{"history_text": historyText})
		if err != nil {
			return errorResponse(http.StatusInternalServerError, "Failed to process upload")
		}
	}

	archiveUpload([]uint{user.ID}, filename, content)
	return jsonResponse(http.StatusOK, map[string]uint{"user_id": user.ID})
}

// archiveUpload is best-effort; a failed archive never fails the ingestion.
func archiveUpload(userIDs []uint, filename string, content []byte) {
	if err := documentService.ArchiveUpload(userIDs, filename, content); err != nil {
		log.Printf("failed to archive upload %q: %v", filename, err)
	}
}

// extractUploadedFile pulls the "file" part out of the multipart request
// body, handling API Gateway's base64 encoding.
func extractUploadedFile(req events.APIGatewayProxyRequest) (string, []byte, *events.APIGatewayProxyResponse) {
	badRequest := func(message string) (string, []byte, *events.APIGatewayProxyResponse) {
		resp, _ := errorResponse(http.StatusBadRequest, message)
		return "", nil, &resp
	}

	raw := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return badRequest("Invalid request body encoding")
		}
		raw = decoded
	}

	contentType := headerValue(req.Headers, "Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return badRequest("Expected multipart/form-data upload")
	}
	boundary := params["boundary"]
	if boundary == "" {
		return badRequest("Multipart boundary missing")
	}

	mr := multipart.NewReader(bytes.NewReader(raw), boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return badRequest("Malformed multipart body")
		}
		if part.FormName() != "file" {
			continue
		}
		data, err := io.ReadAll(part)
		if err != nil {
			return badRequest("Malformed multipart body")
		}
		return part.FileName(), data, nil
	}

	return badRequest("No file uploaded")
}

func formatProcessedMessage(n int) string {
	return fmt.Sprintf("Successfully processed %d user(s)", n)
}
