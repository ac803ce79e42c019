package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"zonewatch/internal/types"
)

// --- JSON helper tests ---

func TestJSON_Success(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	data := APIResponse{Data: map[string]string{"name": "test"}}
	JSON(w, r, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}

	var body APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	dataMap, ok := body.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("expected data to be a map, got %T", body.Data)
	}
	if dataMap["name"] != "test" {
		t.Errorf("expected name=test, got %v", dataMap["name"])
	}
}

func TestJSON_StatusPassthrough(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)

	data := map[string]string{"status": "accepted"}
	JSON(w, r, http.StatusAccepted, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("expected status 202, got %d", resp.StatusCode)
	}
}

func TestJSON_NilData(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	JSON(w, r, http.StatusNoContent, nil)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", resp.StatusCode)
	}
}

func TestJSON_MarshalFailure(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	// Add request ID to context for verification.
	ctx := types.WithRequestID(r.Context(), "req-marshal-fail")
	r = r.WithContext(ctx)

	// Channels cannot be marshalled to JSON.
	unmarshalable := make(chan int)
	JSON(w, r, http.StatusOK, unmarshalable)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", resp.StatusCode)
	}

	var errResp APIErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode fallback error: %v", err)
	}
	if errResp.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("expected code %s, got %s", types.ErrCodeInternalUnexpected, errResp.Error.Code)
	}
	if errResp.Error.RequestID != "req-marshal-fail" {
		t.Errorf("expected request_id req-marshal-fail, got %s", errResp.Error.RequestID)
	}
}

func TestJSON_EmptyListData(t *testing.T) {
	// An empty slice must serialize as [], not be dropped by omitempty.
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	JSON(w, r, http.StatusOK, APIResponse{Data: []string{}})

	body := w.Body.String()
	if !strings.Contains(body, `"data":[]`) {
		t.Errorf("expected empty list in data field, got %s", body)
	}
}

// --- Error helper tests ---

func TestError_AppError_Validation(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/zones", nil)
	ctx := types.WithRequestID(r.Context(), "req-val-001")
	r = r.WithContext(ctx)

	appErr := types.NewAppError(
		types.ErrCodeValidationInvalidLat,
		"Latitude must be between -90 and 90",
		nil,
	)
	Error(w, r, appErr)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", resp.StatusCode)
	}

	var errResp APIErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Error.Code != string(types.ErrCodeValidationInvalidLat) {
		t.Errorf("expected code %s, got %s", types.ErrCodeValidationInvalidLat, errResp.Error.Code)
	}
	if errResp.Error.Message != "Latitude must be between -90 and 90" {
		t.Errorf("expected message about latitude, got %q", errResp.Error.Message)
	}
	if errResp.Error.RequestID != "req-val-001" {
		t.Errorf("expected request_id req-val-001, got %s", errResp.Error.RequestID)
	}
}

func TestError_AppError_Auth(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/session/start", nil)
	ctx := types.WithRequestID(r.Context(), "req-auth-001")
	r = r.WithContext(ctx)

	appErr := types.NewAppError(
		types.ErrCodeAuthTokenInvalid,
		"invalid operator key",
		nil,
	)
	Error(w, r, appErr)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", resp.StatusCode)
	}

	var errResp APIErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Error.Code != string(types.ErrCodeAuthTokenInvalid) {
		t.Errorf("expected code %s, got %s", types.ErrCodeAuthTokenInvalid, errResp.Error.Code)
	}
}

func TestError_AppError_NotFound(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/zones/flood-river-basin", nil)

	appErr := types.NewAppError(
		types.ErrCodeNotFoundZone,
		"zone not found",
		nil,
	)
	Error(w, r, appErr)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", resp.StatusCode)
	}
}

func TestError_AppError_Conflict(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/session/start", nil)

	appErr := types.NewAppError(
		types.ErrCodeConflictSessionActive,
		"session is already active",
		nil,
	)
	Error(w, r, appErr)

	resp := w.Result()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected status 409, got %d", resp.StatusCode)
	}
}

func TestError_AppError_Permission(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/session/start", nil)

	appErr := types.NewPermissionDenied(types.PermissionBackground, nil)
	Error(w, r, appErr)

	resp := w.Result()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", resp.StatusCode)
	}
}

func TestError_AppError_PositioningUnavailable(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/position", nil)

	appErr := types.NewAppError(
		types.ErrCodePositioningUnavailable,
		"no position fix available",
		nil,
	)
	Error(w, r, appErr)

	resp := w.Result()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", resp.StatusCode)
	}
}

func TestError_AppError_RateLimited(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/session/refresh", nil)

	appErr := types.NewAppError(
		types.ErrCodeUpstreamRateLimited,
		"push gateway rate limit exceeded",
		nil,
	)
	Error(w, r, appErr)

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", resp.StatusCode)
	}
}

func TestError_AppError_Internal(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/events", nil)

	appErr := types.NewAppError(
		types.ErrCodeInternalDB,
		"database connection failed",
		errors.New("connection refused"),
	)
	Error(w, r, appErr)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", resp.StatusCode)
	}

	var errResp APIErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	// Verify the wrapped error is NOT leaked to the client.
	if strings.Contains(errResp.Error.Message, "connection refused") {
		t.Error("internal error details should not be exposed to client")
	}
}

func TestError_AppError_Upstream(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/session/refresh", nil)

	appErr := types.NewAppError(
		types.ErrCodeUpstreamPushGateway,
		"push gateway temporarily unavailable",
		nil,
	)
	Error(w, r, appErr)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", resp.StatusCode)
	}
}

func TestError_AppError_WithDetails(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/zones", nil)
	ctx := types.WithRequestID(r.Context(), "req-detail-001")
	r = r.WithContext(ctx)

	appErr := types.NewAppErrorWithDetails(
		types.ErrCodeValidationMissingField,
		"required field missing",
		nil,
		map[string]any{"field": "category", "constraint": "required"},
	)
	Error(w, r, appErr)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", resp.StatusCode)
	}

	var errResp APIErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Error.Details["field"] != "category" {
		t.Errorf("expected details.field=category, got %v", errResp.Error.Details["field"])
	}
	if errResp.Error.Details["constraint"] != "required" {
		t.Errorf("expected details.constraint=required, got %v", errResp.Error.Details["constraint"])
	}
	if errResp.Error.RequestID != "req-detail-001" {
		t.Errorf("expected request_id req-detail-001, got %s", errResp.Error.RequestID)
	}
}

func TestError_GenericError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/events", nil)
	ctx := types.WithRequestID(r.Context(), "req-generic-001")
	r = r.WithContext(ctx)

	genericErr := errors.New("some internal database error with connection details")
	Error(w, r, genericErr)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", resp.StatusCode)
	}

	var errResp APIErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("expected code %s, got %s", types.ErrCodeInternalUnexpected, errResp.Error.Code)
	}
	// Must NOT leak internal error message.
	if strings.Contains(errResp.Error.Message, "database") {
		t.Error("generic error message should not be exposed to client")
	}
	if errResp.Error.Message != "an unexpected error occurred" {
		t.Errorf("expected safe message, got %q", errResp.Error.Message)
	}
	if errResp.Error.RequestID != "req-generic-001" {
		t.Errorf("expected request_id req-generic-001, got %s", errResp.Error.RequestID)
	}
}

func TestError_WrappedAppError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/zones/flood-river-basin", nil)

	// Wrap an AppError inside another error.
	appErr := types.NewAppError(
		types.ErrCodeNotFoundZone,
		"zone not found",
		nil,
	)
	wrappedErr := errors.Join(errors.New("handler context"), appErr)
	Error(w, r, wrappedErr)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404 from wrapped AppError, got %d", resp.StatusCode)
	}
}

func TestError_NoRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	// No request ID in context.

	appErr := types.NewAppError(
		types.ErrCodeInternalUnexpected,
		"something went wrong",
		nil,
	)
	Error(w, r, appErr)

	resp := w.Result()
	var errResp APIErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	// request_id should be empty string, not missing.
	if errResp.Error.RequestID != "" {
		t.Errorf("expected empty request_id, got %q", errResp.Error.RequestID)
	}
}

// --- Integration: Error writes proper JSON structure ---

func TestError_ResponseStructure(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/zones", nil)
	ctx := types.WithRequestID(r.Context(), "req-struct-001")
	r = r.WithContext(ctx)

	appErr := types.NewAppError(
		types.ErrCodeValidationInvalidLat,
		"Latitude must be between -90 and 90",
		nil,
	)
	Error(w, r, appErr)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	// Verify the JSON has the exact top-level structure.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("failed to unmarshal raw: %v", err)
	}
	// Must have "error" at top level.
	if _, ok := raw["error"]; !ok {
		t.Error("response must have top-level 'error' field")
	}

	// Parse error detail.
	var errDetail struct {
		Error struct {
			Code      string         `json:"code"`
			Message   string         `json:"message"`
			Details   map[string]any `json:"details"`
			RequestID string         `json:"request_id"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errDetail); err != nil {
		t.Fatalf("failed to parse structured error: %v", err)
	}
	if errDetail.Error.Code == "" {
		t.Error("error.code must not be empty")
	}
	if errDetail.Error.Message == "" {
		t.Error("error.message must not be empty")
	}
	if errDetail.Error.RequestID != "req-struct-001" {
		t.Errorf("error.request_id: expected req-struct-001, got %q", errDetail.Error.RequestID)
	}
}

// --- Verify Content-Type on error responses ---

func TestError_ContentType(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(w, r, errors.New("test"))

	resp := w.Result()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}
}

// --- Verify all ErrorCode categories map to expected HTTP statuses via Error ---

func TestError_AllErrorCodeCategories(t *testing.T) {
	tests := []struct {
		name           string
		code           types.ErrorCode
		expectedStatus int
	}{
		{"validation latitude -> 400", types.ErrCodeValidationInvalidLat, http.StatusBadRequest},
		{"validation longitude -> 400", types.ErrCodeValidationInvalidLon, http.StatusBadRequest},
		{"validation zone -> 400", types.ErrCodeValidationInvalidZone, http.StatusBadRequest},
		{"validation missing_field -> 400", types.ErrCodeValidationMissingField, http.StatusBadRequest},
		{"validation duplicate_id -> 400", types.ErrCodeValidationDuplicateID, http.StatusBadRequest},
		{"validation invalid_value -> 400", types.ErrCodeValidationInvalidValue, http.StatusBadRequest},
		{"auth token missing -> 401", types.ErrCodeAuthTokenMissing, http.StatusUnauthorized},
		{"auth token invalid -> 401", types.ErrCodeAuthTokenInvalid, http.StatusUnauthorized},
		{"permission foreground -> 403", types.ErrCodePermissionForeground, http.StatusForbidden},
		{"permission background -> 403", types.ErrCodePermissionBackground, http.StatusForbidden},
		{"permission notifications -> 403", types.ErrCodePermissionNotifications, http.StatusForbidden},
		{"not found zone -> 404", types.ErrCodeNotFoundZone, http.StatusNotFound},
		{"unknown zone identifier -> 404", types.ErrCodeUnknownZone, http.StatusNotFound},
		{"conflict session active -> 409", types.ErrCodeConflictSessionActive, http.StatusConflict},
		{"conflict session stopped -> 409", types.ErrCodeConflictSessionStopped, http.StatusConflict},
		{"conflict session busy -> 409", types.ErrCodeConflictSessionBusy, http.StatusConflict},
		{"positioning unavailable -> 503", types.ErrCodePositioningUnavailable, http.StatusServiceUnavailable},
		{"persistence failure -> 500", types.ErrCodePersistenceFailure, http.StatusInternalServerError},
		{"internal db -> 500", types.ErrCodeInternalDB, http.StatusInternalServerError},
		{"internal unexpected -> 500", types.ErrCodeInternalUnexpected, http.StatusInternalServerError},
		{"upstream broker -> 502", types.ErrCodeUpstreamBroker, http.StatusBadGateway},
		{"upstream push gateway -> 502", types.ErrCodeUpstreamPushGateway, http.StatusBadGateway},
		{"upstream rate limited -> 429", types.ErrCodeUpstreamRateLimited, http.StatusTooManyRequests},
		{"upstream unavailable -> 502", types.ErrCodeUpstreamUnavailable, http.StatusBadGateway},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)

			appErr := types.NewAppError(tc.code, "test", nil)
			Error(w, r, appErr)

			resp := w.Result()
			if resp.StatusCode != tc.expectedStatus {
				t.Errorf("code %s: expected status %d, got %d", tc.code, tc.expectedStatus, resp.StatusCode)
			}
		})
	}
}
