package response

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestSuccess_JSONFormat(t *testing.T) {
	resp := Success(map[string]string{"id": "123"})

	jsonBytes, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to marshal response: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &parsed); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if parsed["success"] != true {
		t.Errorf("Expected success=true, got %v", parsed["success"])
	}
	if _, ok := parsed["error"]; ok {
		t.Error("Expected error field to be omitted")
	}
	if _, ok := parsed["meta"]; ok {
		t.Error("Expected meta field to be omitted")
	}
}

func TestError(t *testing.T) {
	resp := Error(ErrCodeDuplicateEmail, "Email already exists")

	if resp.Success {
		t.Error("Expected success to be false")
	}
	if resp.Data != nil {
		t.Error("Expected data to be nil")
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeDuplicateEmail {
		t.Fatalf("Expected error code %s, got %+v", ErrCodeDuplicateEmail, resp.Error)
	}
	if resp.Error.Message != "Email already exists" {
		t.Errorf("Unexpected message %q", resp.Error.Message)
	}
}

func TestFlat_JSONFormat(t *testing.T) {
	jsonBytes, err := json.Marshal(Flat("Invalid or expired token"))
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if string(jsonBytes) != `{"error":"Invalid or expired token"}` {
		t.Errorf("Unexpected body %s", jsonBytes)
	}
}

func TestPaginated_TotalPagesCalculation(t *testing.T) {
	tests := []struct {
		total    int64
		perPage  int
		expected int
	}{
		{0, 10, 0},
		{10, 10, 1},
		{11, 10, 2},
		{25, 0, 2},
	}

	for _, tt := range tests {
		resp := Paginated(nil, PaginationParams{Page: 1, PerPage: tt.perPage}, tt.total)
		if resp.Meta.TotalPages != tt.expected {
			t.Errorf("total=%d perPage=%d: expected %d pages, got %d", tt.total, tt.perPage, tt.expected, resp.Meta.TotalPages)
		}
	}
}

func TestPaginationParams_Offset(t *testing.T) {
	if got := (PaginationParams{Page: 3, PerPage: 20}).Offset(); got != 40 {
		t.Errorf("Offset() = %d, want 40", got)
	}
	if got := (PaginationParams{Page: 0, PerPage: 20}).Offset(); got != 0 {
		t.Errorf("Offset() = %d, want 0", got)
	}
}

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInvalidCredentials, http.StatusUnauthorized},
		{ErrCodeAccountInactive, http.StatusForbidden},
		{ErrCodeDuplicateEmail, http.StatusConflict},
		{ErrCodeSuperAdminExists, http.StatusConflict},
		{ErrCodeTenantNotFound, http.StatusNotFound},
		{ErrCodeInvalidRoleForFlow, http.StatusBadRequest},
		{ErrCodeGatewayTimeout, http.StatusGatewayTimeout},
		{"UNKNOWN", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := GetHTTPStatus(tt.code); got != tt.expected {
			t.Errorf("GetHTTPStatus(%s) = %d, want %d", tt.code, got, tt.expected)
		}
	}
}

func TestValidationFailed(t *testing.T) {
	resp := ValidationFailed(map[string]string{"email": "required"})
	if resp.Error.Code != ErrCodeValidationFailed {
		t.Errorf("Expected %s, got %s", ErrCodeValidationFailed, resp.Error.Code)
	}
	if resp.Error.Details["email"] != "required" {
		t.Error("Expected email detail")
	}
}
