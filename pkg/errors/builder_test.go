package errors

import (
	"net/http"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
)

func TestRegisterService(t *testing.T) {
	// Register a new service
	RegisterService(99, "test-service")

	// Get service name
	name, ok := GetServiceName(99)
	if !ok {
		t.Error("GetServiceName should find registered service")
	}
	if name != "test-service" {
		t.Errorf("GetServiceName() = %q, want %q", name, "test-service")
	}

	// Register same code with same name should not panic
	RegisterService(99, "test-service")

	// Register same code with different name should panic
	defer func() {
		if r := recover(); r == nil {
			t.Error("RegisterService should panic on conflict")
		}
	}()
	RegisterService(99, "different-service")
}

func TestGetAllServices(t *testing.T) {
	RegisterService(98, "another-test-service")

	all := GetAllServices()
	if _, ok := all[98]; !ok {
		t.Error("GetAllServices should include registered service")
	}

	// Verify it's a copy
	all[97] = "modified"
	if _, ok := GetServiceName(97); ok {
		t.Error("GetAllServices should return a copy")
	}
}

func TestNewBuilder(t *testing.T) {
	// Use a unique service code to avoid conflicts
	const testService = 80

	builder := NewBuilder(testService, CategoryRequest, 100)
	if builder.service != testService {
		t.Errorf("service = %d, want %d", builder.service, testService)
	}
	if builder.category != CategoryRequest {
		t.Errorf("category = %d, want %d", builder.category, CategoryRequest)
	}
	if builder.sequence != 100 {
		t.Errorf("sequence = %d, want %d", builder.sequence, 100)
	}
}

func TestErrnoBuilderHTTP(t *testing.T) {
	builder := NewBuilder(80, CategoryRequest, 101).
		HTTP(http.StatusTeapot)

	if builder.http != http.StatusTeapot {
		t.Errorf("http = %d, want %d", builder.http, http.StatusTeapot)
	}
}

func TestErrnoBuilderGRPC(t *testing.T) {
	builder := NewBuilder(80, CategoryRequest, 102).
		GRPC(codes.Aborted)

	if builder.grpc != codes.Aborted {
		t.Errorf("grpc = %v, want %v", builder.grpc, codes.Aborted)
	}
}

func TestErrnoBuilderMessage(t *testing.T) {
	builder := NewBuilder(80, CategoryRequest, 103).
		Message("English", "한국어")

	if builder.messageEN != "English" {
		t.Errorf("messageEN = %q, want %q", builder.messageEN, "English")
	}
	if builder.messageKO != "한국어" {
		t.Errorf("messageKO = %q, want %q", builder.messageKO, "한국어")
	}
}

func TestErrnoBuilderMessageEN(t *testing.T) {
	builder := NewBuilder(80, CategoryRequest, 104).
		MessageEN("Only English")

	if builder.messageEN != "Only English" {
		t.Errorf("messageEN = %q, want %q", builder.messageEN, "Only English")
	}
}

func TestErrnoBuilderMessageKO(t *testing.T) {
	builder := NewBuilder(80, CategoryRequest, 105).
		MessageEN("English").
		MessageKO("한국어만")

	if builder.messageKO != "한국어만" {
		t.Errorf("messageKO = %q, want %q", builder.messageKO, "한국어만")
	}
}

func TestErrnoBuilderBuild(t *testing.T) {
	errno, err := NewBuilder(80, CategoryRequest, 106).
		HTTP(http.StatusBadRequest).
		GRPC(codes.InvalidArgument).
		Message("Test error", "테스트 오류").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	expectedCode := MakeCode(80, CategoryRequest, 106)
	if errno.Code != expectedCode {
		t.Errorf("Code = %d, want %d", errno.Code, expectedCode)
	}
	if errno.HTTP != http.StatusBadRequest {
		t.Errorf("HTTP = %d, want %d", errno.HTTP, http.StatusBadRequest)
	}
	if errno.GRPCCode != codes.InvalidArgument {
		t.Errorf("GRPCCode = %v, want %v", errno.GRPCCode, codes.InvalidArgument)
	}
	if errno.MessageEN != "Test error" {
		t.Errorf("MessageEN = %q, want %q", errno.MessageEN, "Test error")
	}
	if errno.MessageKO != "테스트 오류" {
		t.Errorf("MessageKO = %q, want %q", errno.MessageKO, "테스트 오류")
	}

	// Verify it's registered
	if e, ok := Lookup(expectedCode); !ok || e != errno {
		t.Error("Build should register the errno")
	}
}

func TestErrnoBuilderBuildWithoutMessage(t *testing.T) {
	_, err := NewBuilder(80, CategoryRequest, 107).Build()

	if err == nil {
		t.Error("Build() should return error when messageEN is empty")
	}
}

func TestErrnoBuilderBuildDuplicate(t *testing.T) {
	// First build should succeed
	_, err := NewBuilder(80, CategoryRequest, 108).
		Message("First", "첫 번째").
		Build()
	if err != nil {
		t.Fatalf("First Build() error = %v", err)
	}

	// Second build with same code should fail
	_, err = NewBuilder(80, CategoryRequest, 108).
		Message("Second", "두 번째").
		Build()
	if err == nil {
		t.Error("Build() should return error for duplicate code")
	}
}

func TestErrnoBuilderMustBuild(t *testing.T) {
	errno := NewBuilder(80, CategoryRequest, 109).
		Message("Must build test", "빌드 테스트").
		MustBuild()

	if errno == nil {
		t.Error("MustBuild() should return errno")
	}
}

func TestErrnoBuilderMustBuildPanic(t *testing.T) {
	// First registration
	_ = NewBuilder(80, CategoryRequest, 110).
		Message("First", "첫 번째").
		MustBuild()

	// Second should panic
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustBuild should panic on duplicate")
		}
	}()

	_ = NewBuilder(80, CategoryRequest, 110).
		Message("Second", "두 번째").
		MustBuild()
}

func TestNewRequestError(t *testing.T) {
	errno := NewRequestError(80, 111).
		Message("Request error", "요청 오류").
		MustBuild()

	if errno.HTTP != http.StatusBadRequest {
		t.Errorf("HTTP = %d, want %d", errno.HTTP, http.StatusBadRequest)
	}
	if errno.GRPCCode != codes.InvalidArgument {
		t.Errorf("GRPCCode = %v, want %v", errno.GRPCCode, codes.InvalidArgument)
	}
}

func TestNewNotFoundError(t *testing.T) {
	errno := NewNotFoundError(80, 112).
		Message("Not found error", "찾을 수 없음").
		MustBuild()

	if errno.HTTP != http.StatusNotFound {
		t.Errorf("HTTP = %d, want %d", errno.HTTP, http.StatusNotFound)
	}
	if errno.GRPCCode != codes.NotFound {
		t.Errorf("GRPCCode = %v, want %v", errno.GRPCCode, codes.NotFound)
	}
}

func TestNewConflictError(t *testing.T) {
	errno := NewConflictError(80, 113).
		Message("Conflict error", "충돌 오류").
		MustBuild()

	if errno.HTTP != http.StatusConflict {
		t.Errorf("HTTP = %d, want %d", errno.HTTP, http.StatusConflict)
	}
	if errno.GRPCCode != codes.AlreadyExists {
		t.Errorf("GRPCCode = %v, want %v", errno.GRPCCode, codes.AlreadyExists)
	}
}

func TestNewInternalError(t *testing.T) {
	errno := NewInternalError(80, 114).
		Message("Internal error", "내부 오류").
		MustBuild()

	if errno.HTTP != http.StatusInternalServerError {
		t.Errorf("HTTP = %d, want %d", errno.HTTP, http.StatusInternalServerError)
	}
	if errno.GRPCCode != codes.Internal {
		t.Errorf("GRPCCode = %v, want %v", errno.GRPCCode, codes.Internal)
	}
}

func TestNewNetworkError(t *testing.T) {
	errno := NewNetworkError(80, 115).
		Message("Network error", "네트워크 오류").
		MustBuild()

	if errno.HTTP != http.StatusServiceUnavailable {
		t.Errorf("HTTP = %d, want %d", errno.HTTP, http.StatusServiceUnavailable)
	}
	if errno.GRPCCode != codes.Unavailable {
		t.Errorf("GRPCCode = %v, want %v", errno.GRPCCode, codes.Unavailable)
	}
}

func TestNewTimeoutError(t *testing.T) {
	errno := NewTimeoutError(80, 116).
		Message("Timeout error", "시간 초과 오류").
		MustBuild()

	if errno.HTTP != http.StatusGatewayTimeout {
		t.Errorf("HTTP = %d, want %d", errno.HTTP, http.StatusGatewayTimeout)
	}
	if errno.GRPCCode != codes.DeadlineExceeded {
		t.Errorf("GRPCCode = %v, want %v", errno.GRPCCode, codes.DeadlineExceeded)
	}
}

// TestNewBuilderBoundaryValidation tests the boundary validation for service, category, and sequence.
func TestNewBuilderBoundaryValidation(t *testing.T) {
	tests := []struct {
		name      string
		service   int
		category  int
		sequence  int
		wantPanic bool
		panicMsg  string
	}{
		{
			name:      "valid_min_values",
			service:   0,
			category:  0,
			sequence:  0,
			wantPanic: false,
		},
		{
			name:      "valid_max_values",
			service:   99,
			category:  99,
			sequence:  999,
			wantPanic: false,
		},
		{
			name:      "service_too_small",
			service:   -1,
			category:  0,
			sequence:  0,
			wantPanic: true,
			panicMsg:  "service code must be 0-99",
		},
		{
			name:      "service_too_large",
			service:   100,
			category:  0,
			sequence:  0,
			wantPanic: true,
			panicMsg:  "service code must be 0-99",
		},
		{
			name:      "category_too_small",
			service:   0,
			category:  -1,
			sequence:  0,
			wantPanic: true,
			panicMsg:  "category code must be 0-99",
		},
		{
			name:      "category_too_large",
			service:   0,
			category:  100,
			sequence:  0,
			wantPanic: true,
			panicMsg:  "category code must be 0-99",
		},
		{
			name:      "sequence_too_small",
			service:   0,
			category:  0,
			sequence:  -1,
			wantPanic: true,
			panicMsg:  "sequence must be 0-999",
		},
		{
			name:      "sequence_too_large",
			service:   0,
			category:  0,
			sequence:  1000,
			wantPanic: true,
			panicMsg:  "sequence must be 0-999",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if tt.wantPanic {
					if r == nil {
						t.Errorf("NewBuilder() should panic for %s", tt.name)
					}
					// Verify panic message contains expected text
					if msg, ok := r.(string); ok {
						if !strings.Contains(msg, tt.panicMsg) {
							t.Errorf("Panic message = %q, want to contain %q", msg, tt.panicMsg)
						}
					}
				} else {
					if r != nil {
						t.Errorf("NewBuilder() should not panic for %s, got: %v", tt.name, r)
					}
				}
			}()

			_ = NewBuilder(tt.service, tt.category, tt.sequence)
		})
	}
}
