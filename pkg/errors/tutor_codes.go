package errors

import "google.golang.org/grpc/codes"

// Tutor service code: 20 (business service range 20-79)
// Error code format: AABBCCC
// - AA: 20 (tutor chat service)
// - BB: category code
// - CCC: sequence number

var (
	// Request errors (category 01)
	ErrEmptyMessage      = Register(New(MakeCode(ServiceTutor, CategoryRequest, 1), 400, codes.InvalidArgument, "Message is empty", "메시지가 비어 있습니다"))
	ErrInvalidHistory    = Register(New(MakeCode(ServiceTutor, CategoryRequest, 2), 400, codes.InvalidArgument, "Invalid conversation history", "대화 기록이 유효하지 않습니다"))
	ErrUnsupportedKind   = Register(New(MakeCode(ServiceTutor, CategoryRequest, 3), 400, codes.InvalidArgument, "Unsupported document kind", "지원하지 않는 문서 형식입니다"))
	ErrEmptyDocument     = Register(New(MakeCode(ServiceTutor, CategoryRequest, 4), 400, codes.InvalidArgument, "Document has no extractable text", "문서에서 추출할 텍스트가 없습니다"))
	ErrDimensionMismatch = Register(New(MakeCode(ServiceTutor, CategoryRequest, 5), 400, codes.InvalidArgument, "Embedding dimension mismatch", "임베딩 차원이 일치하지 않습니다"))

	// Extraction errors (category 07 - Internal)
	ErrExtraction = Register(New(MakeCode(ServiceTutor, CategoryInternal, 1), 422, codes.Internal, "Document extraction failed", "문서 추출에 실패했습니다"))

	// Store errors
	ErrDuplicateID = Register(New(MakeCode(ServiceTutor, CategoryConflict, 1), 409, codes.AlreadyExists, "Document id already exists", "이미 존재하는 문서 ID입니다"))
	ErrIngestion   = Register(New(MakeCode(ServiceTutor, CategoryInternal, 2), 500, codes.Internal, "Document ingestion failed", "문서 저장에 실패했습니다"))
	ErrStoreQuery  = Register(New(MakeCode(ServiceTutor, CategoryInternal, 3), 500, codes.Internal, "Vector store query failed", "벡터 검색에 실패했습니다"))
	ErrStoreClear  = Register(New(MakeCode(ServiceTutor, CategoryInternal, 4), 500, codes.Internal, "Vector store clear failed", "문서 초기화에 실패했습니다"))

	// Upstream LLM errors (category 10 - Network)
	ErrDispatch         = Register(New(MakeCode(ServiceTutor, CategoryNetwork, 1), 502, codes.Unavailable, "Model dispatch failed", "모델 호출에 실패했습니다"))
	ErrEmbedding        = Register(New(MakeCode(ServiceTutor, CategoryNetwork, 2), 502, codes.Unavailable, "Embedding request failed", "임베딩 요청에 실패했습니다"))
	ErrModelUnavailable = Register(New(MakeCode(ServiceTutor, CategoryNetwork, 3), 503, codes.Unavailable, "Model service unavailable", "모델 서비스를 사용할 수 없습니다"))

	// Timeout errors (category 11)
	ErrChatTimeout = Register(New(MakeCode(ServiceTutor, CategoryTimeout, 1), 504, codes.DeadlineExceeded, "Chat request timed out", "응답 생성 시간이 초과되었습니다"))
)
