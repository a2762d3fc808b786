// Package tutor provides tutoring pipeline configuration options.
package tutor

import (
	"fmt"

	"github.com/kenneth-kang/elementary-chatbot/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Options contains retrieval and conversation pipeline configuration.
type Options struct {
	// StoreBackend selects the vector store backend: memory or milvus.
	StoreBackend string `json:"store-backend" mapstructure:"store-backend"`

	// TopK is the number of results to return from similarity search.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// Collection is the name of the Milvus collection.
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// HistoryWindow is the number of prior conversation turns sent to the model.
	HistoryWindow int `json:"history-window" mapstructure:"history-window"`

	// UploadDir is the directory for storing uploaded documents.
	UploadDir string `json:"upload-dir" mapstructure:"upload-dir"`

	// UsageLogPath is the JSONL file recording per-request token usage.
	// Empty disables usage logging.
	UsageLogPath string `json:"usage-log-path" mapstructure:"usage-log-path"`

	// SeedMaterials loads the built-in starter materials on startup when
	// the collection is empty.
	SeedMaterials bool `json:"seed-materials" mapstructure:"seed-materials"`

	// SystemPrompt is the system prompt prepended to every conversation.
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`
}

// DefaultSystemPrompt is the tutoring persona sent as the system message.
const DefaultSystemPrompt = `너는 초등학생들을 위한 친절한 한국어 선생님 AI야.

역할:
1. 초등학생 수준에 맞게 쉽고 재미있게 설명해줘
2. 항상 긍정적이고 격려하는 말투를 사용해
3. 어려운 단어는 쉬운 말로 풀어서 설명해줘
4. 친구처럼 친근하게, 하지만 존중하는 태도로 대화해
5. 이전 대화 내용을 기억하고 자연스럽게 이어서 대화해

지원 영역:
- 학습: 수학, 국어, 과학, 영어 등
- 인성: 친구 관계, 감정 표현, 예절, 자신감
- 고민 상담: 학교생활, 가족 관계

규칙:
- 항상 한국어로 자연스럽게 답변하며, 한국어 맞춤법과 문법을 정확하게 사용해야되.
- 전문적인 내용이라도 한국인이 이해하기 쉽게 설명해줘.
- 영어 단어는 필요한 경우에만 사용하고, 가능한 한국어로 설명해줘.
- 폭력적, 부적절한 내용은 다루지 않아
- 숙제 답을 직접 주지 않고, 힌트와 방법을 알려줘
- 항상 긍정적인 방향으로 유도해
- 참고자료가 제공되면, 그 내용을 기반으로 정확하게 설명해`

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		StoreBackend:  "memory",
		TopK:          3,
		Collection:    "elementary_materials",
		EmbeddingDim:  1024,
		HistoryWindow: 10,
		UploadDir:     "_output/uploads",
		UsageLogPath:  "_output/token_usage.jsonl",
		SeedMaterials: true,
		SystemPrompt:  DefaultSystemPrompt,
	}
}

// AddFlags adds flags for tutoring options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.StoreBackend, options.Join(prefixes...)+"tutor.store-backend", o.StoreBackend, "Vector store backend (memory, milvus).")
	fs.IntVar(&o.TopK, options.Join(prefixes...)+"tutor.top-k", o.TopK, "Number of results from similarity search.")
	fs.StringVar(&o.Collection, options.Join(prefixes...)+"tutor.collection", o.Collection, "Milvus collection name.")
	fs.IntVar(&o.EmbeddingDim, options.Join(prefixes...)+"tutor.embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.IntVar(&o.HistoryWindow, options.Join(prefixes...)+"tutor.history-window", o.HistoryWindow, "Number of prior turns sent to the model.")
	fs.StringVar(&o.UploadDir, options.Join(prefixes...)+"tutor.upload-dir", o.UploadDir, "Directory for uploaded documents.")
	fs.StringVar(&o.UsageLogPath, options.Join(prefixes...)+"tutor.usage-log-path", o.UsageLogPath, "JSONL file for token usage records.")
	fs.BoolVar(&o.SeedMaterials, options.Join(prefixes...)+"tutor.seed-materials", o.SeedMaterials, "Seed starter materials when the collection is empty.")
}

// Validate validates the tutoring options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.StoreBackend != "memory" && o.StoreBackend != "milvus" {
		errs = append(errs, fmt.Errorf("store-backend must be memory or milvus"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top-k must be positive"))
	}
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("collection is required"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding-dim must be positive"))
	}
	if o.HistoryWindow < 0 {
		errs = append(errs, fmt.Errorf("history-window must not be negative"))
	}
	return errs
}

// Complete completes the tutoring options with defaults.
func (o *Options) Complete() error {
	if o.StoreBackend == "" {
		o.StoreBackend = "memory"
	}
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	return nil
}
