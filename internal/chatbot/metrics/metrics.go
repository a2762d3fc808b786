// Package metrics collects business metrics for the tutoring service.
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ChatMetrics tracks chat, retrieval and ingestion activity.
type ChatMetrics struct {
	chatTotal      uint64
	chatErrors     uint64
	chatWithRAG    uint64
	streamsTotal   uint64
	streamsCancels uint64

	retrievalTotal    uint64
	retrievalErrors   uint64
	retrievalDuration float64

	llmCallsTotal    uint64
	llmCallsErrors   uint64
	llmCallsDuration float64
	tokensPrompt     uint64
	tokensCompletion uint64

	documentsIngested uint64
	unitsIngested     uint64
	ingestErrors      uint64

	startTime  time.Time
	durationMu sync.Mutex
}

var (
	globalChatMetrics *ChatMetrics
	chatMetricsOnce   sync.Once
)

// GetChatMetrics returns the process-wide metrics instance.
func GetChatMetrics() *ChatMetrics {
	chatMetricsOnce.Do(func() {
		globalChatMetrics = &ChatMetrics{
			startTime: time.Now(),
		}
	})
	return globalChatMetrics
}

// RecordChat records one chat request and whether retrieval augmented it.
func (m *ChatMetrics) RecordChat(ragUsed bool, err error) {
	atomic.AddUint64(&m.chatTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.chatErrors, 1)
		return
	}
	if ragUsed {
		atomic.AddUint64(&m.chatWithRAG, 1)
	}
}

// RecordStream records one streamed chat. cancelled marks consumer
// disconnects before the terminal event.
func (m *ChatMetrics) RecordStream(cancelled bool) {
	atomic.AddUint64(&m.streamsTotal, 1)
	if cancelled {
		atomic.AddUint64(&m.streamsCancels, 1)
	}
}

// RecordRetrieval records one vector search.
func (m *ChatMetrics) RecordRetrieval(duration time.Duration, err error) {
	atomic.AddUint64(&m.retrievalTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.retrievalErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.retrievalDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordLLMCall records one model dispatch with its token usage.
func (m *ChatMetrics) RecordLLMCall(duration time.Duration, promptTokens, completionTokens int, err error) {
	atomic.AddUint64(&m.llmCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.llmCallsErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.llmCallsDuration += duration.Seconds()
	m.durationMu.Unlock()

	if promptTokens > 0 {
		atomic.AddUint64(&m.tokensPrompt, uint64(promptTokens))
	}
	if completionTokens > 0 {
		atomic.AddUint64(&m.tokensCompletion, uint64(completionTokens))
	}
}

// RecordIngest records one ingestion and the units it produced.
func (m *ChatMetrics) RecordIngest(units int, err error) {
	if err != nil {
		atomic.AddUint64(&m.ingestErrors, 1)
		return
	}
	atomic.AddUint64(&m.documentsIngested, 1)
	atomic.AddUint64(&m.unitsIngested, uint64(units))
}

// Export renders the metrics in Prometheus text format.
func (m *ChatMetrics) Export(namespace, subsystem string) string {
	var sb strings.Builder
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	counter := func(name, help string, value uint64) {
		sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
		sb.WriteString(fmt.Sprintf("# TYPE %s_%s counter\n", prefix, name))
		sb.WriteString(fmt.Sprintf("%s_%s %d\n\n", prefix, name, value))
	}

	counter("chat_total", "Total number of chat requests.", atomic.LoadUint64(&m.chatTotal))
	counter("chat_errors_total", "Number of failed chat requests.", atomic.LoadUint64(&m.chatErrors))
	counter("chat_rag_total", "Chat requests augmented with retrieved context.", atomic.LoadUint64(&m.chatWithRAG))
	counter("streams_total", "Total number of streamed chat requests.", atomic.LoadUint64(&m.streamsTotal))
	counter("streams_cancelled_total", "Streams cancelled by the consumer.", atomic.LoadUint64(&m.streamsCancels))
	counter("retrieval_total", "Total number of vector searches.", atomic.LoadUint64(&m.retrievalTotal))
	counter("retrieval_errors_total", "Number of failed vector searches.", atomic.LoadUint64(&m.retrievalErrors))
	counter("llm_calls_total", "Total number of model dispatches.", atomic.LoadUint64(&m.llmCallsTotal))
	counter("llm_calls_errors_total", "Number of failed model dispatches.", atomic.LoadUint64(&m.llmCallsErrors))
	counter("llm_tokens_prompt_total", "Total prompt tokens.", atomic.LoadUint64(&m.tokensPrompt))
	counter("llm_tokens_completion_total", "Total completion tokens.", atomic.LoadUint64(&m.tokensCompletion))
	counter("documents_ingested_total", "Documents ingested.", atomic.LoadUint64(&m.documentsIngested))
	counter("units_ingested_total", "Text units ingested.", atomic.LoadUint64(&m.unitsIngested))
	counter("ingest_errors_total", "Number of failed ingestions.", atomic.LoadUint64(&m.ingestErrors))

	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	llmDuration := m.llmCallsDuration
	m.durationMu.Unlock()

	sb.WriteString(fmt.Sprintf("# HELP %s_retrieval_duration_seconds_total Total retrieval duration.\n", prefix))
	sb.WriteString(fmt.Sprintf("# TYPE %s_retrieval_duration_seconds_total counter\n", prefix))
	sb.WriteString(fmt.Sprintf("%s_retrieval_duration_seconds_total %.6f\n\n", prefix, retrievalDuration))

	sb.WriteString(fmt.Sprintf("# HELP %s_llm_calls_duration_seconds_total Total model dispatch duration.\n", prefix))
	sb.WriteString(fmt.Sprintf("# TYPE %s_llm_calls_duration_seconds_total counter\n", prefix))
	sb.WriteString(fmt.Sprintf("%s_llm_calls_duration_seconds_total %.6f\n\n", prefix, llmDuration))

	uptime := time.Since(m.startTime).Seconds()
	sb.WriteString(fmt.Sprintf("# HELP %s_uptime_seconds Service uptime in seconds.\n", prefix))
	sb.WriteString(fmt.Sprintf("# TYPE %s_uptime_seconds gauge\n", prefix))
	sb.WriteString(fmt.Sprintf("%s_uptime_seconds %.2f\n", prefix, uptime))

	return sb.String()
}

// Stats returns the current values for the API.
func (m *ChatMetrics) Stats() map[string]interface{} {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	llmDuration := m.llmCallsDuration
	m.durationMu.Unlock()

	// Durations accumulate on success only, so errored calls are
	// excluded from the averages.
	retrievalTotal := atomic.LoadUint64(&m.retrievalTotal)
	retrievalErrors := atomic.LoadUint64(&m.retrievalErrors)
	avgRetrieval := 0.0
	if retrievalTotal > retrievalErrors {
		avgRetrieval = retrievalDuration / float64(retrievalTotal-retrievalErrors)
	}

	llmTotal := atomic.LoadUint64(&m.llmCallsTotal)
	llmErrors := atomic.LoadUint64(&m.llmCallsErrors)
	avgLLM := 0.0
	if llmTotal > llmErrors {
		avgLLM = llmDuration / float64(llmTotal-llmErrors)
	}

	return map[string]interface{}{
		"chat": map[string]interface{}{
			"total":             atomic.LoadUint64(&m.chatTotal),
			"errors":            atomic.LoadUint64(&m.chatErrors),
			"rag_augmented":     atomic.LoadUint64(&m.chatWithRAG),
			"streams":           atomic.LoadUint64(&m.streamsTotal),
			"streams_cancelled": atomic.LoadUint64(&m.streamsCancels),
		},
		"retrieval": map[string]interface{}{
			"total":             retrievalTotal,
			"errors":            retrievalErrors,
			"avg_duration_secs": avgRetrieval,
		},
		"llm": map[string]interface{}{
			"calls_total":       llmTotal,
			"errors":            llmErrors,
			"avg_duration_secs": avgLLM,
			"tokens_prompt":     atomic.LoadUint64(&m.tokensPrompt),
			"tokens_completion": atomic.LoadUint64(&m.tokensCompletion),
		},
		"ingestion": map[string]interface{}{
			"documents": atomic.LoadUint64(&m.documentsIngested),
			"units":     atomic.LoadUint64(&m.unitsIngested),
			"errors":    atomic.LoadUint64(&m.ingestErrors),
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}

// Reset zeroes all metrics. Test helper only.
func (m *ChatMetrics) Reset() {
	atomic.StoreUint64(&m.chatTotal, 0)
	atomic.StoreUint64(&m.chatErrors, 0)
	atomic.StoreUint64(&m.chatWithRAG, 0)
	atomic.StoreUint64(&m.streamsTotal, 0)
	atomic.StoreUint64(&m.streamsCancels, 0)
	atomic.StoreUint64(&m.retrievalTotal, 0)
	atomic.StoreUint64(&m.retrievalErrors, 0)
	atomic.StoreUint64(&m.llmCallsTotal, 0)
	atomic.StoreUint64(&m.llmCallsErrors, 0)
	atomic.StoreUint64(&m.tokensPrompt, 0)
	atomic.StoreUint64(&m.tokensCompletion, 0)
	atomic.StoreUint64(&m.documentsIngested, 0)
	atomic.StoreUint64(&m.unitsIngested, 0)
	atomic.StoreUint64(&m.ingestErrors, 0)

	m.durationMu.Lock()
	m.retrievalDuration = 0
	m.llmCallsDuration = 0
	m.startTime = time.Now()
	m.durationMu.Unlock()
}
