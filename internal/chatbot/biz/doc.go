// Package biz implements the tutoring pipeline: document ingestion,
// vector retrieval, context assembly and conversation orchestration.
package biz
