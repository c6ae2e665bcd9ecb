// Package services contains the core business logic implementations.
// Services implement the driving port interfaces and depend only on
// driven port interfaces, never on concrete adapters.
//
// RetrieverService answers queries with hybrid (semantic + lexical)
// retrieval, IndexerService runs the ingestion pipeline, and
// AssistantService assembles retrieved context into generated answers.
package services
