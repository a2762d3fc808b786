// Package app provides the chatbot server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kenneth-kang/elementary-chatbot/cmd/chatbot/app/options"
	"github.com/kenneth-kang/elementary-chatbot/internal/chatbot"
	"github.com/kenneth-kang/elementary-chatbot/pkg/app"
)

const (
	// commandDesc is the description of the command.
	commandDesc = `Elementary Tutoring Chatbot

A retrieval-augmented chat backend for a Korean elementary-school
tutoring assistant.

This server provides:
  - Learning material ingestion (txt, pdf, docx) with vector embeddings
  - Semantic similarity search over ingested materials
  - RAG-augmented tutoring conversations, whole or streamed`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	application := app.NewApp(
		app.WithName(chatbot.Name),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)

	return application
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or
// SIGTERM. A second signal forces an immediate exit.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
