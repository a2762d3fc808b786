// Package main is the entry point for the elementary tutoring chatbot.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kenneth-kang/elementary-chatbot/cmd/chatbot/app"
)

func main() {
	app.NewApp().Run()
}
