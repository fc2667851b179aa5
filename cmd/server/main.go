package main

import (
	_ "github.com/eleven-am/voice-bridge/docs"
	"github.com/eleven-am/voice-bridge/internal/bootstrap"
)

// @title Voice Bridge API
// @version 1.0.0
// @description VoiceAI Connect to OpenAI Realtime audio bridge

// @BasePath /

func main() {
	bootstrap.Run()
}
