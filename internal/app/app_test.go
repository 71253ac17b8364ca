package app

import (
	"context"
	"testing"

	"github.com/impar-ai/docchat/internal/config"
	"github.com/impar-ai/docchat/internal/log"
)

func TestSetup_InvalidConfigFailsFast(t *testing.T) {
	_, err := Setup(context.Background(), &config.Config{}, log.NewNop())
	if err == nil {
		t.Fatal("expected validation error for empty config")
	}
}

func TestApp_CloseOnPartialApp(t *testing.T) {
	a := &App{Logger: log.NewNop()}
	if err := a.Close(); err != nil {
		t.Errorf("Close on partial app: %v", err)
	}
}

func TestApp_CloseOnZeroValue(t *testing.T) {
	var a App
	if err := a.Close(); err != nil {
		t.Errorf("Close on zero value: %v", err)
	}
}
