package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"google.golang.org/genai"

	"github.com/sadopc/nutrilog/internal/analyze"
	"github.com/sadopc/nutrilog/internal/geo"
	"github.com/sadopc/nutrilog/internal/logging"
	"github.com/sadopc/nutrilog/internal/store"
	"github.com/sadopc/nutrilog/internal/tui"
)

func main() {
	verbose := flag.Bool("verbose", false, "enable debug logging")
	noGeo := flag.Bool("no-location", false, "disable location lookups")
	flag.Parse()

	logPath, err := logging.DefaultLogPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.Setup(logPath, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	dbPath, err := store.DefaultDBPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	s, err := store.New(dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	userID, err := s.UserID()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	var analyzer *analyze.Client
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error creating analysis client: %v\n", err)
			os.Exit(1)
		}
		model, _ := s.GetSetting("analysis_model")
		analyzer = analyze.New(client, model, logger)
	} else {
		logger.Warn("GEMINI_API_KEY not set, meal analysis disabled")
	}

	var locator geo.Provider
	if !*noGeo {
		locator = &geo.IPLocator{}
	}

	app, err := tui.NewApp(s, analyzer, locator, userID, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
