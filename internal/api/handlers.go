package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/haasonsaas/webpilot/internal/config"
	"github.com/haasonsaas/webpilot/internal/errdefs"
	"github.com/haasonsaas/webpilot/internal/ingest"
	"github.com/haasonsaas/webpilot/pkg/models"
)

const serviceName = "webpilot"

type generatePromptRequest struct {
	TestID           string `json:"test_id"`
	ShortDescription string `json:"short_description"`
	Module           string `json:"module"`
	Functionality    string `json:"functionality"`
	Priority         string `json:"priority"`
}

type switchProviderRequest struct {
	Provider string `json:"provider"`
}

type providerStatus struct {
	Available bool   `json:"available"`
	Model     string `json:"model"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": serviceName,
		"message": "automation orchestration API",
		"version": s.version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   serviceName,
		"provider":  s.providerName(),
		"model":     s.currentInvoker().Model(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleConfig reports the active configuration with secrets omitted.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	driver := s.cfg.Storage.Driver
	if driver == "" {
		driver = "memory"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"provider":    s.providerName(),
		"model":       s.currentInvoker().Model(),
		"temperature": s.cfg.LLM.Temperature,
		"max_tokens":  s.cfg.LLM.MaxTokens,
		"browser": map[string]any{
			"engine":         s.cfg.Browser.Engine,
			"headless":       s.cfg.Browser.Headless,
			"max_iterations": s.cfg.Browser.MaxIterations,
			"screenshot_dir": s.cfg.Browser.ScreenshotDir,
		},
		"storage": map[string]any{"driver": driver},
		"prompts": map[string]any{
			"template_dir": s.cfg.Prompts.TemplateDir,
			"strict":       s.cfg.Prompts.Strict,
		},
		"logging": map[string]any{
			"level":  s.cfg.Logging.Level,
			"format": s.cfg.Logging.Format,
		},
	})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	gateway := s.cfg.LLM.Gateway
	writeJSON(w, http.StatusOK, map[string]any{
		"current_provider": s.providerName(),
		"providers": map[string]providerStatus{
			config.ProviderGateway: {
				Available: gateway.APIKey != "" && gateway.BaseURL != "",
				Model:     gateway.Model,
			},
			config.ProviderOpenAI: {
				Available: s.cfg.LLM.OpenAI.APIKey != "",
				Model:     s.cfg.LLM.OpenAI.Model,
			},
			config.ProviderAnthropic: {
				Available: s.cfg.LLM.Anthropic.APIKey != "",
				Model:     s.cfg.LLM.Anthropic.Model,
			},
		},
	})
}

func (s *Server) handleSwitchProvider(w http.ResponseWriter, r *http.Request) {
	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	if err := validateBody(schemaSwitchProvider, raw); err != nil {
		writeError(w, err)
		return
	}
	var req switchProviderRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, errdefs.Validation("request body is not valid JSON"))
		return
	}

	invoker, err := s.switchProvider(req.Provider)
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info(r.Context(), "provider switched", "provider", req.Provider, "model", invoker.Model())
	writeJSON(w, http.StatusOK, map[string]any{
		"message":          "provider changed to " + req.Provider,
		"current_provider": req.Provider,
		"model":            invoker.Model(),
	})
}

func (s *Server) handleGeneratePrompt(w http.ResponseWriter, r *http.Request) {
	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	if err := validateBody(schemaGeneratePrompt, raw); err != nil {
		writeError(w, err)
		return
	}
	var req generatePromptRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, errdefs.Validation("request body is not valid JSON"))
		return
	}

	steps, err := s.convert(r.Context(), models.TestCase{
		ID:            req.TestID,
		Description:   req.ShortDescription,
		Module:        req.Module,
		Functionality: req.Functionality,
		Priority:      req.Priority,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.TestCasePrompt{
		TestID:          req.TestID,
		GeneratedPrompt: steps,
		Status:          "generated",
	})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	if err := validateBody(schemaExecute, raw); err != nil {
		writeError(w, err)
		return
	}
	var tc models.TestCase
	if err := json.Unmarshal(raw, &tc); err != nil {
		writeError(w, errdefs.Validation("request body is not valid JSON"))
		return
	}

	record, err := s.execute(r.Context(), tc)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.SaveResult(r.Context(), record); err != nil {
		// Persistence problems never fail a finished run.
		s.logger.Warn(r.Context(), "failed to persist result", "test_id", record.TestID, "error", err)
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, errdefs.InvalidInput("file", "multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".xlsx") {
		writeError(w, errdefs.InvalidInput("file", "file must be an Excel workbook (.xlsx)"))
		return
	}

	sheet := r.FormValue("sheet")
	cases, err := ingest.ParseWorkbook(file, sheet)
	if err != nil {
		writeError(w, err)
		return
	}
	if sheet == "" {
		sheet = ingest.DefaultSheet
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"filename":         header.Filename,
		"sheet":            sheet,
		"total_test_cases": len(cases),
		"test_cases":       cases,
	})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	testID := r.PathValue("test_id")
	results, err := s.store.GetResults(r.Context(), testID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"test_id": testID,
		"total":   len(results),
		"results": results,
	})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"error": "request body too large"})
		} else {
			writeError(w, errdefs.Validation("cannot read request body"))
		}
		return nil, false
	}
	return raw, true
}
