package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/edgard/botmeta/internal/errors"
	"github.com/edgard/botmeta/internal/languages"
	"github.com/edgard/botmeta/internal/metadata"
	"github.com/edgard/botmeta/internal/translate"
)

// NDJSONContentType is the media type of streamed probe responses.
const NDJSONContentType = "application/x-ndjson"

type tokenRequest struct {
	BotToken string `json:"bot_token" validate:"required,bot_token"`
}

type metadataRequest struct {
	BotToken     string `json:"bot_token"     validate:"required,bot_token"`
	LanguageCode string `json:"language_code" validate:"omitempty,language_code"`
}

type saveRequest struct {
	BotToken     string               `json:"bot_token"     validate:"required,bot_token"`
	LanguageCode string               `json:"language_code" validate:"omitempty,language_code"`
	Metadata     metadata.BotMetadata `json:"metadata"`
}

type deleteRequest struct {
	BotToken     string `json:"bot_token"     validate:"required,bot_token"`
	LanguageCode string `json:"language_code" validate:"required,language_code"`
}

type translateRequest struct {
	APIKey     string               `json:"api_key"`
	SourceLang string               `json:"source_lang" validate:"required,language_code"`
	TargetLang string               `json:"target_lang" validate:"required,language_code"`
	Metadata   metadata.BotMetadata `json:"metadata"`
}

type languageResponse struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"native_name"`
}

// bind decodes the JSON body into req and validates it. On failure the
// error response has already been written.
func (s *Server) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.fail(c, apperrors.NewValidationError("invalid JSON body", err))
		return false
	}
	if err := metadata.Validator().Struct(req); err != nil {
		s.fail(c, apperrors.NewValidationError(metadata.DescribeValidation(err), nil))
		return false
	}
	return true
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleLanguages(c *gin.Context) {
	out := make([]languageResponse, len(languages.All))
	for i, l := range languages.All {
		out[i] = languageResponse{Code: l.Code, Name: l.Name, NativeName: languages.NativeName(l.Code)}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "languages": out})
}

func (s *Server) handleValidate(c *gin.Context) {
	var req tokenRequest
	if !s.bind(c, &req) {
		return
	}

	bot, err := s.svc.ValidateCredential(c.Request.Context(), req.BotToken)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "bot": bot})
}

func (s *Server) handleMetadata(c *gin.Context) {
	var req metadataRequest
	if !s.bind(c, &req) {
		return
	}

	var (
		md  metadata.BotMetadata
		err error
	)
	if req.LanguageCode == "" {
		md, err = s.svc.FetchDefaultMetadata(c.Request.Context(), req.BotToken)
	} else {
		md, err = s.svc.FetchLocalizedMetadata(c.Request.Context(), req.BotToken, req.LanguageCode)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "metadata": md})
}

func (s *Server) handleSave(c *gin.Context) {
	var req saveRequest
	if !s.bind(c, &req) {
		return
	}

	outcomes := s.svc.SaveMetadata(c.Request.Context(), req.BotToken, req.Metadata, req.LanguageCode)
	writeOutcomes(c, outcomes)
}

func (s *Server) handleDeleteLocalization(c *gin.Context) {
	var req deleteRequest
	if !s.bind(c, &req) {
		return
	}

	outcomes := s.svc.DeleteLocalization(c.Request.Context(), req.BotToken, req.LanguageCode)
	writeOutcomes(c, outcomes)
}

// writeOutcomes answers 200 when every field was written, 401 when the token
// was refused and 207 otherwise.
func writeOutcomes(c *gin.Context, outcomes metadata.Outcomes) {
	if outcomes.CredentialRejected() {
		c.JSON(http.StatusUnauthorized, gin.H{
			"ok":      false,
			"error":   "bot token rejected",
			"code":    apperrors.CodeCredentialInvalid,
			"results": outcomes,
		})
		return
	}

	status := http.StatusOK
	if !outcomes.AllOK() {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{"ok": outcomes.AllOK(), "results": outcomes})
}

func (s *Server) handleProbeLanguages(c *gin.Context) {
	var req tokenRequest
	if !s.bind(c, &req) {
		return
	}

	if wantsStream(c) {
		s.streamProbe(c, req.BotToken)
		return
	}

	res, err := s.prober.Probe(c.Request.Context(), req.BotToken)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":                  true,
		"configuredLanguages": res.Configured,
		"failedLanguages":     res.Failed,
		"checked":             res.Checked,
	})
}

func wantsStream(c *gin.Context) bool {
	switch c.Query("stream") {
	case "1", "true":
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), NDJSONContentType)
}

// streamProbe writes one JSON event per line, flushing after each. A default
// metadata failure is reported as a regular JSON error since nothing has been
// streamed yet.
func (s *Server) streamProbe(c *gin.Context, token string) {
	events, err := s.prober.Stream(c.Request.Context(), token)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Header("Content-Type", NDJSONContentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	enc := json.NewEncoder(c.Writer)
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			s.log.DebugContext(c.Request.Context(), "Probe stream consumer went away", "error", err)
			return
		}
		c.Writer.Flush()
	}
}

func (s *Server) handleTranslate(c *gin.Context) {
	if s.translator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "translation is not configured", "code": apperrors.CodeConfig})
		return
	}

	var req translateRequest
	if !s.bind(c, &req) {
		return
	}

	out, err := s.translator.Translate(c.Request.Context(), translate.Request{
		APIKey:     req.APIKey,
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
		Metadata:   req.Metadata,
	})
	if err != nil {
		if apperrors.Code(err) == apperrors.CodeUnknown {
			c.Error(err) //nolint:errcheck
			c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error(), "code": apperrors.CodeUnknown})
			return
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "metadata": out})
}

// fail writes the JSON error envelope with a status derived from the error code.
func (s *Server) fail(c *gin.Context, err error) {
	code := apperrors.Code(err)
	c.Error(err) //nolint:errcheck
	c.JSON(statusFor(code), gin.H{"ok": false, "error": err.Error(), "code": code})
}

func statusFor(code string) int {
	switch code {
	case apperrors.CodeValidation, apperrors.CodeRemote:
		return http.StatusBadRequest
	case apperrors.CodeCredentialInvalid:
		return http.StatusUnauthorized
	case apperrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case apperrors.CodeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
