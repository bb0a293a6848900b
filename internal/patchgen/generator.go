// Package patchgen asks an OpenAI-compatible chat model for a full-file fix of
// a static-analysis finding.
package patchgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	appConfig "github.com/festy23/code_janitor/internal/config"
)

const systemPrompt = "You are an expert software engineer specializing in code quality and security. " +
	"Your task is to fix code issues identified by SonarQube. " +
	"Provide the complete fixed file content and a clear explanation of your changes."

const defaultExplanation = "AI provided a fix."

// Request describes the finding and the file it was reported in.
type Request struct {
	Description string
	Rule        string
	Severity    string
	FilePath    string
	Content     string
	Line        *int
}

// Result is the outcome of a generation. Failures are reported through
// Success=false with the reason in Explanation, never as an error.
type Result struct {
	Success      bool
	FixedContent string
	Explanation  string
}

func failure(format string, args ...interface{}) Result {
	return Result{Explanation: fmt.Sprintf(format, args...)}
}

// Generator produces fixes with a chat completion model.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
	logger      *zap.SugaredLogger
}

// New creates a Generator from the OpenAI configuration. BaseURL may point at
// any OpenAI-compatible endpoint.
func New(cfg appConfig.OpenAIConfig, logger *zap.SugaredLogger) *Generator {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return NewWithClient(openai.NewClientWithConfig(clientConfig), cfg, logger)
}

// NewWithClient wraps an existing go-openai client.
func NewWithClient(client *openai.Client, cfg appConfig.OpenAIConfig, logger *zap.SugaredLogger) *Generator {
	return &Generator{
		client:      client,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

// Generate requests a fixed version of req.Content. It does not panic and does
// not return errors; every failure becomes an unsuccessful Result.
func (g *Generator) Generate(ctx context.Context, req Request) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Errorw("Patch generation panicked", "file", req.FilePath, "panic", r)
			result = failure("Error calling AI: %v", r)
		}
	}()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req)},
		},
		Temperature: g.temperature,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			g.logger.Warnw("OpenAI API error", "status", apiErr.HTTPStatusCode, "code", apiErr.Code, "error", err)
		}
		return failure("Error calling AI: %v", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return failure("AI returned empty response")
	}

	fixed, explanation, ok := ParseResponse(resp.Choices[0].Message.Content)
	if !ok {
		return failure("AI response did not contain a code block")
	}
	if strings.TrimSpace(fixed) == "" {
		return failure("AI returned an empty file")
	}
	if normalize(fixed) == normalize(req.Content) {
		return failure("AI returned the file unchanged")
	}

	// Keep the file's trailing newline convention.
	if strings.HasSuffix(req.Content, "\n") && !strings.HasSuffix(fixed, "\n") {
		fixed += "\n"
	}

	g.logger.Debugw("Patch generated", "file", req.FilePath, "finish_reason", resp.Choices[0].FinishReason)
	return Result{Success: true, FixedContent: fixed, Explanation: explanation}
}

// BuildPrompt renders the user prompt for req.
func BuildPrompt(req Request) string {
	location := "Unknown line"
	if req.Line != nil {
		location = fmt.Sprintf("at line %d", *req.Line)
	}

	var b strings.Builder
	b.WriteString("I need you to fix a code quality issue detected by SonarQube.\n\n")
	b.WriteString("**Issue Details:**\n")
	fmt.Fprintf(&b, "- File: %s\n", req.FilePath)
	fmt.Fprintf(&b, "- Rule: %s\n", req.Rule)
	fmt.Fprintf(&b, "- Severity: %s\n", req.Severity)
	fmt.Fprintf(&b, "- Location: %s\n", location)
	fmt.Fprintf(&b, "- Description: %s\n\n", req.Description)
	b.WriteString("**Current File Content:**\n```\n")
	b.WriteString(req.Content)
	if !strings.HasSuffix(req.Content, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("```\n\n")
	b.WriteString(`**Instructions:**
1. Analyze the issue and understand what needs to be fixed.
2. Provide the COMPLETE fixed file content (not just a diff).
3. Ensure the fix addresses the SonarQube rule violation.
4. Maintain the original code style and formatting.
5. Do not add or remove functionality unrelated to the fix.

**Output Format:**
First, provide the complete fixed file content in a code block.
Then, on a new line, provide a brief explanation starting with "Explanation: " describing what you changed and why.
`)
	return b.String()
}

// ParseResponse extracts the first fenced code block and the explanation that
// follows it. The info string on the opening fence is dropped. ok is false
// when the response has no complete code block.
func ParseResponse(response string) (code, explanation string, ok bool) {
	parts := strings.Split(response, "```")
	if len(parts) < 3 {
		return "", "", false
	}

	// The rest of the opening fence line is the info string.
	block := parts[1]
	if idx := strings.IndexByte(block, '\n'); idx >= 0 {
		block = block[idx+1:]
	}
	code = strings.TrimRight(block, " \t\r\n")

	rest := strings.Join(parts[2:], "```")
	if _, after, found := strings.Cut(rest, "Explanation:"); found {
		explanation = strings.TrimSpace(after)
	} else {
		explanation = strings.TrimSpace(rest)
	}
	if explanation == "" {
		explanation = defaultExplanation
	}
	return code, explanation, true
}

func normalize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
}
