package speech

import (
	"context"
	"os/exec"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/nvr-ai/narrator/config"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// LogSpeaker writes utterances to the log instead of playing them.
type LogSpeaker struct {
	Logger *zap.Logger
}

// Speak logs text.
func (s LogSpeaker) Speak(_ context.Context, text string) error {
	if s.Logger != nil {
		s.Logger.Info("speak", zap.String("text", text))
	}
	return nil
}

// CommandSpeaker runs an external text-to-speech program with the text as
// its last argument, e.g. Command "espeak" or Command "say".
type CommandSpeaker struct {
	Command string
	Args    []string
}

// Speak runs the command and waits for it to exit.
func (s CommandSpeaker) Speak(ctx context.Context, text string) error {
	args := append(append([]string(nil), s.Args...), text)
	out, err := exec.CommandContext(ctx, s.Command, args...).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "%s failed: %s", s.Command, out)
	}
	return nil
}

// SpeakRequest is the body posted to an HTTP text-to-speech service.
type SpeakRequest struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
}

// HTTPSpeaker posts utterances to a text-to-speech service.
type HTTPSpeaker struct {
	url    string
	client *resty.Client
}

// NewHTTPSpeaker creates a speaker posting to url with the given per-request timeout.
func NewHTTPSpeaker(url string, timeout time.Duration) *HTTPSpeaker {
	return &HTTPSpeaker{
		url:    url,
		client: resty.New().SetTimeout(timeout),
	}
}

// Speak posts text and waits for the service to acknowledge it.
func (s *HTTPSpeaker) Speak(ctx context.Context, text string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(SpeakRequest{ID: uuid.NewString(), Text: text}).
		Post(s.url)
	if err != nil {
		return errors.Wrap(err, "speech request failed")
	}
	if resp.IsError() {
		return errors.Errorf("speech service returned %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// NewSpeaker builds the speaker selected by cfg.Mode.
func NewSpeaker(cfg config.Speech, logger *zap.Logger) (Speaker, error) {
	switch cfg.Mode {
	case config.SpeechModeLog, "":
		return LogSpeaker{Logger: logger}, nil
	case config.SpeechModeCommand:
		return CommandSpeaker{Command: cfg.Command, Args: cfg.Args}, nil
	case config.SpeechModeHTTP:
		return NewHTTPSpeaker(cfg.URL, cfg.Timeout), nil
	default:
		return nil, errors.Wrapf(config.ErrInvalidConfig, "unknown speech mode %q", cfg.Mode)
	}
}
