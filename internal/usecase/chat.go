package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"site-assistant/internal/domain"
)

const (
	defaultClassifierTimeout = 10 * time.Second
	defaultResponderTimeout  = 25 * time.Second
	defaultMaxMessageLength  = 2000
	interactionWriteTimeout  = 2 * time.Second

	stageClassify = "classify"
	stageRespond  = "respond"
)

// State is a step of the per-request workflow:
// Idle → Classifying → Dispatched → Responding → Done, or Failed.
type State string

const (
	StateIdle        State = "idle"
	StateClassifying State = "classifying"
	StateDispatched  State = "dispatched"
	StateResponding  State = "responding"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Completer is the hosted completion service.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// Dispatcher resolves categories to agent profiles.
type Dispatcher interface {
	Classifier() domain.ClassifierProfile
	Profiles() []domain.AgentProfile
	Lookup(c domain.Category) (domain.AgentProfile, bool)
}

type InteractionWriter interface {
	SaveInteraction(ctx context.Context, in domain.Interaction) error
}

type Observer interface {
	ObserveStage(stage string, d time.Duration, err error)
	ObserveCategory(c domain.Category)
	ObserveResult(state string)
	ObserveUnlistedLinks(c domain.Category, n int)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Options tunes a ChatService. Zero values select defaults.
type Options struct {
	ClassifierTimeout time.Duration
	ResponderTimeout  time.Duration
	MaxMessageLength  int
	Observer          Observer
	Interactions      InteractionWriter
	Logger            *zap.Logger
}

// ChatService runs the classify → dispatch → respond workflow. It holds no
// per-request state and is safe for concurrent use.
type ChatService struct {
	llm               Completer
	agents            Dispatcher
	classifier        domain.ClassifierProfile
	classifierPrompt  string
	classifierSchema  *domain.OutputSchema
	classifierTimeout time.Duration
	responderTimeout  time.Duration
	maxMessageLen     int
	observer          Observer
	interactions      InteractionWriter
	logger            *zap.Logger
	now               func() time.Time
}

// ChatInput is one visitor message. CorrelationID is the caller's tracing
// token; it is recorded but never used as a key.
type ChatInput struct {
	Message       string
	CorrelationID string
}

type ChatOutput struct {
	Text      string
	Category  domain.Category
	RequestID string
}

func NewChatService(llm Completer, agents Dispatcher, opts Options) (*ChatService, error) {
	if llm == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	if agents == nil {
		return nil, errors.New("usecase: dispatcher must not be nil")
	}
	if opts.ClassifierTimeout <= 0 {
		opts.ClassifierTimeout = defaultClassifierTimeout
	}
	if opts.ResponderTimeout <= 0 {
		opts.ResponderTimeout = defaultResponderTimeout
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = defaultMaxMessageLength
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	classifier := agents.Classifier()
	if strings.TrimSpace(classifier.Settings.Model) == "" {
		return nil, errors.New("usecase: classifier model must not be empty")
	}
	schema, err := categorySchema(domain.Categories())
	if err != nil {
		return nil, err
	}

	return &ChatService{
		llm:               llm,
		agents:            agents,
		classifier:        classifier,
		classifierPrompt:  buildClassifierPrompt(classifier, agents.Profiles()),
		classifierSchema:  schema,
		classifierTimeout: opts.ClassifierTimeout,
		responderTimeout:  opts.ResponderTimeout,
		maxMessageLen:     opts.MaxMessageLength,
		observer:          opts.Observer,
		interactions:      opts.Interactions,
		logger:            opts.Logger,
		now:               time.Now,
	}, nil
}

// Chat answers one visitor message. Invalid input fails before any
// completion call. A failure in either stage aborts the request; nothing is
// retried.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	length := utf8.RuneCountInString(message)
	if length > s.maxMessageLen {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}

	requestID := newUUID()
	correlationID := strings.TrimSpace(in.CorrelationID)
	logger := s.logger.With(zap.String("request_id", requestID), zap.String("correlation_id", correlationID))
	started := s.now()
	record := domain.Interaction{
		RequestID:     requestID,
		CorrelationID: correlationID,
		MessageLength: length,
		CreatedAt:     started,
	}

	logger.Debug("workflow transition", zap.String("state", string(StateClassifying)))
	category, err := s.classify(ctx, message)
	if err != nil {
		return ChatOutput{}, s.fail(ctx, record, err)
	}

	profile, known := s.agents.Lookup(category)
	if !known {
		logger.Warn("classifier returned a label outside the category set",
			zap.String("label", string(category)),
			zap.String("profile", profile.Name),
		)
	}
	record.Category = profile.Category
	s.observer.ObserveCategory(profile.Category)
	logger.Debug("workflow transition",
		zap.String("state", string(StateDispatched)),
		zap.String("category", string(profile.Category)),
	)

	logger.Debug("workflow transition", zap.String("state", string(StateResponding)))
	answer, err := s.respond(ctx, profile, message)
	if err != nil {
		return ChatOutput{}, s.fail(ctx, record, err)
	}

	if links := unlistedLinks(answer, profile.Links); len(links) > 0 {
		s.observer.ObserveUnlistedLinks(profile.Category, len(links))
		logger.Warn("reply contains links outside the allow-list",
			zap.String("category", string(profile.Category)),
			zap.Strings("links", links),
		)
	}

	s.finish(ctx, logger, record, StateDone, "")
	return ChatOutput{Text: answer, Category: profile.Category, RequestID: requestID}, nil
}

func (s *ChatService) classify(ctx context.Context, message string) (domain.Category, error) {
	ctx, cancel := context.WithTimeout(ctx, s.classifierTimeout)
	defer cancel()

	started := s.now()
	raw, err := s.llm.Complete(ctx, domain.CompletionRequest{
		Settings: s.classifier.Settings,
		Messages: buildClassifierMessages(s.classifierPrompt, message),
		Schema:   s.classifierSchema,
	})
	var category domain.Category
	if err == nil {
		category, err = parseClassification(raw)
		if err != nil {
			err = newError(ErrorClassificationFailed, outputReason(err), err)
		}
	} else {
		err = newError(ErrorClassificationFailed, upstreamReason(ctx, err), err)
	}
	s.observer.ObserveStage(stageClassify, s.now().Sub(started), err)
	if err != nil {
		return "", err
	}
	return category, nil
}

func (s *ChatService) respond(ctx context.Context, profile domain.AgentProfile, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.responderTimeout)
	defer cancel()

	started := s.now()
	answer, err := s.llm.Complete(ctx, domain.CompletionRequest{
		Settings: profile.Settings,
		Messages: buildResponderMessages(profile, message),
	})
	if err != nil {
		err = newError(ErrorResponseFailed, upstreamReason(ctx, err), err)
	} else if strings.TrimSpace(answer) == "" {
		err = newError(ErrorResponseFailed, outputReason(errEmptyOutput), errEmptyOutput)
	}
	s.observer.ObserveStage(stageRespond, s.now().Sub(started), err)
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (s *ChatService) fail(ctx context.Context, record domain.Interaction, err error) error {
	reason := "unknown"
	var usecaseErr *Error
	if errors.As(err, &usecaseErr) {
		reason = usecaseErr.Reason
	}
	logger := s.logger.With(zap.String("request_id", record.RequestID), zap.String("correlation_id", record.CorrelationID))
	s.finish(ctx, logger, record, StateFailed, reason)
	return err
}

func (s *ChatService) finish(ctx context.Context, logger *zap.Logger, record domain.Interaction, state State, reason string) {
	record.State = string(state)
	record.Reason = reason
	record.Duration = s.now().Sub(record.CreatedAt)
	s.observer.ObserveResult(string(state))
	logger.Debug("workflow transition", zap.String("state", string(state)), zap.String("reason", reason))

	if s.interactions == nil {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), interactionWriteTimeout)
	defer cancel()
	if err := s.interactions.SaveInteraction(wctx, record); err != nil {
		logger.Warn("failed to save interaction", zap.Error(err))
	}
}

func upstreamReason(ctx context.Context, err error) string {
	if status, ok := upstreamStatusCode(err); ok && status == http.StatusTooManyRequests {
		return "openai_rate_limited"
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "openai_timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "openai_error"
}

func outputReason(err error) string {
	if errors.Is(err, errEmptyOutput) {
		return "empty_output"
	}
	return "malformed_output"
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, time.Duration, error) {}
func (nopObserver) ObserveCategory(domain.Category) {}
func (nopObserver) ObserveResult(string) {}
func (nopObserver) ObserveUnlistedLinks(domain.Category, int) {}

var newUUID = func() string {
	return uuid.NewString()
}
