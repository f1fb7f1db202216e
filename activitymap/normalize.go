package activitymap

import (
	"context"
	"strings"
	"time"

	credentials "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-print"
)

const (
	defaultChannel    = "credentials"
	defaultObjectType = "account"
	defaultActorID    = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
}

// Normalize converts a credentials.ActivityEvent into a generic normalized shape.
func Normalize(event credentials.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := firstNonEmpty(
		strings.TrimSpace(event.AccountID),
		strings.TrimSpace(options.actorFallback),
	)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: strings.TrimSpace(options.objectType),
		ObjectID:   strings.TrimSpace(event.AccountID),
		Channel:    strings.TrimSpace(options.channel),
		Metadata:   cloneMap(event.Metadata),
		OccurredAt: occurredAt,
	}
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the default object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback sets the actor id used for events without an account,
// such as a login attempt for an unknown email.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// FromAudit maps the audit configuration onto normalization options. Empty
// fields keep the defaults.
func FromAudit(audit credentials.AuditOptions) []Option {
	var opts []Option
	if audit.Channel != "" {
		opts = append(opts, WithDefaultChannel(audit.Channel))
	}
	if audit.ObjectType != "" {
		opts = append(opts, WithDefaultObjectType(audit.ObjectType))
	}
	if audit.ActorFallback != "" {
		opts = append(opts, WithActorFallback(audit.ActorFallback))
	}
	return opts
}

// NewLogSink returns an ActivitySink writing normalized records to logger,
// an audit trail for deployments without an event pipeline.
func NewLogSink(logger credentials.Logger, opts ...Option) credentials.ActivitySink {
	if logger == nil {
		logger = credentials.DefaultLogger()
	}
	return credentials.ActivitySinkFunc(func(_ context.Context, event credentials.ActivityEvent) error {
		logger.Info("activity: %s", print.MaybePrettyJSON(Normalize(event, opts...)))
		return nil
	})
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
