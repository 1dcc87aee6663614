package authkit

import (
	"io"

	"go.uber.org/zap"

	internalaudit "github.com/MrEthical07/authkit/internal/audit"
)

// AuditEvent is a structured security event.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the kit's async dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink delivers audit events to a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes audit events as JSON lines.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink logs audit events through zap.
type ZapSink = internalaudit.ZapSink

func NewChannelSink(buffer int) *ChannelSink { return internalaudit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return internalaudit.NewJSONWriterSink(w) }

func NewZapSink(log *zap.Logger) *ZapSink { return internalaudit.NewZapSink(log) }
