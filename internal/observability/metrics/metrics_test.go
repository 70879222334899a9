package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("provider", "tikwm"),
		attribute.String("user_id", "1001"),
		attribute.String("media_kind", "video"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "provider" && attrs[1].Key != "provider" {
		t.Fatalf("expected provider to be retained")
	}
	if attrs[0].Key != "media_kind" && attrs[1].Key != "media_kind" {
		t.Fatalf("expected media_kind to be retained")
	}
}

func TestNopMetricsRecord(t *testing.T) {
	m := NewNop()
	if m == nil {
		t.Fatalf("expected nop metrics")
	}
	m.RecordLinkReceived(context.Background(), "trial")
	m.RecordDownload(context.Background(), "video", "tikwm", true)
	m.RecordRateLimitDenied(context.Background(), "bucket")
}
