package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/xef5000/UltimateLogger/logstore"
	"github.com/xef5000/UltimateLogger/logstore/oteladapters"
	"github.com/xef5000/UltimateLogger/logstore/sqlengine"
	. "github.com/xef5000/UltimateLogger/testutil/helper" //nolint:revive
)

func newInMemoryTracer() (*tracetest.InMemoryExporter, *oteladapters.TracingCollector) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	return exporter, oteladapters.NewTracingCollector(provider.Tracer("test"))
}

func spanAttribute(span tracetest.SpanStub, key string) (string, bool) {
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			return attr.Value.AsString(), true
		}
	}

	return "", false
}

func Test_TracingCollector_StartAndFinishSpan(t *testing.T) {
	// setup
	exporter, collector := newInMemoryTracer()

	// act
	ctx, spanCtx := collector.StartSpan(context.Background(), "logstore.query_page", map[string]string{"table": "ultimate_logs"})
	collector.FinishSpan(spanCtx, "success", map[string]string{"record_count": "3"})

	// assert
	assert.NotNil(t, ctx)
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "logstore.query_page", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)

	table, ok := spanAttribute(spans[0], "table")
	assert.True(t, ok)
	assert.Equal(t, "ultimate_logs", table)

	count, ok := spanAttribute(spans[0], "record_count")
	assert.True(t, ok)
	assert.Equal(t, "3", count)
}

func Test_TracingCollector_StatusMapping(t *testing.T) {
	tests := []struct {
		status       string
		expectedCode codes.Code
	}{
		{status: "success", expectedCode: codes.Ok},
		{status: "error", expectedCode: codes.Error},
		{status: "cancelled", expectedCode: codes.Error},
		{status: "timeout", expectedCode: codes.Error},
		{status: "something_else", expectedCode: codes.Unset},
	}

	for _, tc := range tests {
		t.Run(tc.status, func(t *testing.T) {
			exporter, collector := newInMemoryTracer()

			_, spanCtx := collector.StartSpan(context.Background(), "op", nil)
			collector.FinishSpan(spanCtx, tc.status, nil)

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tc.expectedCode, spans[0].Status.Code)
		})
	}
}

func Test_TracingCollector_WiredIntoStore_ProducesOneSpanPerOperation(t *testing.T) {
	// setup
	exporter, collector := newInMemoryTracer()
	store := NewSQLiteStore(t, sqlengine.WithTracing(collector))

	// arrange
	GivenStoredRecords(t, store, FixtureUserLogin("alice", 1))

	// act
	_, err := store.QueryPage(context.Background(), logstore.Filter{}, 10, 0)

	// assert
	require.NoError(t, err)

	names := make([]string, 0)
	for _, span := range exporter.GetSpans() {
		names = append(names, span.Name)
	}

	assert.Contains(t, names, "logstore.create_table")
	assert.Contains(t, names, "logstore.insert")
	assert.Contains(t, names, "logstore.query_page")
}
