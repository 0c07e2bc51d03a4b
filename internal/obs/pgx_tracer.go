package obs

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/comanda-app/backend-comanda/internal/tenant"
)

const maxTracedSQLLen = 300

type querySpanKey struct{}

// PGXTracer opens a span per SQL statement. Storefront queries also carry
// the resolved establishment slug so slow tenants stand out in traces.
type PGXTracer struct{}

func (PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	ctx, span := otel.Tracer("comanda.db").Start(ctx, "pgx.query")
	sql := strings.TrimSpace(data.SQL)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.statement", truncateSQL(sql)),
	)
	if sql != "" {
		span.SetAttributes(attribute.String("db.operation", strings.Fields(sql)[0]))
	}
	if slug, ok := tenant.From(ctx); ok && slug != "" {
		span.SetAttributes(attribute.String("comanda.establishment", slug))
	}
	return context.WithValue(ctx, querySpanKey{}, span)
}

func (PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span, ok := ctx.Value(querySpanKey{}).(trace.Span)
	if !ok {
		return
	}
	if data.Err != nil {
		span.RecordError(data.Err)
	}
	span.End()
}

func truncateSQL(sql string) string {
	if len(sql) > maxTracedSQLLen {
		return sql[:maxTracedSQLLen] + "..."
	}
	return sql
}
