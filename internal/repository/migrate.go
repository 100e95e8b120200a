package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

const (
	tableRuns  = "extraction_runs"
	tableFiles = "evidence_files"
)

// column types that differ between the supported dialects
func colTypes(d string) (blob, json string) {
	if d == dialect.Postgres {
		return "bytea", "jsonb"
	}
	return "blob", "text"
}

// Migrate creates the run log tables when they do not exist yet.
func Migrate(ctx context.Context, db *DB) error {
	blob, jsonType := colTypes(db.Dialect)
	b := entsql.Dialect(db.Dialect)

	runs := b.CreateTable(tableRuns).IfNotExists().
		Columns(
			entsql.Column("id").Type("varchar(36)").Attr("NOT NULL"),
			entsql.Column("request_id").Type("varchar(64)"),
			entsql.Column("status").Type("varchar(16)").Attr("NOT NULL"),
			entsql.Column("file_count").Type("integer").Attr("NOT NULL"),
			entsql.Column("context").Type(jsonType),
			entsql.Column("started_at").Type("bigint").Attr("NOT NULL"),
			entsql.Column("finished_at").Type("bigint"),
			entsql.Column("error_message").Type("text"),
			entsql.Column("needs_review").Type("integer").Attr("NOT NULL DEFAULT 0"),
			entsql.Column("result_json").Type(jsonType),
			entsql.Column("model_name").Type("varchar(128)"),
		).
		PrimaryKey("id")

	files := b.CreateTable(tableFiles).IfNotExists().
		Columns(
			entsql.Column("run_id").Type("varchar(36)").Attr("NOT NULL"),
			entsql.Column("position").Type("integer").Attr("NOT NULL"),
			entsql.Column("filename").Type("text").Attr("NOT NULL"),
			entsql.Column("mime_type").Type("varchar(64)").Attr("NOT NULL"),
			entsql.Column("file_size").Type("integer").Attr("NOT NULL"),
			entsql.Column("content_hash").Type(blob),
			entsql.Column("ocr_text").Type("text"),
			entsql.Column("recommended_filename").Type("text"),
		).
		PrimaryKey("run_id", "position").
		ForeignKeys(entsql.ForeignKey().Columns("run_id").Reference(entsql.Reference().Table(tableRuns).Columns("id")).OnDelete("CASCADE"))

	for _, tb := range []*entsql.TableBuilder{runs, files} {
		q, args := tb.Query()
		if err := db.Driver.Exec(ctx, q, args, nil); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
