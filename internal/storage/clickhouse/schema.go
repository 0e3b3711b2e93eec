package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Telemetry rows are append-only: duplicate inserts for the same
// (entity_id, event_time) are expected, and reads resolve to the row with
// the latest received_at. The open-ended sensor shape is carried as a
// JSON-encoded String column.
const telemetryTableDDL = `
CREATE TABLE IF NOT EXISTS telemetry_documents (
    entity_id   String,
    event_time  DateTime64(3),
    received_at DateTime64(3) DEFAULT now64(3),
    fields      String
) ENGINE = MergeTree()
ORDER BY (entity_id, event_time, received_at)
`

// InitializeSchema creates required tables if they don't exist.
func InitializeSchema(ctx context.Context, conn driver.Conn) error {
	if err := conn.Exec(ctx, telemetryTableDDL); err != nil {
		return fmt.Errorf("creating table telemetry_documents: %w", err)
	}
	return nil
}
