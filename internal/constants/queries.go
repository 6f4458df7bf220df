package constants

// Prepared statement names
const (
	StmtInsertEntry     = "insert_entry"
	StmtLatestEntry     = "latest_entry"
	StmtListAfter       = "list_entries_after"
	StmtInsertRun       = "insert_run"
	StmtGetRun          = "get_run"
	StmtListRuns        = "list_runs"
	StmtListRunsRange   = "list_runs_range"
	StmtLatestIntactRun = "latest_intact_run"
	StmtUpsertAck       = "upsert_ack"
	StmtGetAck          = "get_ack"
)

var Queries = map[string]string{
	StmtInsertEntry: `
		INSERT INTO audit_entries
			(id, occurred_at, actor_id, action, resource_type, resource_id, payload, prev_hash, entry_hash)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq`,

	StmtLatestEntry: `
		SELECT seq, id, occurred_at, actor_id, action, resource_type, resource_id, payload, prev_hash, entry_hash
		FROM audit_entries
		ORDER BY seq DESC
		LIMIT 1`,

	StmtListAfter: `
		SELECT seq, id, occurred_at, actor_id, action, resource_type, resource_id, payload, prev_hash, entry_hash
		FROM audit_entries
		WHERE seq > $1
		ORDER BY seq ASC
		LIMIT $2`,

	StmtInsertRun: `
		INSERT INTO verification_runs
			(id, run_at, intact, total_entries, verified_entries, broken_at_id, details, last_verified_seq, last_verified_hash)
		VALUES ($1::uuid, $2, $3, $4, $5, $6::uuid, $7, $8, $9)`,

	StmtGetRun: `
		SELECT id, run_at, intact, total_entries, verified_entries, broken_at_id, details, last_verified_seq, last_verified_hash
		FROM verification_runs
		WHERE id = $1::uuid`,

	StmtListRuns: `
		SELECT id, run_at, intact, total_entries, verified_entries, broken_at_id, details, last_verified_seq, last_verified_hash
		FROM verification_runs
		ORDER BY run_at DESC
		LIMIT $1`,

	StmtListRunsRange: `
		SELECT id, run_at, intact, total_entries, verified_entries, broken_at_id, details, last_verified_seq, last_verified_hash
		FROM verification_runs
		WHERE run_at >= $1 AND run_at < $2
		ORDER BY run_at DESC`,

	StmtLatestIntactRun: `
		SELECT id, run_at, intact, total_entries, verified_entries, broken_at_id, details, last_verified_seq, last_verified_hash
		FROM verification_runs
		WHERE intact
		ORDER BY run_at DESC
		LIMIT 1`,

	StmtUpsertAck: `
		INSERT INTO security_alert_acknowledgments
			(alert_id, acknowledged_by, acknowledged_at, status, resolution_notes, resolved_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6)
		ON CONFLICT (alert_id) DO UPDATE
			SET status = EXCLUDED.status,
			    resolution_notes = EXCLUDED.resolution_notes,
			    resolved_at = EXCLUDED.resolved_at
		RETURNING alert_id, acknowledged_by, acknowledged_at, status, resolution_notes, resolved_at`,

	StmtGetAck: `
		SELECT alert_id, acknowledged_by, acknowledged_at, status, resolution_notes, resolved_at
		FROM security_alert_acknowledgments
		WHERE alert_id = $1::uuid`,
}

// ListAlertsQuery joins broken runs with their acknowledgments. The status
// placeholder takes '' for no filter or 'unacknowledged' for runs with no
// disposition row yet.
const ListAlertsQuery = `
	SELECT r.id, r.run_at, r.intact, r.total_entries, r.verified_entries, r.broken_at_id, r.details,
	       r.last_verified_seq, r.last_verified_hash,
	       a.acknowledged_by, a.acknowledged_at, a.status, a.resolution_notes, a.resolved_at
	FROM verification_runs r
	LEFT JOIN security_alert_acknowledgments a ON a.alert_id = r.id
	WHERE NOT r.intact
	  AND ($1 = ''
	       OR ($1 = 'unacknowledged' AND a.alert_id IS NULL)
	       OR a.status = $1)
	ORDER BY r.run_at DESC
	LIMIT $2`

// AggregateQueries group audit entries over a window for compliance
// reports. NULL actor_id rows report as 'system'.
const (
	AggregateByActionQuery = `
		SELECT action, COUNT(*)
		FROM audit_entries
		WHERE occurred_at >= $1 AND occurred_at < $2
		GROUP BY action`

	AggregateByActorQuery = `
		SELECT COALESCE(actor_id, 'system'), COUNT(*)
		FROM audit_entries
		WHERE occurred_at >= $1 AND occurred_at < $2
		GROUP BY COALESCE(actor_id, 'system')`

	AggregateByResourceQuery = `
		SELECT resource_type, COUNT(*)
		FROM audit_entries
		WHERE occurred_at >= $1 AND occurred_at < $2
		GROUP BY resource_type`
)
