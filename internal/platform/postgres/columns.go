package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"compliance/pkg/domain"
	txcontext "compliance/pkg/platform/tx"
)

// AuditColumns lists the audit columns in the order AuditArgs and AuditScanner use.
const AuditColumns = "created_date, created_by, updated_date, updated_by, is_active, is_deleted"

// AuditArgs returns the query arguments for AuditColumns.
func AuditArgs(a domain.Audit) []any {
	return []any{a.CreatedDate, a.CreatedBy, NullTime(a.UpdatedDate), NullString(a.UpdatedBy), a.IsActive, a.IsDeleted}
}

// AuditScanner scans AuditColumns into a domain.Audit.
type AuditScanner struct {
	a           *domain.Audit
	updatedDate sql.NullTime
	updatedBy   sql.NullString
}

func ScanAudit(a *domain.Audit) *AuditScanner {
	return &AuditScanner{a: a}
}

// Dest returns the scan destinations; call Apply after Scan.
func (s *AuditScanner) Dest() []any {
	return []any{&s.a.CreatedDate, &s.a.CreatedBy, &s.updatedDate, &s.updatedBy, &s.a.IsActive, &s.a.IsDeleted}
}

func (s *AuditScanner) Apply() {
	s.a.UpdatedDate = TimePtr(s.updatedDate)
	s.a.UpdatedBy = s.updatedBy.String
}

// NullString stores "" as NULL.
func NullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

// SyncSerial moves a BIGSERIAL sequence past rows inserted with explicit ids.
func SyncSerial(ctx context.Context, db *sql.DB, table string) error {
	query := fmt.Sprintf(
		`SELECT setval(pg_get_serial_sequence('%s', 'id'), GREATEST((SELECT COALESCE(MAX(id), 0) FROM %s), 1))`,
		table, table,
	)
	if _, err := txcontext.Exec(ctx, db).ExecContext(ctx, query); err != nil {
		return fmt.Errorf("sync %s sequence: %w", table, err)
	}
	return nil
}
