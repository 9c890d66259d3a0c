package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultAuditLimit is the number of audit entries kept in memory.
const DefaultAuditLimit = 1000

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionLoad          AuditAction = "load"
	ActionCellEdit      AuditAction = "cell_edit"
	ActionRowAdd        AuditAction = "row_add"
	ActionRowDelete     AuditAction = "row_delete"
	ActionColumnConvert AuditAction = "column_convert"
	ActionOverwrite     AuditAction = "overwrite"
	ActionAppend        AuditAction = "append"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID           string         `json:"id"`
	Action       AuditAction    `json:"action"`
	Severity     AuditSeverity  `json:"severity"`
	SessionID    string         `json:"sessionId"`
	File         string         `json:"file,omitempty"`
	Table        string         `json:"table,omitempty"`
	Target       string         `json:"target,omitempty"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	RowKey       string         `json:"rowKey,omitempty"`
	ColumnName   string         `json:"columnName,omitempty"`
	OldValue     string         `json:"oldValue,omitempty"`
	NewValue     string         `json:"newValue,omitempty"`
	RowData      map[string]any `json:"rowData,omitempty"`
	RowsAffected int            `json:"rowsAffected,omitempty"`
	Failed       bool           `json:"failed,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// AuditLogParams contains parameters for creating an audit log entry.
type AuditLogParams struct {
	Action       AuditAction
	File         string
	Table        string
	Target       string
	RowKey       string
	ColumnName   string
	OldValue     string
	NewValue     string
	RowData      map[string]any
	RowsAffected int
	Failed       bool
	Reason       string
}

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionOverwrite:
		return SeverityCritical
	case ActionAppend, ActionRowDelete:
		return SeverityHigh
	case ActionLoad:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// AuditFilter selects entries from the audit log. Zero fields match all.
type AuditFilter struct {
	SessionID string
	Action    AuditAction
	Limit     int
}

// AuditLog keeps the most recent audit entries in memory.
type AuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
	limit   int
	now     func() time.Time
}

// NewAuditLog returns a log holding at most limit entries.
func NewAuditLog(limit int) *AuditLog {
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	return &AuditLog{limit: limit, now: time.Now}
}

// Record adds an entry for sessionID. Client details come from ctx.
func (l *AuditLog) Record(ctx context.Context, sessionID string, p AuditLogParams) AuditEntry {
	info := RequestInfoFromContext(ctx)
	entry := AuditEntry{
		ID:           uuid.NewString(),
		Action:       p.Action,
		Severity:     determineSeverity(p.Action),
		SessionID:    sessionID,
		File:         p.File,
		Table:        p.Table,
		Target:       p.Target,
		IPAddress:    info.IPAddress,
		UserAgent:    info.UserAgent,
		RowKey:       p.RowKey,
		ColumnName:   p.ColumnName,
		OldValue:     p.OldValue,
		NewValue:     p.NewValue,
		RowData:      p.RowData,
		RowsAffected: p.RowsAffected,
		Failed:       p.Failed,
		Reason:       p.Reason,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	entry.CreatedAt = l.now()
	l.entries = append(l.entries, entry)
	if over := len(l.entries) - l.limit; over > 0 {
		l.entries = append(l.entries[:0:0], l.entries[over:]...)
	}
	return entry
}

// Entries returns matching entries, newest first.
func (l *AuditLog) Entries(f AuditFilter) []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []AuditEntry
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if f.SessionID != "" && e.SessionID != f.SessionID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// Len returns the number of entries held.
func (l *AuditLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
