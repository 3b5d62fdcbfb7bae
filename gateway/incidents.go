// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// incidentPreviewLimit caps the stored content excerpt.
const incidentPreviewLimit = 200

// IncidentRepository persists security incidents created by high-risk
// inspections.
type IncidentRepository struct {
	db *sql.DB
}

// NewIncidentRepository creates a repository over the given database.
func NewIncidentRepository(db *sql.DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

// Create persists a new incident with status open.
func (r *IncidentRepository) Create(ctx context.Context, userID string, threat Threat, riskScore float64, content string) (*Incident, error) {
	preview := content
	if len(preview) > incidentPreviewLimit {
		preview = preview[:incidentPreviewLimit]
	}

	incident := &Incident{
		ID:             uuid.NewString(),
		UserID:         userID,
		ThreatType:     threat.Type,
		Severity:       threat.Severity,
		Action:         threat.RecommendedAction,
		RiskScore:      riskScore,
		ContentPreview: preview,
		Status:         IncidentOpen,
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO security_incidents (
			id, user_id, threat_type, severity, action, risk_score, content_preview, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 'open')
		RETURNING detected_at
	`, incident.ID, userID, incident.ThreatType, incident.Severity,
		incident.Action, riskScore, preview,
	).Scan(&incident.DetectedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create incident: %w", err)
	}

	return incident, nil
}

// ListParams filter and page an incident listing.
type ListParams struct {
	Status string
	Limit  int
	Offset int
}

// List returns the user's incidents, newest first.
func (r *IncidentRepository) List(ctx context.Context, userID string, params ListParams) ([]Incident, error) {
	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, threat_type, severity, action, risk_score, content_preview, status, detected_at
		FROM security_incidents
		WHERE user_id = $1`
	args := []interface{}{userID}

	if params.Status != "" {
		query += ` AND status = $2
		ORDER BY detected_at DESC LIMIT $3 OFFSET $4`
		args = append(args, params.Status, limit, params.Offset)
	} else {
		query += `
		ORDER BY detected_at DESC LIMIT $2 OFFSET $3`
		args = append(args, limit, params.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	incidents := []Incident{}
	for rows.Next() {
		incident := Incident{UserID: userID}
		if err := rows.Scan(&incident.ID, &incident.ThreatType, &incident.Severity,
			&incident.Action, &incident.RiskScore, &incident.ContentPreview,
			&incident.Status, &incident.DetectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan incident row: %w", err)
		}
		incidents = append(incidents, incident)
	}
	return incidents, rows.Err()
}

// GetByID fetches one incident, enforcing ownership.
func (r *IncidentRepository) GetByID(ctx context.Context, userID, incidentID string) (*Incident, error) {
	incident := &Incident{UserID: userID}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, threat_type, severity, action, risk_score, content_preview, status, detected_at
		FROM security_incidents
		WHERE id = $1 AND user_id = $2
	`, incidentID, userID).Scan(&incident.ID, &incident.ThreatType,
		&incident.Severity, &incident.Action, &incident.RiskScore,
		&incident.ContentPreview, &incident.Status, &incident.DetectedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load incident: %w", err)
	}
	return incident, nil
}

// UpdateStatus transitions an incident within the allowed status set.
func (r *IncidentRepository) UpdateStatus(ctx context.Context, userID, incidentID, status string) error {
	if !ValidIncidentStatus(status) {
		return errField("invalid incident status: " + status)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE security_incidents SET status = $1
		WHERE id = $2 AND user_id = $3
	`, status, incidentID, userID)
	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats summarizes the user's incidents over a lookback window.
type Stats struct {
	TotalIncidents int                    `json:"total_incidents"`
	ByThreatType   map[ThreatType]int     `json:"by_threat_type"`
	BySeverity     map[ThreatSeverity]int `json:"by_severity"`
	OpenCount      int                    `json:"open_count"`
	WindowStart    time.Time              `json:"window_start"`
}

// GetStats aggregates the user's incidents since the window start.
func (r *IncidentRepository) GetStats(ctx context.Context, userID string, since time.Time) (*Stats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT threat_type, severity, status, COUNT(*)
		FROM security_incidents
		WHERE user_id = $1 AND detected_at >= $2
		GROUP BY threat_type, severity, status
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate incidents: %w", err)
	}
	defer rows.Close()

	stats := &Stats{
		ByThreatType: map[ThreatType]int{},
		BySeverity:   map[ThreatSeverity]int{},
		WindowStart:  since,
	}
	for rows.Next() {
		var (
			threatType ThreatType
			severity   ThreatSeverity
			status     string
			count      int
		)
		if err := rows.Scan(&threatType, &severity, &status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		stats.TotalIncidents += count
		stats.ByThreatType[threatType] += count
		stats.BySeverity[severity] += count
		if status == IncidentOpen {
			stats.OpenCount += count
		}
	}
	return stats, rows.Err()
}
