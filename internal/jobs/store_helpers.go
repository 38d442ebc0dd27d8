package jobs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const jobColumns = "id, target, size_tier, status, total_units, processed_units, current_unit, created_at, claimed_at, completed_at, last_heartbeat, worker_id, result_message, result_artifact, session_id, token, member_list"

func scanJob(kind Kind, scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id             int64
		target         string
		sizeTier       sql.NullInt64
		statusStr      string
		totalUnits     int
		processedUnits int
		currentUnit    sql.NullString
		createdRaw     sql.NullString
		claimedRaw     sql.NullString
		completedRaw   sql.NullString
		heartbeatRaw   sql.NullString
		workerID       sql.NullString
		resultMessage  sql.NullString
		resultArtifact sql.NullString
		sessionID      sql.NullString
		token          sql.NullString
		memberList     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&target,
		&sizeTier,
		&statusStr,
		&totalUnits,
		&processedUnits,
		&currentUnit,
		&createdRaw,
		&claimedRaw,
		&completedRaw,
		&heartbeatRaw,
		&workerID,
		&resultMessage,
		&resultArtifact,
		&sessionID,
		&token,
		&memberList,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:             id,
		Kind:           kind,
		Target:         target,
		SizeTier:       int(sizeTier.Int64),
		Status:         Status(statusStr),
		TotalUnits:     totalUnits,
		ProcessedUnits: processedUnits,
		CurrentUnit:    currentUnit.String,
		WorkerID:       workerID.String,
		ResultMessage:  resultMessage.String,
		ResultArtifact: resultArtifact.String,
		SessionID:      sessionID.String,
		Token:          token.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	job.ClaimedAt = parseNullableTime(claimedRaw)
	job.CompletedAt = parseNullableTime(completedRaw)
	job.LastHeartbeat = parseNullableTime(heartbeatRaw)

	if memberList.Valid && memberList.String != "" {
		if err := json.Unmarshal([]byte(memberList.String), &job.Members); err != nil {
			return nil, fmt.Errorf("decode member list for job %d: %w", id, err)
		}
	}
	return job, nil
}

func marshalMembers(members []string) (any, error) {
	if len(members) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(members)
	if err != nil {
		return nil, fmt.Errorf("encode member list: %w", err)
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value int) any {
	if value == 0 {
		return nil
	}
	return value
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
