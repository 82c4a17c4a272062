package history

import (
	"database/sql"
	"time"
)

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		id             string
		sessionID      sql.NullString
		generation     int64
		mode           string
		source         string
		outcome        string
		candidateCount int
		bestPetID      sql.NullInt64
		bestPetName    sql.NullString
		bestSimilarity sql.NullFloat64
		message        sql.NullString
		errorMessage   sql.NullString
		imageBytes     int
		submittedRaw   string
		resolvedRaw    sql.NullString
		latencyMS      sql.NullInt64
	)
	if err := scanner.Scan(
		&id,
		&sessionID,
		&generation,
		&mode,
		&source,
		&outcome,
		&candidateCount,
		&bestPetID,
		&bestPetName,
		&bestSimilarity,
		&message,
		&errorMessage,
		&imageBytes,
		&submittedRaw,
		&resolvedRaw,
		&latencyMS,
	); err != nil {
		return Entry{}, err
	}

	return Entry{
		ID:             id,
		SessionID:      sessionID.String,
		Generation:     uint64(generation),
		Mode:           mode,
		Source:         source,
		Outcome:        outcome,
		CandidateCount: candidateCount,
		BestPetID:      bestPetID.Int64,
		BestPetName:    bestPetName.String,
		BestSimilarity: bestSimilarity.Float64,
		Message:        message.String,
		ErrorMessage:   errorMessage.String,
		ImageBytes:     imageBytes,
		SubmittedAt:    parseTime(submittedRaw),
		ResolvedAt:     parseTime(resolvedRaw.String),
		Latency:        time.Duration(latencyMS.Int64) * time.Millisecond,
	}, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullableFloat(value float64, valid bool) any {
	if !valid {
		return nil
	}
	return value
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}
