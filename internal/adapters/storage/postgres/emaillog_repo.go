package postgres

import (
	"context"
	"database/sql"

	"vet-exam-orders/internal/domain/emaillog"
)

type EmailLogRepo struct {
	db *sql.DB
}

func NewEmailLogRepo(db *sql.DB) *EmailLogRepo {
	return &EmailLogRepo{db: db}
}

// Append agrega una entrada al log. La tabla es append-only: no hay
// UPDATE ni DELETE sobre email_logs en todo el código.
func (r *EmailLogRepo) Append(ctx context.Context, e emaillog.Entry) (emaillog.Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO email_logs (exam_id, status, sent_to, error_message)
		VALUES ($1,$2,$3,$4)
		RETURNING id, exam_id, status, sent_to, error_message, created_at
	`,
		e.ExamID,
		string(e.Status),
		e.SentTo,
		e.ErrorMessage,
	)
	return scanEmailLog(row)
}

func (r *EmailLogRepo) ListByExam(ctx context.Context, examID int64) ([]emaillog.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, exam_id, status, sent_to, error_message, created_at
		FROM email_logs
		WHERE exam_id = $1
		ORDER BY id ASC
	`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// Examen sin correos => lista vacía, no error
	out := make([]emaillog.Entry, 0)
	for rows.Next() {
		e, err := scanEmailLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEmailLog(row rowScanner) (emaillog.Entry, error) {
	var e emaillog.Entry
	var status string
	var errMsg sql.NullString

	if err := row.Scan(
		&e.ID,
		&e.ExamID,
		&status,
		&e.SentTo,
		&errMsg,
		&e.CreatedAt,
	); err != nil {
		return emaillog.Entry{}, err
	}

	e.Status = emaillog.Status(status)
	if errMsg.Valid {
		v := errMsg.String
		e.ErrorMessage = &v
	}

	return e, nil
}
