package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"vet-exam-orders/internal/domain/exams"

	"github.com/jackc/pgx/v5/pgconn"
)

type ExamsRepo struct {
	db *sql.DB
}

func NewExamsRepo(db *sql.DB) *ExamsRepo {
	return &ExamsRepo{db: db}
}

const examColumns = `
	id, animal_name, tutor, veterinarian, date,
	exam_type_id, clinic_id,
	value, payment_type_id, paid, payment_note,
	status, pdf_path,
	created_at, updated_at
`

func (r *ExamsRepo) Create(ctx context.Context, e exams.Exam) (exams.Exam, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO exams (
			animal_name, tutor, veterinarian, date,
			exam_type_id, clinic_id,
			value, payment_type_id, paid, payment_note,
			status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING `+examColumns,
		e.AnimalName,
		e.Tutor,
		e.Veterinarian,
		e.Date,
		e.ExamTypeID,
		e.ClinicID,
		e.Value,
		e.PaymentTypeID,
		e.Paid,
		e.PaymentNote,
		string(e.Status),
	)
	return scanExam(row)
}

func (r *ExamsRepo) GetByID(ctx context.Context, id int64) (exams.Exam, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+examColumns+`
		FROM exams
		WHERE id = $1
	`, id)

	e, err := scanExam(row)
	if err != nil {
		return exams.Exam{}, err
	}
	return e, nil
}

func (r *ExamsRepo) Update(ctx context.Context, e exams.Exam) (exams.Exam, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE exams SET
			animal_name = $2,
			tutor = $3,
			veterinarian = $4,
			date = $5,
			exam_type_id = $6,
			clinic_id = $7,
			value = $8,
			payment_type_id = $9,
			paid = $10,
			payment_note = $11,
			status = $12,
			updated_at = now()
		WHERE id = $1
		RETURNING `+examColumns,
		e.ID,
		e.AnimalName,
		e.Tutor,
		e.Veterinarian,
		e.Date,
		e.ExamTypeID,
		e.ClinicID,
		e.Value,
		e.PaymentTypeID,
		e.Paid,
		e.PaymentNote,
		string(e.Status),
	)
	return scanExam(row)
}

func (r *ExamsRepo) UpdatePayment(ctx context.Context, id int64, p exams.PaymentPatch) (exams.Exam, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE exams SET
			paid = $2,
			payment_type_id = $3,
			payment_note = $4,
			updated_at = now()
		WHERE id = $1
		RETURNING `+examColumns,
		id, p.Paid, p.PaymentTypeID, p.PaymentNote,
	)
	return scanExam(row)
}

func (r *ExamsRepo) UpdateStatus(ctx context.Context, id int64, s exams.Status) (exams.Exam, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE exams SET
			status = $2,
			updated_at = now()
		WHERE id = $1
		RETURNING `+examColumns,
		id, string(s),
	)
	return scanExam(row)
}

func (r *ExamsRepo) SetPDFPath(ctx context.Context, id int64, path string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE exams SET pdf_path = $2, updated_at = now() WHERE id = $1
	`, id, path)
	if err != nil {
		return mapPgError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return exams.ErrNotFound
	}
	return nil
}

func (r *ExamsRepo) List(ctx context.Context, filter exams.ListFilter) ([]exams.Exam, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + examColumns + ` FROM exams WHERE 1=1`)

	args := make([]any, 0, 6)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ClinicID != nil {
		sb.WriteString(" AND clinic_id = " + arg(*filter.ClinicID))
	}
	if filter.Status != nil {
		sb.WriteString(" AND status = " + arg(string(*filter.Status)))
	}
	if filter.Paid != nil {
		sb.WriteString(" AND paid = " + arg(*filter.Paid))
	}
	if filter.From != nil {
		sb.WriteString(" AND date >= " + arg(*filter.From))
	}
	if filter.To != nil {
		sb.WriteString(" AND date <= " + arg(*filter.To))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		p := arg("%" + strings.ToLower(q) + "%")
		sb.WriteString(" AND (lower(animal_name) LIKE " + p +
			" OR lower(tutor) LIKE " + p +
			" OR lower(veterinarian) LIKE " + p + ")")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	sb.WriteString(" ORDER BY date DESC, id DESC LIMIT " + arg(limit))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]exams.Exam, 0)
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *ExamsRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return exams.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExam(row rowScanner) (exams.Exam, error) {
	var e exams.Exam
	var status string
	var paymentTypeID sql.NullInt64
	var pdfPath sql.NullString

	if err := row.Scan(
		&e.ID,
		&e.AnimalName,
		&e.Tutor,
		&e.Veterinarian,
		&e.Date,
		&e.ExamTypeID,
		&e.ClinicID,
		&e.Value,
		&paymentTypeID,
		&e.Paid,
		&e.PaymentNote,
		&status,
		&pdfPath,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return exams.Exam{}, exams.ErrNotFound
		}
		return exams.Exam{}, mapPgError(err)
	}

	e.Status = exams.Status(status)
	if paymentTypeID.Valid {
		v := paymentTypeID.Int64
		e.PaymentTypeID = &v
	}
	if pdfPath.Valid {
		v := pdfPath.String
		e.PDFPath = &v
	}

	return e, nil
}

// mapPgError traduce violaciones de constraint a errores de campo para
// que el mensaje que ve el usuario nombre el campo conflictivo.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23503": // foreign_key_violation
		return exams.FieldErrors{constraintField(pgErr.ConstraintName): "referencia inexistente"}
	case "23505": // unique_violation
		return exams.FieldErrors{constraintField(pgErr.ConstraintName): "valor duplicado"}
	case "23514": // check_violation
		return exams.FieldErrors{constraintField(pgErr.ConstraintName): "valor fuera de rango"}
	default:
		return err
	}
}

// constraintField extrae el campo de nombres tipo exams_clinic_id_fkey.
func constraintField(constraint string) string {
	s := strings.TrimPrefix(constraint, "exams_")
	for _, suffix := range []string{"_fkey", "_key", "_check"} {
		s = strings.TrimSuffix(s, suffix)
	}
	if s == "" {
		return "exam"
	}
	return s
}
