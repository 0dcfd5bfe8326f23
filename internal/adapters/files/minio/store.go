package minio

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"vet-exam-orders/internal/domain/exams"
	"vet-exam-orders/internal/ports/files"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config del store de archivos sobre MinIO/S3.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Store sube los adjuntos de un examen a object storage y, cuando entre
// ellos hay un PDF válido, deja su key como artefacto en pdf_path del
// examen. La validación usa un parse real del PDF: un adjunto corrupto
// no se publica como artefacto.
type Store struct {
	client *minio.Client
	bucket string
	repo   exams.Repository
}

// NewStore conecta a MinIO y asegura el bucket.
func NewStore(cfg Config, repo exams.Repository) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &Store{client: client, bucket: cfg.Bucket, repo: repo}, nil
}

func (s *Store) Upload(ctx context.Context, examID int64, uploads []files.Upload) error {
	var artifactKey string

	for _, u := range uploads {
		key := objectKey(examID, u.Name)

		_, err := s.client.PutObject(ctx, s.bucket, key,
			bytes.NewReader(u.Data), int64(len(u.Data)),
			minio.PutObjectOptions{ContentType: u.ContentType},
		)
		if err != nil {
			return fmt.Errorf("put object %s: %w", u.Name, err)
		}

		// El artefacto es el primer PDF que parsea bien.
		if artifactKey == "" && isPDF(u) && validPDF(u.Data) {
			artifactKey = key
		}
	}

	if artifactKey == "" {
		return nil
	}
	if err := s.repo.SetPDFPath(ctx, examID, artifactKey); err != nil {
		return fmt.Errorf("record pdf artifact: %w", err)
	}
	return nil
}

func objectKey(examID int64, name string) string {
	base := strings.ReplaceAll(path.Base(name), "..", "")
	return fmt.Sprintf("exams/%d/%s-%s", examID, uuid.NewString(), base)
}

func isPDF(u files.Upload) bool {
	if strings.EqualFold(u.ContentType, "application/pdf") {
		return true
	}
	return strings.EqualFold(path.Ext(u.Name), ".pdf")
}

// validPDF intenta un parse real del documento.
func validPDF(data []byte) bool {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	return r.NumPage() > 0
}
